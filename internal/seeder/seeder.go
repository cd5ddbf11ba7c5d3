package seeder

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/deepdive-md/deepdive/internal/document"
)

const WelcomeContent = `# Deep Dive へようこそ

左側にマークダウンを書くと、右側にプレビューが表示されます。

## 使い方

- **太字** や *イタリック* で強調
- ` + "`コード`" + ` やコードブロック
- 選択したテキストについて AI に質問

` + "```go\nfmt.Println(\"Hello, Deep Dive!\")\n```\n"

// SeedWelcomeDocument stores the welcome document under the editor key
// unless something is already saved there.
func SeedWelcomeDocument(ctx context.Context, store document.Store, logger logrus.FieldLogger) {
	_, err := store.Get(ctx, document.DefaultKey)
	if err == nil {
		logger.WithField("key", document.DefaultKey).Info("[Seeder] document already exists, skipping")
		return
	}
	if !errors.Is(err, document.ErrNotFound) {
		logger.WithError(err).Warn("[Seeder] document lookup failed, skipping")
		return
	}

	doc := &document.Document{Key: document.DefaultKey, Content: WelcomeContent}
	if err := store.Put(ctx, doc); err != nil {
		logger.WithError(err).Warn("[Seeder] failed to store welcome document")
		return
	}
	logger.WithField("key", document.DefaultKey).Info("[Seeder] welcome document created")
}
