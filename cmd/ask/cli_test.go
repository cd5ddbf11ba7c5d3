package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdive-md/deepdive/internal/chat"
	"github.com/deepdive-md/deepdive/internal/rulebook"
)

const bundledRulebook = "../../config/rulebook.json"

func fakeRelay(t *testing.T, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && len(req.Messages) == 2 {
			*gotPrompt = req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"**Deep** answer"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd, err := newRootCmd()
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestAsk_Raw(t *testing.T) {
	var prompt string
	relay := fakeRelay(t, &prompt)

	out, err := execute(t, "", "--rulebook", bundledRulebook, "--relay", relay.URL, "--api-key", "k", "--raw", "what", "is", "go?")
	require.NoError(t, err)
	assert.Equal(t, "**Deep** answer\n", out)
	assert.Equal(t, "what is go?", prompt)
}

func TestAsk_Rendered(t *testing.T) {
	var prompt string
	relay := fakeRelay(t, &prompt)

	out, err := execute(t, "", "--rulebook", bundledRulebook, "--relay", relay.URL, "--api-key", "k", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Deep")
	assert.Contains(t, out, "answer")
}

func TestAsk_PromptFromStdin(t *testing.T) {
	var prompt string
	relay := fakeRelay(t, &prompt)

	_, err := execute(t, "  from stdin\n", "--rulebook", bundledRulebook, "--relay", relay.URL, "--api-key", "k", "--raw")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", prompt)
}

func TestAsk_Errors(t *testing.T) {
	_, err := execute(t, "", "--rulebook", bundledRulebook, "--api-key", "k")
	assert.EqualError(t, err, "no prompt given")

	_, err = execute(t, "", "--rulebook", bundledRulebook, "--api-key", "", "hello")
	assert.True(t, errors.Is(err, chat.ErrAPIKeyNotSet), "got %v", err)

	_, err = execute(t, "", "--rulebook", "does-not-exist.json", "--api-key", "k", "hello")
	assert.Error(t, err)
}

func TestProviders(t *testing.T) {
	out, err := execute(t, "", "providers", "--rulebook", bundledRulebook)
	require.NoError(t, err)

	assert.Contains(t, out, "1. groq-llama-8b (default)")
	assert.Contains(t, out, "Model: llama-3.1-70b-versatile")
	assert.Less(t, strings.Index(out, "groq-llama-8b"), strings.Index(out, "openai-gpt-4o-mini"))
}

func TestAsk_PromptWordsAreNotSubcommands(t *testing.T) {
	var prompt string
	relay := fakeRelay(t, &prompt)

	out, err := execute(t, "", "--relay", relay.URL, "--api-key", "k", "--rulebook", bundledRulebook, "--raw", "explain", "markdown")
	require.NoError(t, err)
	assert.Equal(t, "explain markdown", prompt)
	assert.Equal(t, "**Deep** answer\n", out)
}

func TestAsk_EnvDefaults(t *testing.T) {
	var prompt string
	relay := fakeRelay(t, &prompt)
	t.Setenv("DEEPDIVE_RELAY", relay.URL)
	t.Setenv("DEEPDIVE_API_KEY", "from-env")
	t.Setenv("RULEBOOK_PATH", bundledRulebook)

	out, err := execute(t, "", "--raw", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", prompt)
	assert.Equal(t, "**Deep** answer\n", out)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestPrintProviders_WriteError(t *testing.T) {
	book, err := rulebook.Load(bundledRulebook)
	require.NoError(t, err)

	assert.EqualError(t, printProviders(failingWriter{}, book), "broken pipe")
}
