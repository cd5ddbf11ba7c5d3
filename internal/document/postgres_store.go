package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the documents table used by PostgresStore.
const Schema = `
	CREATE TABLE IF NOT EXISTS documents (
		key        TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the documents table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Document, error) {
	query := `
		SELECT key, content, updated_at
		FROM documents
		WHERE key = $1
	`

	var d Document
	err := s.db.QueryRow(ctx, query, key).Scan(&d.Key, &d.Content, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &d, nil
}

func (s *PostgresStore) Put(ctx context.Context, doc *Document) error {
	if !ValidKey(doc.Key) {
		return ErrInvalidKey
	}

	query := `
		INSERT INTO documents (key, content, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	err := s.db.QueryRow(ctx, query, doc.Key, doc.Content).Scan(&doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}

	return nil
}
