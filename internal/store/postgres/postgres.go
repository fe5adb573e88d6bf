// Package postgres stores keyed JSON documents in a PostgreSQL JSONB table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    key TEXT NOT NULL,
    body JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents (collection, updated_at DESC);
`

// Store is a document store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and ensures the documents table exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// UpsertByKey replaces or inserts the document under (collection, key).
func (s *Store) UpsertByKey(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`,
		collection, key, body,
	)
	if err != nil {
		return fmt.Errorf("upserting %s/%s: %w", collection, key, err)
	}
	return nil
}

// FindByKey decodes the document under (collection, key) into out.
func (s *Store) FindByKey(ctx context.Context, collection, key string, out any) (bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1`, collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

// Keys lists keys in a collection, most recently updated first.
func (s *Store) Keys(ctx context.Context, collection string, limit int) ([]string, error) {
	query := `SELECT key FROM documents WHERE collection = $1 ORDER BY updated_at DESC, key`
	args := []any{collection}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	return keys, nil
}
