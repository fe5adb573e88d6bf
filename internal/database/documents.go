package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timestampLayout is fixed width so updated_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// UpsertByKey stores doc as JSON under (collection, key), replacing any
// previous document wholesale. The last writer wins.
func (db *DB) UpsertByKey(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, key, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, key, string(body), time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting %s/%s: %w", collection, key, err)
	}
	return nil
}

// FindByKey decodes the document stored under (collection, key) into out.
// It reports false with a nil error when no document exists.
func (db *DB) FindByKey(ctx context.Context, collection, key string, out any) (bool, error) {
	var body string
	err := db.conn.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// Count returns the number of documents in a collection.
func (db *DB) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

// Keys lists up to limit keys in a collection, most recently updated first.
// A limit of zero or less means no limit.
func (db *DB) Keys(ctx context.Context, collection string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx,
		"SELECT key FROM documents WHERE collection = ? ORDER BY updated_at DESC, key LIMIT ?",
		collection, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
