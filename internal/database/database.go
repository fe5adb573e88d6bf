package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// connPragmas are applied to every new store connection, in order.
var connPragmas = []struct {
	name, value string
}{
	{"journal_mode", "WAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// DB is a SQLite-backed document store. Each row holds one JSON document
// addressed by (collection, key).
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the document store at storePath, creating the file and its
// parent directory if needed, and brings the schema up to date.
func Open(storePath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	conn, err := sql.Open("sqlite", storePath)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", storePath, err)
	}

	db := &DB{conn: conn, path: storePath}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	for _, p := range connPragmas {
		stmt := fmt.Sprintf("PRAGMA %s=%s", p.name, p.value)
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("setting %s: %w", p.name, err)
		}
	}
	if err := migrate(db.conn); err != nil {
		return fmt.Errorf("migrating store %s: %w", db.path, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path reports the file the store was opened from.
func (db *DB) Path() string {
	return db.path
}
