package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// ErrSchemaTooNew is returned when a store was written by a newer build
// whose migrations this binary does not know.
var ErrSchemaTooNew = errors.New("store schema is newer than supported")

func getSchemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies every migration above the store's user_version in order.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	latest := latestVersion()
	switch {
	case current > latest:
		return fmt.Errorf("%w: store at version %d, binary supports %d", ErrSchemaTooNew, current, latest)
	case current == latest:
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
		slog.Debug("store migrated", "version", m.Version, "step", m.Description)
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}

	// The DDL is idempotent, so a crash before the stamp re-runs this step.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("migration %d: stamping version: %w", m.Version, err)
	}
	return nil
}
