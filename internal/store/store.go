// Package store persists account snapshots and personas as keyed documents
// on SQLite, PostgreSQL or MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/redditpersona/internal/account"
	"github.com/TobiSchelling/redditpersona/internal/persona"
)

// Collections, both keyed by username.
const (
	CollectionSnapshots = "snapshots"
	CollectionPersonas  = "personas"
)

// ErrNotFound is returned by Gateway lookups when no document exists.
var ErrNotFound = errors.New("document not found")

// DocumentStore is a keyed JSON document store. UpsertByKey replaces the
// whole document or inserts it; concurrent writers to one key race and the
// last one wins.
type DocumentStore interface {
	UpsertByKey(ctx context.Context, collection, key string, doc any) error
	FindByKey(ctx context.Context, collection, key string, out any) (bool, error)
	Count(ctx context.Context, collection string) (int, error)
	Keys(ctx context.Context, collection string, limit int) ([]string, error)
	Close() error
}

// Gateway adds typed snapshot and persona access over a DocumentStore.
type Gateway struct {
	docs DocumentStore
}

// NewGateway wraps a document store.
func NewGateway(docs DocumentStore) *Gateway {
	return &Gateway{docs: docs}
}

// Close closes the underlying store.
func (g *Gateway) Close() error {
	return g.docs.Close()
}

// SaveSnapshot replaces the stored snapshot for s.Username.
func (g *Gateway) SaveSnapshot(ctx context.Context, s *account.Snapshot) error {
	if s == nil || s.Username == "" {
		return fmt.Errorf("save snapshot: missing username")
	}
	return g.docs.UpsertByKey(ctx, CollectionSnapshots, s.Username, s)
}

// LoadSnapshot returns the stored snapshot for username or ErrNotFound.
func (g *Gateway) LoadSnapshot(ctx context.Context, username string) (*account.Snapshot, error) {
	var s account.Snapshot
	found, err := g.docs.FindByKey(ctx, CollectionSnapshots, username, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("snapshot %s: %w", username, ErrNotFound)
	}
	return &s, nil
}

// SavePersona replaces the stored persona for r.Username.
func (g *Gateway) SavePersona(ctx context.Context, r *persona.Record) error {
	if r == nil || r.Username == "" {
		return fmt.Errorf("save persona: missing username")
	}
	return g.docs.UpsertByKey(ctx, CollectionPersonas, r.Username, r)
}

// LoadPersona returns the stored persona for username or ErrNotFound.
func (g *Gateway) LoadPersona(ctx context.Context, username string) (*persona.Record, error) {
	var r persona.Record
	found, err := g.docs.FindByKey(ctx, CollectionPersonas, username, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("persona %s: %w", username, ErrNotFound)
	}
	return &r, nil
}

// RecentPersonas lists up to limit usernames with a stored persona, most
// recently written first.
func (g *Gateway) RecentPersonas(ctx context.Context, limit int) ([]string, error) {
	return g.docs.Keys(ctx, CollectionPersonas, limit)
}

// Stats summarizes store contents.
type Stats struct {
	Snapshots int `json:"snapshots"`
	Personas  int `json:"personas"`
}

// Stats counts stored snapshots and personas.
func (g *Gateway) Stats(ctx context.Context) (*Stats, error) {
	snapshots, err := g.docs.Count(ctx, CollectionSnapshots)
	if err != nil {
		return nil, err
	}
	personas, err := g.docs.Count(ctx, CollectionPersonas)
	if err != nil {
		return nil, err
	}
	return &Stats{Snapshots: snapshots, Personas: personas}, nil
}
