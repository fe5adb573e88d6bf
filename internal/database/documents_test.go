package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type doc struct {
	Username string   `json:"username"`
	Karma    int      `json:"karma"`
	Tags     []string `json:"tags,omitempty"`
}

func TestUpsertAndFind(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := doc{Username: "spez", Karma: 42, Tags: []string{"admin"}}
	if err := db.UpsertByKey(ctx, "snapshots", "spez", in); err != nil {
		t.Fatalf("UpsertByKey: %v", err)
	}

	var out doc
	found, err := db.FindByKey(ctx, "snapshots", "spez", &out)
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if !found {
		t.Fatal("expected document to be found")
	}
	if out.Username != "spez" || out.Karma != 42 || len(out.Tags) != 1 {
		t.Errorf("unexpected document %+v", out)
	}
}

func TestFindMissing(t *testing.T) {
	db := openTestDB(t)

	var out doc
	found, err := db.FindByKey(context.Background(), "personas", "nobody", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestUpsertReplacesWholeDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.UpsertByKey(ctx, "personas", "spez", doc{Username: "spez", Karma: 1, Tags: []string{"old"}})
	db.UpsertByKey(ctx, "personas", "spez", doc{Username: "spez", Karma: 2})

	var out doc
	if _, err := db.FindByKey(ctx, "personas", "spez", &out); err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if out.Karma != 2 {
		t.Errorf("expected last write to win, got karma %d", out.Karma)
	}
	if len(out.Tags) != 0 {
		t.Errorf("expected stale fields to be gone, got %v", out.Tags)
	}

	n, _ := db.Count(ctx, "personas")
	if n != 1 {
		t.Errorf("expected 1 document after two upserts, got %d", n)
	}
}

func TestCollectionsAreSeparate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.UpsertByKey(ctx, "snapshots", "spez", doc{Username: "spez", Karma: 1})
	db.UpsertByKey(ctx, "snapshots", "kn0thing", doc{Username: "kn0thing"})
	db.UpsertByKey(ctx, "personas", "spez", doc{Username: "spez", Karma: 9})

	snapshots, _ := db.Count(ctx, "snapshots")
	personas, _ := db.Count(ctx, "personas")
	if snapshots != 2 || personas != 1 {
		t.Errorf("expected 2 snapshots and 1 persona, got %d and %d", snapshots, personas)
	}

	var out doc
	db.FindByKey(ctx, "snapshots", "spez", &out)
	if out.Karma != 1 {
		t.Errorf("expected snapshot document, got %+v", out)
	}
}

func TestKeysMostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := db.UpsertByKey(ctx, "personas", k, doc{Username: k}); err != nil {
			t.Fatalf("UpsertByKey: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	keys, err := db.Keys(ctx, "personas", 0)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "c" || keys[2] != "a" {
		t.Errorf("expected [c b a], got %v", keys)
	}

	keys, _ = db.Keys(ctx, "personas", 2)
	if len(keys) != 2 {
		t.Errorf("expected limit to apply, got %v", keys)
	}
}

func TestPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "store.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("expected path %q, got %q", path, db.Path())
	}
}
