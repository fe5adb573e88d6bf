//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func skipWithoutPostgres(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return url
}

type doc struct {
	Username string `json:"username"`
	Karma    int    `json:"karma"`
}

func TestIntegration_UpsertFindRoundTrip(t *testing.T) {
	url := skipWithoutPostgres(t)
	ctx := context.Background()

	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	collection := "test_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), "DELETE FROM documents WHERE collection = $1", collection)
	})

	if err := s.UpsertByKey(ctx, collection, "spez", doc{Username: "spez", Karma: 1}); err != nil {
		t.Fatalf("UpsertByKey: %v", err)
	}
	if err := s.UpsertByKey(ctx, collection, "spez", doc{Username: "spez", Karma: 2}); err != nil {
		t.Fatalf("UpsertByKey: %v", err)
	}

	var out doc
	found, err := s.FindByKey(ctx, collection, "spez", &out)
	if err != nil || !found {
		t.Fatalf("FindByKey: found=%v err=%v", found, err)
	}
	if out.Karma != 2 {
		t.Errorf("expected last write to win, got %d", out.Karma)
	}

	n, err := s.Count(ctx, collection)
	if err != nil || n != 1 {
		t.Errorf("expected count 1, got %d (%v)", n, err)
	}

	found, err = s.FindByKey(ctx, collection, "nobody", &out)
	if err != nil || found {
		t.Errorf("expected miss, got found=%v err=%v", found, err)
	}

	keys, err := s.Keys(ctx, collection, 10)
	if err != nil || len(keys) != 1 || keys[0] != "spez" {
		t.Errorf("unexpected keys %v (%v)", keys, err)
	}
}
