package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/redditpersona/internal/database"
	"github.com/TobiSchelling/redditpersona/internal/store/mongo"
	"github.com/TobiSchelling/redditpersona/internal/store/postgres"
)

// DefaultMongoDatabase is used when a MongoDB URI is given without a database.
const DefaultMongoDatabase = "reddit_persona"

// Options select and configure a backend.
type Options struct {
	// URI picks the backend by scheme: sqlite://path (or a bare path),
	// postgres:// or postgresql://, mongodb:// or mongodb+srv://.
	URI string
	// Database names the MongoDB database.
	Database string
}

// Backend reports which backend a URI selects.
func Backend(uri string) string {
	switch {
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return "mongo"
	default:
		return "sqlite"
	}
}

// Open connects to the document store selected by opts.URI.
func Open(ctx context.Context, opts Options) (DocumentStore, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("open store: empty URI")
	}
	switch Backend(opts.URI) {
	case "postgres":
		s, err := postgres.Open(ctx, opts.URI)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo":
		name := opts.Database
		if name == "" {
			name = DefaultMongoDatabase
		}
		s, err := mongo.Open(ctx, opts.URI, name)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		db, err := database.Open(sqlitePath(opts.URI))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

func sqlitePath(uri string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(uri, prefix) {
			return strings.TrimPrefix(uri, prefix)
		}
	}
	return uri
}

// Opener opens a fresh Gateway. Pipeline calls open one per invocation and
// close it on return.
type Opener func(ctx context.Context) (*Gateway, error)

// NewOpener returns an Opener for opts.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context) (*Gateway, error) {
		docs, err := Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return NewGateway(docs), nil
	}
}

// StaticOpener always returns a Gateway over docs whose Close is a no-op,
// for callers that manage the store's lifetime themselves.
func StaticOpener(docs DocumentStore) Opener {
	return func(context.Context) (*Gateway, error) {
		return NewGateway(noClose{docs}), nil
	}
}

type noClose struct {
	DocumentStore
}

func (noClose) Close() error { return nil }
