package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/redditpersona/internal/account"
	"github.com/TobiSchelling/redditpersona/internal/events"
	"github.com/TobiSchelling/redditpersona/internal/metrics"
	"github.com/TobiSchelling/redditpersona/internal/persona"
	"github.com/TobiSchelling/redditpersona/internal/reddit"
	"github.com/TobiSchelling/redditpersona/internal/store"
)

// Source fetches an account's history from upstream.
type Source interface {
	FetchSnapshot(ctx context.Context, username string) (*account.Snapshot, error)
}

// Analyzer extracts persona traits from a snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, s *account.Snapshot) (*persona.Traits, error)
	Model() string
}

// Pipeline runs fetch, analysis and merge for one username per call. Each
// call opens its own store connection and closes it before returning.
type Pipeline struct {
	open     store.Opener
	source   Source
	analyzer Analyzer
	merger   *persona.Merger

	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPublisher announces generated personas through pub.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Pipeline) { p.events = pub }
}

// WithClock fixes the merge clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.merger = &persona.Merger{Now: now} }
}

// WithIDGenerator replaces the analysis id generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// New creates a pipeline.
func New(open store.Opener, source Source, analyzer Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		open:     open,
		source:   source,
		analyzer: analyzer,
		merger:   persona.NewMerger(),
		events:   events.Nop{},
		logger:   slog.New(slog.DiscardHandler),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchAndStore pulls the account from upstream and replaces its stored
// snapshot.
func (p *Pipeline) FetchAndStore(ctx context.Context, username string) (snap *account.Snapshot, err error) {
	const op = "fetch"
	defer p.observe(op, time.Now(), &err)

	username, err = normalize(op, username)
	if err != nil {
		return nil, err
	}
	log := p.logger.With("op", op, "username", username)

	if p.source == nil {
		return nil, fail(op, username, ErrUpstreamFetch, errors.New("no data source configured"))
	}
	snap, err = p.source.FetchSnapshot(ctx, username)
	if err != nil {
		log.Warn("upstream fetch failed", "error", err)
		return nil, fail(op, username, ErrUpstreamFetch, err)
	}

	gw, err := p.open(ctx)
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}
	defer gw.Close()

	if err := gw.SaveSnapshot(ctx, snap); err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}

	log.Info("snapshot stored", "posts", len(snap.Posts), "comments", len(snap.Comments))
	return snap, nil
}

// GeneratePersona analyzes the stored snapshot and replaces the stored
// persona with the merged result. The persona is written once, after every
// step has succeeded, so a failure leaves any previous persona untouched.
func (p *Pipeline) GeneratePersona(ctx context.Context, username string) (rec *persona.Record, err error) {
	const op = "generate"
	defer p.observe(op, time.Now(), &err)

	username, err = normalize(op, username)
	if err != nil {
		return nil, err
	}

	gw, err := p.open(ctx)
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}
	defer gw.Close()

	snap, err := gw.LoadSnapshot(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(op, username, ErrNoSnapshot, err)
	}
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}

	analysisID := p.newID()
	log := p.logger.With("op", op, "username", username, "analysis_id", analysisID)
	log.Info("analyzing", "records", snap.RecordCount())

	if p.analyzer == nil {
		return nil, fail(op, username, ErrAnalysis, errors.New("no analyzer configured"))
	}
	traits, err := p.analyzer.Analyze(ctx, snap)
	if err != nil {
		log.Warn("analysis failed", "error", err)
		return nil, fail(op, username, ErrAnalysis, err)
	}

	rec = p.merger.Merge(snap, traits, persona.Meta{
		AnalysisID: analysisID,
		Model:      p.analyzer.Model(),
	})

	if err := gw.SavePersona(ctx, rec); err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}

	resolved, unresolved := rec.CitationStats()
	p.metrics.AddCitations(resolved, unresolved)
	log.Info("persona stored",
		"complete", rec.IsComplete(),
		"citations_resolved", resolved,
		"citations_unresolved", unresolved)

	ev := events.PersonaGenerated{
		Username:    rec.Username,
		AnalysisID:  rec.AnalysisID,
		Complete:    rec.IsComplete(),
		Resolved:    resolved,
		Unresolved:  unresolved,
		GeneratedAt: rec.GeneratedAt,
	}
	if err := p.events.PersonaGenerated(ctx, ev); err != nil {
		log.Warn("publishing event failed", "error", err)
	}
	return rec, nil
}

// IsPersonaComplete reports whether a stored persona holds every required
// trait. A missing persona is not complete.
func (p *Pipeline) IsPersonaComplete(ctx context.Context, username string) (bool, error) {
	rec, err := p.Persona(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.IsComplete(), nil
}

// Ensure serves the stored persona when it is complete and refresh is false;
// otherwise it fetches a new snapshot and generates a new persona.
func (p *Pipeline) Ensure(ctx context.Context, username string, refresh bool) (*persona.Record, error) {
	r := p.Run(ctx, username, refresh)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.Persona, nil
}

// Persona returns the stored persona.
func (p *Pipeline) Persona(ctx context.Context, username string) (*persona.Record, error) {
	const op = "persona"
	username, err := normalize(op, username)
	if err != nil {
		return nil, err
	}

	gw, err := p.open(ctx)
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}
	defer gw.Close()

	rec, err := gw.LoadPersona(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(op, username, ErrNotFound, err)
	}
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}
	return rec, nil
}

// Snapshot returns the stored snapshot.
func (p *Pipeline) Snapshot(ctx context.Context, username string) (*account.Snapshot, error) {
	const op = "snapshot"
	username, err := normalize(op, username)
	if err != nil {
		return nil, err
	}

	gw, err := p.open(ctx)
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}
	defer gw.Close()

	snap, err := gw.LoadSnapshot(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(op, username, ErrNoSnapshot, err)
	}
	if err != nil {
		return nil, fail(op, username, ErrPersistence, err)
	}
	return snap, nil
}

// Stats counts stored snapshots and personas.
func (p *Pipeline) Stats(ctx context.Context) (*store.Stats, error) {
	gw, err := p.open(ctx)
	if err != nil {
		return nil, fail("stats", "", ErrPersistence, err)
	}
	defer gw.Close()

	stats, err := gw.Stats(ctx)
	if err != nil {
		return nil, fail("stats", "", ErrPersistence, err)
	}
	return stats, nil
}

// Recent lists up to limit usernames with stored personas, newest first.
func (p *Pipeline) Recent(ctx context.Context, limit int) ([]string, error) {
	gw, err := p.open(ctx)
	if err != nil {
		return nil, fail("recent", "", ErrPersistence, err)
	}
	defer gw.Close()

	names, err := gw.RecentPersonas(ctx, limit)
	if err != nil {
		return nil, fail("recent", "", ErrPersistence, err)
	}
	return names, nil
}

func (p *Pipeline) observe(op string, start time.Time, err *error) {
	p.metrics.ObserveRun(op, Outcome(*err), time.Since(start))
}

func normalize(op, input string) (string, error) {
	username, err := reddit.ParseUsername(input)
	if err != nil {
		return "", fail(op, input, ErrInvalidUsername, fmt.Errorf("%q", input))
	}
	return username, nil
}
