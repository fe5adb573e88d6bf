package main

import (
	"time"

	"github.com/TobiSchelling/redditpersona/internal/analyze"
	"github.com/TobiSchelling/redditpersona/internal/events"
	"github.com/TobiSchelling/redditpersona/internal/llm"
	"github.com/TobiSchelling/redditpersona/internal/metrics"
	"github.com/TobiSchelling/redditpersona/internal/pipeline"
	"github.com/TobiSchelling/redditpersona/internal/reddit"
	"github.com/TobiSchelling/redditpersona/internal/store"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	pipeline  *pipeline.Pipeline
	provider  llm.Provider
	metrics   *metrics.Metrics
	publisher events.Publisher
}

func newApp() *app {
	m := metrics.New()

	provider, err := llm.CreateProvider(llm.ProviderConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey(),
		OllamaURL: cfg.LLM.OllamaURL,
		BaseURL:   cfg.LLM.BaseURL,
	})
	if err != nil {
		// Fetching and reading still work; generation reports the missing provider.
		logger.Warn("LLM provider unavailable", "provider", cfg.LLM.Provider, "error", err)
	}

	analyzer := analyze.NewAnalyzer(provider, analyze.Options{
		MaxTokens:  cfg.Analysis.MaxTokens,
		RepairJSON: cfg.Analysis.RepairJSON,
	}, logger)
	analyzer.Observe = func(d time.Duration, err error) {
		m.ObserveLLM(cfg.LLM.Model, d, err)
	}

	client := reddit.NewClient(reddit.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		Limit:        cfg.Reddit.FetchLimit,
		Timeout:      cfg.Reddit.Timeout(),
	}, logger)
	var source pipeline.Source = client
	if cfg.Reddit.Source == "feed" {
		source = reddit.NewFeedSource(client)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		client, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Token, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
		} else {
			publisher = client
		}
	}

	opener := store.NewOpener(store.Options{
		URI:      cfg.GetStoreURI(),
		Database: cfg.Store.Database,
	})

	p := pipeline.New(opener, source, analyzer,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithPublisher(publisher),
	)
	return &app{pipeline: p, provider: provider, metrics: m, publisher: publisher}
}

// Close releases the event connection.
func (a *app) Close() {
	a.publisher.Close()
}
