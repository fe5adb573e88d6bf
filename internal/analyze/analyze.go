package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TobiSchelling/redditpersona/internal/account"
	"github.com/TobiSchelling/redditpersona/internal/corpus"
	"github.com/TobiSchelling/redditpersona/internal/llm"
	"github.com/TobiSchelling/redditpersona/internal/persona"
)

const personaPrompt = `You are an expert persona analyst. Analyze the Reddit user's text to fill out this JSON structure with strict evidence-based inference.

Every citation must be an exact quote copied character for character from the text corpus. If the text gives no evidence for a field, say so in the justification and leave citations empty.

For the "feelings" field, infer a score from 0 (not present) to 100 (very strong) for each feeling (happiness, anger, anxiety, sadness, confidence), with a justification and direct citations from the text.

TEXT CORPUS:
---
%s
---

Respond with ONLY this JSON:
%s`

const formatDefinition = `{
    "name": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "age": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "occupation": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "status": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "location": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "tier": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "archetype": {"value": "string", "justification": "string", "citations": ["exact quote from text"]},
    "behaviour_and_habits": {"value": ["habit1", "habit2"], "justification": "string", "citations": ["exact quote from text"]},
    "frustrations": {"value": ["frustration1", "frustration2"], "justification": "string", "citations": ["exact quote from text"]},
    "motivations": {"value": ["motivation1", "motivation2"], "justification": "string", "citations": ["exact quote from text"]},
    "personality": {"value": ["trait1", "trait2"], "justification": "string", "citations": ["exact quote from text"]},
    "goals_and_needs": {"value": ["goal1", "need1"], "justification": "string", "citations": ["exact quote from text"]},
    "feelings": {
        "happiness": {"score": 0, "justification": "string", "citations": ["exact quote from text"]},
        "anger": {"score": 0, "justification": "string", "citations": ["exact quote from text"]},
        "anxiety": {"score": 0, "justification": "string", "citations": ["exact quote from text"]},
        "sadness": {"score": 0, "justification": "string", "citations": ["exact quote from text"]},
        "confidence": {"score": 0, "justification": "string", "citations": ["exact quote from text"]}
    }
}`

// DefaultMaxTokens bounds the model's response.
const DefaultMaxTokens = 4096

// ErrNoProvider is returned when no usable LLM provider is configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// Options configure an Analyzer.
type Options struct {
	MaxTokens  int
	RepairJSON bool
}

// Analyzer turns an account snapshot into parsed persona traits.
type Analyzer struct {
	provider llm.Provider
	opts     Options
	logger   *slog.Logger

	// Observe, when set, receives the latency of every provider call.
	Observe func(d time.Duration, err error)
}

// NewAnalyzer creates an analyzer. A nil logger discards output.
func NewAnalyzer(provider llm.Provider, opts Options, logger *slog.Logger) *Analyzer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{provider: provider, opts: opts, logger: logger}
}

// Model names the model behind the analyzer, or "" when none is configured.
func (a *Analyzer) Model() string {
	if a == nil || a.provider == nil {
		return ""
	}
	return a.provider.Model()
}

// BuildPrompt renders the analysis prompt for a snapshot.
func BuildPrompt(s *account.Snapshot) string {
	return fmt.Sprintf(personaPrompt, corpus.Assemble(s), formatDefinition)
}

// Analyze sends the snapshot's corpus to the model and parses the response.
// Provider failures are returned as-is; unusable responses wrap
// llm.ErrMalformedResponse.
func (a *Analyzer) Analyze(ctx context.Context, s *account.Snapshot) (*persona.Traits, error) {
	if a.provider == nil || !a.provider.IsConfigured() {
		return nil, ErrNoProvider
	}

	prompt := BuildPrompt(s)
	a.logger.Debug("calling model",
		"model", a.provider.Model(),
		"records", s.RecordCount(),
		"prompt_bytes", len(prompt))

	start := time.Now()
	text, err := a.provider.Generate(ctx, prompt, a.opts.MaxTokens)
	if a.Observe != nil {
		a.Observe(time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	traits, err := persona.ParseTraits(text, persona.ParseOptions{RepairJSON: a.opts.RepairJSON})
	if err != nil {
		a.logger.Warn("model response rejected", "error", err, "response_bytes", len(text))
		return nil, err
	}
	return traits, nil
}
