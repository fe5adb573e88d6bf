package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/redditpersona/internal/persona"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full run for one username.
type Result struct {
	Username string
	Steps    []StepResult
	Persona  *persona.Record
}

// Err returns the first failed step's error.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Run is Ensure with a per-step report for interactive callers.
func (p *Pipeline) Run(ctx context.Context, username string, refresh bool) *Result {
	r := &Result{Username: username}

	if !refresh {
		rec, err := p.Persona(ctx, username)
		switch {
		case err == nil && rec.IsComplete():
			r.Steps = append(r.Steps, StepResult{
				Name:    "Lookup",
				Summary: fmt.Sprintf("Complete persona already stored (generated %s)", rec.GeneratedAt.Format("2006-01-02 15:04")),
			})
			r.Persona = rec
			return r
		case err == nil:
			r.Steps = append(r.Steps, StepResult{
				Name:    "Lookup",
				Summary: fmt.Sprintf("Stored persona is missing %v, regenerating", rec.MissingKeys()),
			})
		case errors.Is(err, ErrNotFound):
			r.Steps = append(r.Steps, StepResult{Name: "Lookup", Summary: "No stored persona"})
		default:
			r.Steps = append(r.Steps, StepResult{Name: "Lookup", Err: err})
			return r
		}
	}

	snap, err := p.FetchAndStore(ctx, username)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Fetch", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Stored %d posts and %d comments", len(snap.Posts), len(snap.Comments)),
	})

	rec, err := p.GeneratePersona(ctx, username)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Generate", Err: err})
		return r
	}
	resolved, unresolved := rec.CitationStats()
	summary := fmt.Sprintf("Persona stored, %d citations resolved, %d unresolved", resolved, unresolved)
	if missing := rec.MissingKeys(); len(missing) > 0 {
		summary += fmt.Sprintf(", missing %v", missing)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Generate", Summary: summary})
	r.Persona = rec
	return r
}
