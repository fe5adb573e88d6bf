package persona

import (
	"math"
	"time"

	"github.com/TobiSchelling/redditpersona/internal/account"
	"github.com/TobiSchelling/redditpersona/internal/evidence"
)

// Meta carries provenance stamped onto a merged record.
type Meta struct {
	AnalysisID string
	Model      string
}

// Merger combines account metadata with parsed traits and grounds every
// citation in the snapshot.
type Merger struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewMerger creates a merger using the wall clock.
func NewMerger() *Merger {
	return &Merger{Now: time.Now}
}

// Merge builds a Record from s and t. The inputs are not modified: resolution
// produces new Trait values and keeps the raw quotes next to their sources.
// Citations nested under feelings are resolved the same way as top-level ones.
func (m *Merger) Merge(s *account.Snapshot, t *Traits, meta Meta) *Record {
	now := time.Now
	if m != nil && m.Now != nil {
		now = m.Now
	}
	at := now()

	r := &Record{
		Username:       s.Username,
		LinkKarma:      s.LinkKarma,
		CommentKarma:   s.CommentKarma,
		AccountAgeDays: AccountAgeDays(s, at),
		AnalysisID:     meta.AnalysisID,
		Model:          meta.Model,
		GeneratedAt:    at.UTC(),
	}
	if t == nil {
		return r
	}

	loc := evidence.NewLocator(s)

	dst := r.slots()
	for i, src := range t.slots() {
		field := *src.field
		if field == nil {
			continue
		}
		*dst[i].trait = &Trait{
			Value:         field.Value,
			Justification: field.Justification,
			Quotes:        append([]string{}, field.Citations...),
			Citations:     loc.ResolveAll(field.Citations),
		}
	}

	if t.Feelings != nil {
		set := &FeelingSet{}
		targets := []**Feeling{&set.Happiness, &set.Anger, &set.Anxiety, &set.Sadness, &set.Confidence}
		for i, src := range t.Feelings.slots() {
			score := *src.score
			if score == nil {
				continue
			}
			*targets[i] = &Feeling{
				Score:         score.Score,
				Justification: score.Justification,
				Quotes:        append([]string{}, score.Citations...),
				Citations:     loc.ResolveAll(score.Citations),
			}
		}
		r.Feelings = set
	}

	return r
}

// AccountAgeDays returns whole days between account creation and at, rounded down.
func AccountAgeDays(s *account.Snapshot, at time.Time) int {
	if s == nil {
		return 0
	}
	days := at.Sub(s.CreatedAt()).Hours() / 24
	return int(math.Floor(days))
}
