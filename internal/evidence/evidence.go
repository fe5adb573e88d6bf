package evidence

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TobiSchelling/redditpersona/internal/account"
)

// DefaultCacheSize bounds the number of memoised quotes per locator.
const DefaultCacheSize = 512

// Ref points a citation quote at the record it came from.
type Ref struct {
	Type      account.Kind `json:"type"`
	ID        string       `json:"id"`
	Subreddit string       `json:"subreddit"`
	Text      string       `json:"text"`
}

// cached wraps a resolution so a nil Ref can be memoised too.
type cached struct {
	ref *Ref
}

// Locator finds the source record of literal quotes within one snapshot.
// The snapshot must not be modified while the locator is in use.
type Locator struct {
	snap  *account.Snapshot
	cache *lru.Cache[string, cached]
}

// NewLocator creates a locator over s.
func NewLocator(s *account.Snapshot) *Locator {
	cache, _ := lru.New[string, cached](DefaultCacheSize) // only errors on size <= 0
	return &Locator{snap: s, cache: cache}
}

// Resolve returns the first post, then the first comment, containing quote as
// an exact, case-sensitive substring. It returns nil when nothing matches.
func (l *Locator) Resolve(quote string) *Ref {
	if c, ok := l.cache.Get(quote); ok {
		return copyRef(c.ref)
	}
	ref := Find(quote, l.snap)
	l.cache.Add(quote, cached{ref: ref})
	return copyRef(ref)
}

// ResolveAll resolves each quote in order. The result has the same length as
// quotes; unmatched entries are nil.
func (l *Locator) ResolveAll(quotes []string) []*Ref {
	refs := make([]*Ref, len(quotes))
	for i, q := range quotes {
		refs[i] = l.Resolve(q)
	}
	return refs
}

// Find scans the snapshot without memoisation.
func Find(quote string, s *account.Snapshot) *Ref {
	if s == nil {
		return nil
	}
	for _, p := range s.Posts {
		if strings.Contains(p.Title, quote) || strings.Contains(p.SelfText, quote) {
			text := p.SelfText
			if text == "" {
				text = p.Title
			}
			return &Ref{Type: account.KindPost, ID: p.ID, Subreddit: p.Subreddit, Text: text}
		}
	}
	for _, c := range s.Comments {
		if strings.Contains(c.Body, quote) {
			return &Ref{Type: account.KindComment, ID: c.ID, Subreddit: c.Subreddit, Text: c.Body}
		}
	}
	return nil
}

func copyRef(r *Ref) *Ref {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
