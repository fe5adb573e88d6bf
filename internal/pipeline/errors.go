package pipeline

import (
	"errors"
	"fmt"

	"github.com/TobiSchelling/redditpersona/internal/reddit"
)

// Error kinds. Test with errors.Is.
var (
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	ErrNoSnapshot    = errors.New("no stored snapshot")
	ErrAnalysis      = errors.New("analysis failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrNotFound      = errors.New("not found")

	ErrInvalidUsername = reddit.ErrInvalidUsername
)

// Error describes a failed pipeline operation. Both Kind and the underlying
// cause match errors.Is.
type Error struct {
	Op       string
	Username string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Username, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Username, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(op, username string, kind, err error) *Error {
	return &Error{Op: op, Username: username, Kind: kind, Err: err}
}

// Outcome names the kind of err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidUsername):
		return "invalid_username"
	case errors.Is(err, ErrUpstreamFetch):
		return "upstream_fetch"
	case errors.Is(err, ErrNoSnapshot):
		return "no_snapshot"
	case errors.Is(err, ErrAnalysis):
		return "analysis"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
