package corpus

import (
	"strings"

	"github.com/TobiSchelling/redditpersona/internal/account"
)

// Delimiter separates records in the corpus.
const Delimiter = "---"

// Assemble renders a snapshot as a single text corpus for analysis. Posts come
// first, then comments, each in fetch order. Empty fields are rendered as empty
// strings so every record keeps its block.
func Assemble(s *account.Snapshot) string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range s.Posts {
		b.WriteString("Post Title: ")
		b.WriteString(p.Title)
		b.WriteString("\nPost Body: ")
		b.WriteString(p.SelfText)
		b.WriteString("\n" + Delimiter + "\n")
	}
	for _, c := range s.Comments {
		b.WriteString("Comment: ")
		b.WriteString(c.Body)
		b.WriteString("\n" + Delimiter + "\n")
	}
	return b.String()
}
