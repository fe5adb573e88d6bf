package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/redditpersona/internal/evidence"
	"github.com/TobiSchelling/redditpersona/internal/persona"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	md   = goldmark.New(goldmark.WithExtensions(extension.GFM))
	page = template.Must(template.ParseFS(templateFS, "templates/persona.html"))
)

// Formats accepted by Write.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var traitTitles = map[string]string{
	persona.KeyName:               "Name",
	persona.KeyAge:                "Age",
	persona.KeyOccupation:         "Occupation",
	persona.KeyStatus:             "Status",
	persona.KeyLocation:           "Location",
	persona.KeyTier:               "Tier",
	persona.KeyArchetype:          "Archetype",
	persona.KeyBehaviourAndHabits: "Behaviour and habits",
	persona.KeyFrustrations:       "Frustrations",
	persona.KeyMotivations:        "Motivations",
	persona.KeyPersonality:        "Personality",
	persona.KeyGoalsAndNeeds:      "Goals and needs",
	persona.KeyFeelings:           "Feelings",
}

// Write renders rec to w in the given format.
func Write(w io.Writer, rec *persona.Record, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case FormatMarkdown, "md":
		_, err := io.WriteString(w, Markdown(rec))
		return err
	case FormatHTML:
		out, err := HTML(rec)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Markdown renders rec as a Markdown document.
func Markdown(rec *persona.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# u/%s\n\n", rec.Username)
	fmt.Fprintf(&b, "- Link karma: %d\n- Comment karma: %d\n- Account age: %d days\n",
		rec.LinkKarma, rec.CommentKarma, rec.AccountAgeDays)
	if !rec.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s", rec.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
		if rec.Model != "" {
			fmt.Fprintf(&b, " by %s", rec.Model)
		}
		b.WriteString("\n")
	}
	if missing := rec.MissingKeys(); len(missing) > 0 {
		fmt.Fprintf(&b, "\n> Incomplete: missing %s\n", strings.Join(missing, ", "))
	}

	var sections []string
	for _, key := range persona.TraitKeys {
		t := rec.Trait(key)
		if t == nil {
			continue
		}
		section := fmt.Sprintf("## %s\n\n%s", traitTitles[key], traitValue(t.Value))
		if t.Justification != "" {
			section += "\n\n" + t.Justification
		}
		section += sources(t.Quotes, t.Citations)
		sections = append(sections, section)
	}

	if rec.Feelings != nil {
		var rows []string
		var cited []string
		rec.Feelings.Each(func(category string, f *persona.Feeling) {
			rows = append(rows, fmt.Sprintf("| %s | %d | %s |", category, f.Score, escapeCell(f.Justification)))
			if s := sources(f.Quotes, f.Citations); s != "" {
				cited = append(cited, fmt.Sprintf("### %s%s", category, s))
			}
		})
		section := "## " + traitTitles[persona.KeyFeelings] + "\n\n| Feeling | Score | Why |\n| --- | --- | --- |\n" +
			strings.Join(rows, "\n")
		if len(cited) > 0 {
			section += "\n\n" + strings.Join(cited, "\n\n")
		}
		sections = append(sections, section)
	}

	if len(sections) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(sections, "\n\n---\n\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders rec as a standalone HTML page.
func HTML(rec *persona.Record) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(rec)), &body); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	var out bytes.Buffer
	err := page.Execute(&out, map[string]any{
		"Username": rec.Username,
		"Body":     template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return out.Bytes(), nil
}

func traitValue(v persona.TraitValue) string {
	if !v.IsList {
		return v.Text
	}
	if len(v.List) == 0 {
		return "_none_"
	}
	items := make([]string, len(v.List))
	for i, item := range v.List {
		items[i] = "- " + item
	}
	return strings.Join(items, "\n")
}

func sources(quotes []string, refs []*evidence.Ref) string {
	if len(quotes) == 0 {
		return ""
	}
	lines := make([]string, len(quotes))
	for i, q := range quotes {
		var ref *evidence.Ref
		if i < len(refs) {
			ref = refs[i]
		}
		if ref == nil {
			lines[i] = fmt.Sprintf("- %q (source not found)", q)
			continue
		}
		lines[i] = fmt.Sprintf("- %q (%s %s in r/%s)", q, ref.Type, ref.ID, ref.Subreddit)
	}
	return "\n\n**Sources:**\n" + strings.Join(lines, "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
