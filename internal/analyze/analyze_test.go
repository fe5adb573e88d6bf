package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/redditpersona/internal/account"
	"github.com/TobiSchelling/redditpersona/internal/llm"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response   string
	err        error
	configured bool
	prompt     string
	maxTokens  int
}

func (m *mockProvider) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	m.prompt = prompt
	m.maxTokens = maxTokens
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }
func (m *mockProvider) Model() string      { return "mock-model" }

func testSnapshot() *account.Snapshot {
	return &account.Snapshot{
		Username: "someone",
		Posts:    []account.Post{{ID: "p1", Title: "Hello", SelfText: "I love my new job as a teacher"}},
		Comments: []account.Comment{{ID: "c1", Body: "Coffee first."}},
	}
}

func validResponse(t *testing.T) string {
	t.Helper()
	field := func(v any) map[string]any {
		return map[string]any{"value": v, "justification": "j", "citations": []string{}}
	}
	score := map[string]any{"score": 50, "justification": "j", "citations": []string{}}
	data, err := json.Marshal(map[string]any{
		"name":        field("Unknown"),
		"age":         field("unknown"),
		"occupation":  field("teacher"),
		"personality": field([]string{"upbeat"}),
		"feelings": map[string]any{
			"happiness": score, "anger": score, "anxiety": score, "sadness": score, "confidence": score,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestAnalyzeParsesResponse(t *testing.T) {
	provider := &mockProvider{response: "```json\n" + validResponse(t) + "\n```", configured: true}
	a := NewAnalyzer(provider, Options{}, nil)

	var observed int
	a.Observe = func(time.Duration, error) { observed++ }

	traits, err := a.Analyze(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if traits.Occupation == nil || traits.Occupation.Value.Text != "teacher" {
		t.Errorf("expected occupation teacher, got %+v", traits.Occupation)
	}
	if provider.maxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", DefaultMaxTokens, provider.maxTokens)
	}
	if observed != 1 {
		t.Errorf("expected one observation, got %d", observed)
	}
}

func TestAnalyzePromptContainsCorpus(t *testing.T) {
	provider := &mockProvider{response: validResponse(t), configured: true}
	a := NewAnalyzer(provider, Options{MaxTokens: 100}, nil)

	if _, err := a.Analyze(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Post Title: Hello\nPost Body: I love my new job as a teacher\n---\n",
		"Comment: Coffee first.\n---\n",
		`"goals_and_needs"`,
		"0 (not present) to 100 (very strong)",
	} {
		if !strings.Contains(provider.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if provider.maxTokens != 100 {
		t.Errorf("expected max tokens 100, got %d", provider.maxTokens)
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	a := NewAnalyzer(&mockProvider{response: "not json at all", configured: true}, Options{}, nil)

	_, err := a.Analyze(context.Background(), testSnapshot())
	if !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestAnalyzeProviderError(t *testing.T) {
	boom := errors.New("quota exceeded")
	a := NewAnalyzer(&mockProvider{err: boom, configured: true}, Options{}, nil)

	_, err := a.Analyze(context.Background(), testSnapshot())
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if errors.Is(err, llm.ErrMalformedResponse) {
		t.Error("provider error must not be reported as malformed")
	}
}

func TestAnalyzeNoProvider(t *testing.T) {
	a := NewAnalyzer(nil, Options{}, nil)
	if _, err := a.Analyze(context.Background(), testSnapshot()); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if a.Model() != "" {
		t.Errorf("expected empty model, got %q", a.Model())
	}

	a = NewAnalyzer(&mockProvider{configured: false}, Options{}, nil)
	if _, err := a.Analyze(context.Background(), testSnapshot()); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider for unconfigured provider, got %v", err)
	}
}

func TestAnalyzeRepairOption(t *testing.T) {
	broken := strings.TrimSuffix(validResponse(t), "}") + ",}"

	strict := NewAnalyzer(&mockProvider{response: broken, configured: true}, Options{}, nil)
	if _, err := strict.Analyze(context.Background(), testSnapshot()); !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("expected strict parse to fail, got %v", err)
	}

	lenient := NewAnalyzer(&mockProvider{response: broken, configured: true}, Options{RepairJSON: true}, nil)
	if _, err := lenient.Analyze(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("expected repaired parse to succeed, got %v", err)
	}
}
