package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.PersonaGenerated(context.Background(), PersonaGenerated{Username: "x"}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	p.Close()
}

func TestSubjectPrefix(t *testing.T) {
	c := &Client{}
	if got := c.Subject(SubjectPersonaGenerated); got != "persona.generated" {
		t.Errorf("unexpected subject %q", got)
	}
	c.prefix = "swarm"
	if got := c.Subject(SubjectPersonaGenerated); got != "swarm.persona.generated" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestPersonaGeneratedPayload(t *testing.T) {
	ev := PersonaGenerated{
		Username:    "spez",
		AnalysisID:  "a-1",
		Complete:    true,
		Resolved:    3,
		Unresolved:  1,
		GeneratedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	json.Unmarshal(data, &got)
	for _, key := range []string{"username", "analysis_id", "complete", "generated_at", "citations_resolved"} {
		if _, ok := got[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
}
