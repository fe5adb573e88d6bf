package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/TobiSchelling/redditpersona/internal/llm"
)

// ParseOptions tune ParseTraits.
type ParseOptions struct {
	// RepairJSON lets syntactically broken output through jsonrepair before
	// the schema checks run.
	RepairJSON bool
}

// ParseTraits strips code fences from a model response and decodes it into
// Traits. All required keys must be present, every feeling category must be
// scored, and scores must be integers in [0,100]. Every failure wraps
// llm.ErrMalformedResponse; nothing is zero-filled.
func ParseTraits(text string, opts ParseOptions) (*Traits, error) {
	var raw map[string]json.RawMessage
	if err := llm.DecodeJSON(text, &raw, opts.RepairJSON); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, malformed("top-level value is not an object")
	}

	t := &Traits{}
	for _, slot := range t.slots() {
		msg, ok := raw[slot.key]
		if !ok || isNull(msg) {
			continue
		}
		field, err := decodeTraitField(msg)
		if err != nil {
			return nil, malformed("trait %q: %v", slot.key, err)
		}
		*slot.field = field
	}

	if msg, ok := raw[KeyFeelings]; ok && !isNull(msg) {
		feelings, err := decodeFeelings(msg)
		if err != nil {
			return nil, malformed("feelings: %v", err)
		}
		t.Feelings = feelings
	}

	if missing := t.missingKeys(); len(missing) > 0 {
		return nil, malformed("missing required keys %v", missing)
	}
	return t, nil
}

func (t *Traits) missingKeys() []string {
	present := map[string]bool{
		KeyName:        t.Name != nil,
		KeyAge:         t.Age != nil,
		KeyOccupation:  t.Occupation != nil,
		KeyPersonality: t.Personality != nil,
		KeyFeelings:    t.Feelings != nil,
	}
	var missing []string
	for _, key := range RequiredKeys {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	return missing
}

func decodeTraitField(msg json.RawMessage) (*TraitField, error) {
	var shape struct {
		Value         *TraitValue `json:"value"`
		Justification string      `json:"justification"`
		Citations     []string    `json:"citations"`
	}
	if err := json.Unmarshal(msg, &shape); err != nil {
		return nil, err
	}
	if shape.Value == nil {
		return nil, fmt.Errorf("missing value")
	}
	citations := shape.Citations
	if citations == nil {
		citations = []string{}
	}
	return &TraitField{
		Value:         *shape.Value,
		Justification: shape.Justification,
		Citations:     citations,
	}, nil
}

func decodeFeelings(msg json.RawMessage) (*Feelings, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}

	f := &Feelings{}
	for _, slot := range f.slots() {
		entry, ok := raw[slot.category]
		if !ok || isNull(entry) {
			return nil, fmt.Errorf("missing category %q", slot.category)
		}
		score, err := decodeFeelingScore(entry)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", slot.category, err)
		}
		*slot.score = score
	}
	return f, nil
}

func decodeFeelingScore(msg json.RawMessage) (*FeelingScore, error) {
	var shape struct {
		Score         *json.Number `json:"score"`
		Justification string       `json:"justification"`
		Citations     []string     `json:"citations"`
	}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	if err := dec.Decode(&shape); err != nil {
		return nil, err
	}
	if shape.Score == nil {
		return nil, fmt.Errorf("missing score")
	}

	f, err := shape.Score.Float64()
	if err != nil {
		return nil, fmt.Errorf("score %q is not a number", shape.Score.String())
	}
	if f != math.Trunc(f) || f < 0 || f > 100 {
		return nil, fmt.Errorf("score %s is not an integer in [0,100]", shape.Score.String())
	}

	citations := shape.Citations
	if citations == nil {
		citations = []string{}
	}
	return &FeelingScore{
		Score:         int(f),
		Justification: shape.Justification,
		Citations:     citations,
	}, nil
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", llm.ErrMalformedResponse, fmt.Sprintf(format, args...))
}
