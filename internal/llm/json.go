package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrMalformedResponse reports LLM output that does not fit the expected JSON shape.
var ErrMalformedResponse = errors.New("malformed LLM response")

// StripCodeFence removes a markdown code fence wrapped around text, e.g.
// "```json\n{...}\n```". Text without a leading fence is only trimmed.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		// Single line: ```{...}```
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		return strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}

	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	// The opening line may carry JSON after the language tag: ```json {
	body := lines[1:endIdx]
	if head := fenceHead(lines[0]); head != "" {
		body = append([]string{head}, body...)
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// fenceHead returns the JSON that follows the fence and language tag on an
// opening fence line, or "" when the line holds only the fence.
func fenceHead(line string) string {
	rest := strings.TrimPrefix(strings.TrimSpace(line), "```")
	if i := strings.IndexAny(rest, "{["); i >= 0 {
		return rest[i:]
	}
	return ""
}

// DecodeJSON strips code fences from an LLM response and decodes it into v.
// With repair set, text that fails to decode is passed once through jsonrepair.
// Every failure wraps ErrMalformedResponse.
func DecodeJSON(text string, v any, repair bool) error {
	text = StripCodeFence(text)
	if text == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	if !repair {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	fixed, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return fmt.Errorf("%w: %v (repair failed: %v)", ErrMalformedResponse, err, repairErr)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return fmt.Errorf("%w: repaired JSON still invalid: %v", ErrMalformedResponse, err)
	}
	return nil
}
