package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoPayload is returned when none of the extraction strategies finds a
// parseable JSON object in the model output.
var ErrNoPayload = errors.New("no valid structured payload")

// ExtractionError wraps ErrNoPayload and keeps the raw model output so that
// callers can log it for diagnostics.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Extract parses a JSON object out of free-form model output.
// The model is supposed to answer with pure JSON but is not guaranteed to, so
// strategies are tried in strict priority order, first success wins:
//  1. fenced code block (optionally tagged json)
//  2. first '{' to last '}' span
//  3. same span with single quotes replaced by double quotes
//
// Every success path goes through a strict json.Unmarshal; malformed data is
// never accepted silently.
func Extract(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ExtractionError{Raw: raw, Err: ErrNoPayload}
	}
	strategies := []func(string) (map[string]any, bool){
		fromFencedBlock,
		fromBraceSpan,
		fromQuoteRepair,
	}
	for _, try := range strategies {
		if obj, ok := try(raw); ok {
			return obj, nil
		}
	}
	return nil, &ExtractionError{Raw: raw, Err: ErrNoPayload}
}

func fromFencedBlock(raw string) (map[string]any, bool) {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return parseStrict(m[1])
}

func fromBraceSpan(raw string) (map[string]any, bool) {
	span, ok := braceSpan(raw)
	if !ok {
		return nil, false
	}
	return parseStrict(span)
}

func fromQuoteRepair(raw string) (map[string]any, bool) {
	span, ok := braceSpan(raw)
	if !ok {
		return nil, false
	}
	return parseStrict(strings.ReplaceAll(span, "'", `"`))
}

// braceSpan returns the greedy span from the first '{' to the last '}'.
func braceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseStrict(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
