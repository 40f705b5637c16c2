package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports malformed model output. Callers decide the safe
// default; the raw text is retained for logging.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// decodeModelJSON decodes a JSON value out of model output, tolerating
// markdown fences and surrounding prose.
func decodeModelJSON[T any](raw string) (T, error) {
	var zero T

	text := strings.TrimSpace(raw)
	if text == "" {
		return zero, &ParseError{Raw: raw, Err: fmt.Errorf("empty output")}
	}

	// Strip a ```json fence if present.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	// Cut leading/trailing prose around the outermost JSON value.
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return zero, &ParseError{Raw: raw, Err: fmt.Errorf("no JSON value found")}
	}
	var end int
	if text[start] == '[' {
		end = strings.LastIndex(text, "]")
	} else {
		end = strings.LastIndex(text, "}")
	}
	if end <= start {
		return zero, &ParseError{Raw: raw, Err: fmt.Errorf("unterminated JSON value")}
	}

	var out T
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return zero, &ParseError{Raw: raw, Err: err}
	}
	return out, nil
}
