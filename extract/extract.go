// Package extract evaluates path expressions against structured message
// payloads. The multiplexer applies an extractor per listener so each
// widget sees only the sub-value it asked for.
package extract

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
)

// Extractor selects a sub-value from a raw message payload. Implementations
// must be safe for concurrent use; the dispatch loop calls Extract from a
// single goroutine but diagnostics may probe paths concurrently.
type Extractor interface {
	// Extract evaluates path against payload and returns the selected
	// value. It fails when the payload is malformed or the path matches
	// nothing.
	Extract(payload []byte, path string) (any, error)
}

// JSONExtractor evaluates gjson path expressions against JSON payloads.
// The zero value is ready to use.
type JSONExtractor struct{}

// NewJSONExtractor creates a JSON path extractor.
func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

// Extract evaluates a gjson path against a JSON payload. Numbers come back
// as float64, objects and arrays as their decoded Go forms.
func (e *JSONExtractor) Extract(payload []byte, path string) (any, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidPath, "extract", "Extract", "empty path")
	}
	if !gjson.ValidBytes(payload) {
		return nil, errors.WrapInvalid(errors.ErrMalformedPayload, "extract", "Extract", "invalid JSON payload")
	}

	result := gjson.GetBytes(payload, path)
	if !result.Exists() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrExtractionFailed, path),
			"extract", "Extract", "path matched nothing")
	}
	return result.Value(), nil
}
