// Package codec parses the JSON text typed into the header and body editors
// and renders structured values back into editor text.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vedsharma/apitester/internal/model"
)

const (
	FieldHeaders = "headers"
	FieldBody    = "body"
)

// ValidationError reports malformed JSON in one editor field
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid JSON in %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Message is the inline text shown next to the offending editor
func (e *ValidationError) Message() string {
	switch e.Field {
	case FieldHeaders:
		return "Invalid JSON in Headers."
	case FieldBody:
		return "Invalid JSON in Body."
	}
	return "Invalid JSON."
}

// EmptyObject returns a fresh {} value
func EmptyObject() map[string]any {
	return map[string]any{}
}

// Parse decodes text as a single JSON value. Blank text is {}.
func Parse(field, text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return EmptyObject(), nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ValidationError{Field: field, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, &ValidationError{Field: field, Err: err}
	}
	return v, nil
}

// ParseParts applies the shared header/body rules for a method.
// Body text is ignored entirely when the method carries no body.
func ParseParts(method model.Method, headersText, bodyText string) (headers, body any, err error) {
	headers, err = Parse(FieldHeaders, headersText)
	if err != nil {
		return nil, nil, err
	}

	if !method.AllowsBody() {
		return headers, EmptyObject(), nil
	}

	body, err = Parse(FieldBody, bodyText)
	if err != nil {
		return nil, nil, err
	}
	return headers, body, nil
}

// Format pretty-prints v with two-space indentation. Values that cannot be
// marshalled fall back to their fmt representation.
func Format(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
