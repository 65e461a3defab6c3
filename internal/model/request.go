package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Method is an HTTP method the composer can send
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// Methods lists the supported methods in the order they are offered to the user
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch}

// ParseMethod normalizes s and checks it against the supported methods
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported method %q (expected one of GET, POST, PUT, DELETE, PATCH)", s)
}

// AllowsBody reports whether requests with this method carry a body.
// GET and DELETE never do.
func (m Method) AllowsBody() bool {
	return m != MethodGet && m != MethodDelete
}

// Request is the validated request built from the composer
type Request struct {
	Method  Method `json:"method"`
	URL     string `json:"url"`
	Headers any    `json:"headers"`
	Body    any    `json:"body"`
}

// Response is the envelope returned by the proxy for one call.
// Raw holds the reply exactly as received.
type Response struct {
	Status       int               `json:"status"`
	StatusText   string            `json:"statusText"`
	TimeTaken    int64             `json:"timeTaken"`
	Size         int64             `json:"size"`
	Headers      map[string]string `json:"headers"`
	Data         any               `json:"data"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Raw          json.RawMessage   `json:"-"`
}

// EntryID is a history id. The log may hand out strings or numbers.
type EntryID string

// UnmarshalJSON accepts a JSON string, number or null
func (id *EntryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EntryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("history id must be a string or number: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

// HistoryEntry is one record of the external history log
type HistoryEntry struct {
	ID        EntryID `json:"id"`
	URL       string  `json:"url"`
	Method    string  `json:"method"`
	Headers   any     `json:"headers"`
	Body      any     `json:"body"`
	Status    *int    `json:"status"`
	Timestamp string  `json:"timestamp"`
}

// UnmarshalJSON decodes a log record without trusting the field types.
// A field with an unexpected shape is left at its zero value; only a
// record that is not a JSON object is rejected.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("history entry must be an object: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("history entry must be an object, got null")
	}

	*e = HistoryEntry{}
	if raw, ok := fields["id"]; ok {
		var id EntryID
		if id.UnmarshalJSON(raw) == nil {
			e.ID = id
		}
	}
	e.URL = looseText(fields["url"])
	e.Method = looseText(fields["method"])
	e.Timestamp = looseText(fields["timestamp"])
	e.Status = looseInt(fields["status"])
	e.Headers = looseValue(fields["headers"])
	e.Body = looseValue(fields["body"])
	return nil
}

// looseText reads a string, or a number as its literal text
func looseText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// looseInt reads a number or a numeric string; anything else is absent
func looseInt(raw json.RawMessage) *int {
	text := looseText(raw)
	if text == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func looseValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if dec.Decode(&v) != nil {
		return nil
	}
	return v
}

// SavedRequest is a request snapshot stored in a collection
type SavedRequest struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Method  string    `json:"method"`
	Headers any       `json:"headers"`
	Body    any       `json:"body"`
	SavedAt time.Time `json:"savedAt"`
}

// Collection is a named group of saved requests, most recent first
type Collection struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Items []SavedRequest `json:"items"`
}
