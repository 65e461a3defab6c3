package composer

import (
	"strings"

	"github.com/vedsharma/apitester/internal/codec"
	"github.com/vedsharma/apitester/internal/model"
)

const (
	// Placeholder is shown for a hydrated record that has no headers or body
	Placeholder = "{\n  \n}"

	defaultHeadersText = "{\n  \"Content-Type\": \"application/json\"\n}"
	defaultBodyText    = "{\n  \"title\": \"foo\",\n  \"body\": \"bar\",\n  \"userId\": 1\n}"
)

// Composer holds the editable request exactly as the user typed it
type Composer struct {
	Method      model.Method
	URL         string
	HeadersText string
	BodyText    string
}

// New returns a composer with the default editor contents
func New() *Composer {
	return &Composer{
		Method:      model.MethodGet,
		HeadersText: defaultHeadersText,
		BodyText:    defaultBodyText,
	}
}

// SetMethod switches the method. Unknown methods leave the composer unchanged.
func (c *Composer) SetMethod(s string) error {
	m, err := model.ParseMethod(s)
	if err != nil {
		return err
	}
	c.Method = m
	return nil
}

// BuildRequest validates the editor contents and derives a Request
func (c *Composer) BuildRequest() (model.Request, error) {
	url := strings.TrimSpace(c.URL)
	if url == "" {
		return model.Request{}, model.ErrMissingURL
	}

	headers, body, err := codec.ParseParts(c.Method, c.HeadersText, c.BodyText)
	if err != nil {
		return model.Request{}, err
	}

	return model.Request{
		Method:  c.Method,
		URL:     url,
		Headers: headers,
		Body:    body,
	}, nil
}

// Hydrate replaces the editor contents with a stored record
func (c *Composer) Hydrate(method, url string, headers, body any) {
	m, err := model.ParseMethod(method)
	if err != nil {
		m = model.MethodGet
	}
	c.Method = m
	c.URL = url
	c.HeadersText = editorText(headers)
	c.BodyText = editorText(body)
}

// HydrateHistory loads a history entry into the editor
func (c *Composer) HydrateHistory(e model.HistoryEntry) {
	c.Hydrate(e.Method, e.URL, e.Headers, e.Body)
}

// HydrateSaved loads a saved collection item into the editor
func (c *Composer) HydrateSaved(item model.SavedRequest) {
	c.Hydrate(item.Method, item.URL, item.Headers, item.Body)
}

func editorText(v any) string {
	if v == nil {
		return Placeholder
	}
	return codec.Format(v)
}
