package composer

import (
	"errors"
	"testing"

	"github.com/vedsharma/apitester/internal/codec"
	"github.com/vedsharma/apitester/internal/model"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	if c.Method != model.MethodGet {
		t.Errorf("Expected method GET, got %s", c.Method)
	}
	if c.URL != "" {
		t.Errorf("Expected empty URL, got %q", c.URL)
	}
	if _, err := codec.Parse(codec.FieldHeaders, c.HeadersText); err != nil {
		t.Errorf("default headers text is not valid JSON: %v", err)
	}
	if _, err := codec.Parse(codec.FieldBody, c.BodyText); err != nil {
		t.Errorf("default body text is not valid JSON: %v", err)
	}
}

func TestBuildRequestMissingURL(t *testing.T) {
	c := New()
	c.URL = "   "
	if _, err := c.BuildRequest(); !errors.Is(err, model.ErrMissingURL) {
		t.Fatalf("BuildRequest() error = %v, want ErrMissingURL", err)
	}
}

func TestBuildRequestGetIgnoresBody(t *testing.T) {
	c := New()
	c.URL = "http://x/y"
	c.HeadersText = "{}"
	c.BodyText = "{this is not json"

	req, err := c.BuildRequest()
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Method != model.MethodGet || req.URL != "http://x/y" {
		t.Errorf("unexpected request %+v", req)
	}
	if b, ok := req.Body.(map[string]any); !ok || len(b) != 0 {
		t.Errorf("Expected empty body, got %#v", req.Body)
	}
	if h, ok := req.Headers.(map[string]any); !ok || len(h) != 0 {
		t.Errorf("Expected empty headers, got %#v", req.Headers)
	}
}

func TestBuildRequestPostParsesBody(t *testing.T) {
	c := New()
	c.URL = "http://x"
	if err := c.SetMethod("post"); err != nil {
		t.Fatalf("SetMethod() error = %v", err)
	}
	c.BodyText = `{"a": 1}`

	req, err := c.BuildRequest()
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	body := req.Body.(map[string]any)
	if body["a"] == nil {
		t.Errorf("Expected body field a, got %#v", body)
	}
}

func TestBuildRequestInvalidHeaders(t *testing.T) {
	c := New()
	c.URL = "http://x"
	c.HeadersText = "{bad json"

	_, err := c.BuildRequest()
	var vErr *codec.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != codec.FieldHeaders {
		t.Fatalf("BuildRequest() error = %v, want headers ValidationError", err)
	}
}

func TestSetMethodRejectsUnknown(t *testing.T) {
	c := New()
	if err := c.SetMethod("TRACE"); err == nil {
		t.Fatal("Expected error for TRACE")
	}
	if c.Method != model.MethodGet {
		t.Errorf("method changed to %s after rejected SetMethod", c.Method)
	}
}

func TestHydrateMissingPartsUsePlaceholder(t *testing.T) {
	c := New()
	c.HydrateHistory(model.HistoryEntry{URL: "http://h", Method: ""})

	if c.Method != model.MethodGet {
		t.Errorf("Expected GET for missing method, got %s", c.Method)
	}
	if c.HeadersText != Placeholder || c.BodyText != Placeholder {
		t.Errorf("Expected placeholders, got %q / %q", c.HeadersText, c.BodyText)
	}

	// The placeholder must itself be accepted by the editor rules.
	c.Method = model.MethodPost
	if _, err := c.BuildRequest(); err != nil {
		t.Errorf("BuildRequest() after hydrate error = %v", err)
	}
}

func TestHydrateSavedPrettyPrints(t *testing.T) {
	c := New()
	c.HydrateSaved(model.SavedRequest{
		URL:     "http://s",
		Method:  "PATCH",
		Headers: map[string]any{"A": "b"},
		Body:    map[string]any{"n": 1},
	})

	if c.Method != model.MethodPatch {
		t.Errorf("Expected PATCH, got %s", c.Method)
	}
	if c.HeadersText != "{\n  \"A\": \"b\"\n}" {
		t.Errorf("unexpected headers text %q", c.HeadersText)
	}
	if c.BodyText != "{\n  \"n\": 1\n}" {
		t.Errorf("unexpected body text %q", c.BodyText)
	}
}
