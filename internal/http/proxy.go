package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/vedsharma/apitester/internal/model"
)

// proxyRequest is the body of POST {backend}/proxy
type proxyRequest struct {
	URL     string            `json:"url"`
	Method  model.Method      `json:"method"`
	Headers any               `json:"headers"`
	Body    any               `json:"body"`
	Params  map[string]string `json:"params"`
}

// Execute sends req through the backend proxy. Any JSON reply becomes the
// envelope, whatever status the target or the backend returned.
func (c *Client) Execute(ctx context.Context, req model.Request) (*model.Response, error) {
	checkTarget(c.logger, req.URL)

	payload, err := json.Marshal(proxyRequest{
		URL:     req.URL,
		Method:  req.Method,
		Headers: req.Headers,
		Body:    req.Body,
		Params:  map[string]string{},
	})
	if err != nil {
		return nil, &ExecutionError{Op: "encode", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/proxy", bytes.NewReader(payload))
	if err != nil {
		return nil, &ExecutionError{Op: "send", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debug("proxy call failed", "url", req.URL, "error", err)
		return nil, &ExecutionError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, &ExecutionError{Op: "read", Err: err}
	}

	envelope, err := decodeEnvelope(raw)
	if err != nil {
		return nil, &ExecutionError{Op: "decode", Err: err}
	}

	c.logger.Debug("proxy call completed",
		"method", req.Method,
		"url", req.URL,
		"backend_status", resp.StatusCode,
		"target_status", envelope.Status,
		"elapsed", time.Since(start))
	return envelope, nil
}

// decodeEnvelope extracts the envelope fields from a proxy reply. Fields
// with an unexpected shape are left at their zero value; the reply itself
// is always kept in Raw.
func decodeEnvelope(raw []byte) (*model.Response, error) {
	if !json.Valid(raw) {
		return nil, errors.New("reply is not valid JSON")
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}

	env := &model.Response{Raw: json.RawMessage(raw)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		// Not an object: pass the whole reply through as data.
		env.Data = value
		return env, nil
	}

	env.Status = int(numberField(fields["status"]))
	env.StatusText = stringField(fields["statusText"])
	env.TimeTaken = numberField(fields["timeTaken"])
	env.Size = numberField(fields["size"])
	env.Headers = headerField(fields["headers"])
	env.ErrorMessage = stringField(fields["errorMessage"])
	if data, ok := fields["data"]; ok {
		env.Data, _ = decodeValue(data)
	}
	return env, nil
}

func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func numberField(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(math.Round(f))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Round(n))
		}
	}
	return 0
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func headerField(raw json.RawMessage) map[string]string {
	headers := make(map[string]string)

	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil {
		return headers
	}
	for k, v := range fields {
		headers[k] = stringField(v)
	}
	return headers
}
