package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vedsharma/apitester/internal/model"
)

// History reads the backend's history log, most recent first as the log
// orders it. A reply that is not a JSON array of entries yields an empty
// history rather than an error; only a call that cannot complete fails.
func (c *Client) History(ctx context.Context) ([]model.HistoryEntry, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	entries, skipped, err := decodeHistory(raw)
	if err != nil {
		c.logger.Warn("history reply unusable, showing empty history",
			"backend_status", resp.StatusCode, "error", err)
		return []model.HistoryEntry{}, nil
	}
	if skipped > 0 {
		c.logger.Warn("skipped history records that are not objects", "skipped", skipped)
	}

	c.logger.Debug("history loaded", "entries", len(entries))
	return entries, nil
}

// decodeHistory requires a JSON array. Records are decoded one by one so a
// malformed record costs only itself.
func decodeHistory(raw []byte) ([]model.HistoryEntry, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, 0, fmt.Errorf("history reply is not a JSON array")
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, 0, err
	}

	entries := make([]model.HistoryEntry, 0, len(records))
	skipped := 0
	for _, rec := range records {
		var e model.HistoryEntry
		if err := e.UnmarshalJSON(rec); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}
