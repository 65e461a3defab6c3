package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// MaxResponseSize limits backend replies to 50MB to prevent memory exhaustion
	MaxResponseSize = 50 * 1024 * 1024
)

// Config holds configuration for creating a Client
type Config struct {
	// BaseURL is the backend address, e.g. "http://localhost:5000"
	BaseURL string
	// HTTPClient is used for all calls. If nil, a client without a timeout
	// is used; a hung backend is left to the network stack.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the backend that proxies requests and keeps the history log
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a backend client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", cfg.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend URL scheme: %q (only http and https are allowed)", parsed.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}, nil
}

// BaseURL returns the backend address without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// readBody reads a reply body with a size limit
func readBody(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("reply exceeds %d bytes", MaxResponseSize)
	}
	return body, nil
}
