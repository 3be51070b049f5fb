package omlet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultTimeout bounds every API call. A hung cloud connection must not
// stall the poll loop indefinitely.
const defaultTimeout = 10 * time.Second

// maxResponseBytes caps response body reads. State documents are a few
// hundred bytes; anything near this limit is garbage.
const maxResponseBytes = 1 << 20 // 1MB

// Client is an HTTP client for the Omlet cloud API.
//
// The client is stateless: the bearer token is supplied per call by the
// session manager, which owns token lifecycle and recovery.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Config contains Omlet client configuration options.
type Config struct {
	// BaseURL is the API root, e.g. "https://x107.omlet.co.uk/api/v1".
	BaseURL string

	// Timeout bounds each HTTP call. Zero means the 10s default.
	Timeout time.Duration
}

// New creates a new Omlet API client.
//
// Returns:
//   - *Client: Ready-to-use client
//   - error: If the base URL is empty
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidInput)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// doJSON performs an HTTP request and returns the response status and body.
//
// Transport-level failures (DNS, connect, timeout) are classified as
// ErrTransient. Status handling is left to the caller because success
// codes differ per endpoint.
func (c *Client) doJSON(ctx context.Context, method, path, token string, reqBody any) (int, []byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrTransient, method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side only

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading response body: %w", ErrTransient, err)
	}

	return resp.StatusCode, data, nil
}
