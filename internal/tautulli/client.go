// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package tautulli implements the HTTP client for the Tautulli API v2
// history source: API-key authentication, HTTP 429 handling with
// exponential backoff, and paginated history retrieval.
package tautulli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tomtom215/plexmap/internal/config"
)

// maxErrorBodySize limits how much of a response body is read for error
// reporting, preventing unbounded allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Client handles communication with the Tautulli HTTP API.
//
// Requests carry the API key as a query parameter. HTTP 429 responses are
// retried with exponential backoff (1s, 2s, 4s, 8s, 16s), honoring a
// Retry-After header when present.
//
// Thread Safety: safe for concurrent use; each request creates its own
// HTTP request.
type Client struct {
	baseURL        string
	apiKey         string
	pageSize       int
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a Tautulli API client from the provided configuration.
func NewClient(cfg *config.TautulliConfig) *Client {
	return &Client{
		baseURL:  cfg.URL,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// doRequestWithRateLimit performs an HTTP GET with automatic rate limit
// handling. The context cancels both the request and the backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close() // retrying anyway

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Honor Retry-After (RFC 6585) when the server provides one.
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// apiURL builds a full API request URL with the apikey and cmd parameters set.
func (c *Client) apiURL(cmd string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)
	return fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())
}

// Ping verifies connectivity to the Tautulli API before any history fetch.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequestWithRateLimit(ctx, c.apiURL("arnold", nil))
	if err != nil {
		return fmt.Errorf("failed to ping Tautulli: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Tautulli ping failed with status: %d", resp.StatusCode)
	}

	return nil
}
