// Package apiclient talks to a running ragbot gateway.
package apiclient

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

// Client calls the gateway's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health is the gateway's health payload.
type Health struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	Document   string `json:"document"`
	IndexReady bool   `json:"indexReady"`
}

// Source is a retrieved chunk returned with an answer.
type Source struct {
	Page     int     `json:"page"`
	Sequence int     `json:"sequence"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// QueryResponse is a successful answer.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Success bool     `json:"success"`
	Sources []Source `json:"sources,omitempty"`
}

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	Status int
	Detail string
	Kind   string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("gateway returned %d", e.Status)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Detail)
}

// Health fetches GET /.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/", nil, &h)
	return h, err
}

// Query asks one question.
func (c *Client) Query(ctx context.Context, question string, includeSources bool) (QueryResponse, error) {
	payload := map[string]any{"question": question}
	if includeSources {
		payload["include_sources"] = true
	}
	var out QueryResponse
	err := c.do(ctx, http.MethodPost, "/query", payload, &out)
	return out, err
}

// Ask returns only the answer text.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	resp, err := c.Query(ctx, question, false)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Detail string `json:"detail"`
			Kind   string `json:"kind"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Detail == "" {
			e.Detail = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Detail: e.Detail, Kind: e.Kind}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse gateway response: %w", err)
	}
	return nil
}
