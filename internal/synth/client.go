package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/ragbot/internal/logging"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling holds the generation settings sent with each request.
type Sampling struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultSampling bounds output length and keeps randomness low.
var DefaultSampling = Sampling{MaxTokens: 300, Temperature: 0.2, TopP: 0.9}

// CompletionClient sends a conversation to a chat model and returns the text
// of its first choice, which may be empty.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// StatusError is a non-2xx reply from the completion endpoint.
type StatusError struct {
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s: %s", e.Status, e.Body)
}

// HTTPClient calls an OpenAI-compatible /v1/chat/completions endpoint with a
// bearer token.
type HTTPClient struct {
	url      string
	apiKey   string
	model    string
	sampling Sampling
	client   *http.Client
	timeout  time.Duration
}

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Sampling Sampling
}

// NewHTTPClient returns a completion client for opts.URL.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Sampling == (Sampling{}) {
		opts.Sampling = DefaultSampling
	}
	return &HTTPClient{
		url:      opts.URL,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		sampling: opts.Sampling,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false, Proxy: http.ProxyFromEnvironment},
		},
		timeout: opts.Timeout,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ErrMalformedResponse reports a 2xx reply that does not decode as a chat
// completion.
var ErrMalformedResponse = errors.New("malformed completion response")

// Complete posts messages and returns the first choice's content.
func (c *HTTPClient) Complete(ctx context.Context, messages []Message) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.sampling.MaxTokens,
		Temperature: c.sampling.Temperature,
		TopP:        c.sampling.TopP,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	logging.LogRequest("RAGBOT->LLM", c.url, c.model, body)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	logging.LogRequest("LLM->RAGBOT", c.url, c.model, raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Status: resp.Status, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
