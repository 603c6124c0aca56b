// Package ragdex is the Go client for the ragdex HTTP API.
package ragdex

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
)

const defaultTimeout = 2 * time.Minute

// Client talks to a ragdex server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a ragdex API client.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ragdex: base URL required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c, nil
}

// Option configures the Client.
type Option interface {
	apply(*Client)
}

type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.apiKey = key
	})
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	})
}

// WithTimeout sets the per-request timeout. Queries include a model
// generation round-trip, so keep this generous.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	})
}

// Source is one retrieved passage backing an answer.
type Source struct {
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"ordinal"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

// Answer is the result of one query turn.
type Answer struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
}

// Query asks a question. Pass an empty sessionID to start a new session;
// the minted ID is returned in the answer for follow-up turns.
func (c *Client) Query(ctx context.Context, sessionID, question string) (Answer, error) {
	var out Answer
	err := c.post(ctx, "/v1/query", map[string]string{
		"session_id": sessionID,
		"question":   question,
	}, &out)
	return out, err
}

// IngestResult is the outcome of ingesting one document.
type IngestResult struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// IngestReport summarizes a corpus ingestion run.
type IngestReport struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Failed    int            `json:"failed"`
	Results   []IngestResult `json:"results"`
}

// Ingest triggers a full corpus re-ingestion on the server.
func (c *Client) Ingest(ctx context.Context) (IngestReport, error) {
	var out IngestReport
	err := c.post(ctx, "/v1/ingest", struct{}{}, &out)
	return out, err
}

// Turn is one recorded conversation turn.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	At   string `json:"at"`
}

// History returns a session's recorded turns, oldest first.
func (c *Client) History(ctx context.Context, sessionID string) ([]Turn, error) {
	var out struct {
		Turns []Turn `json:"turns"`
	}
	err := c.get(ctx, "/v1/sessions/"+sessionID+"/history", &out)
	return out.Turns, err
}

// Health reports the server's dependency checks.
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	var out struct {
		Checks map[string]string `json:"checks"`
	}
	// /health returns 503 with a body when unhealthy; the checks still parse.
	err := c.get(ctx, "/health", &out)
	return out.Checks, err
}

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragdex: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ragdex: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("ragdex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ragdex: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ragdex: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ragdex: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "unknown"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ragdex: decode response: %w", err)
	}
	return nil
}
