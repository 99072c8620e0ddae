// File: internal/infra/adapters/runner/client.go
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"video-analysis-platform/internal/config"
	"video-analysis-platform/internal/domain/ports/adapter"
)

var _ adapter.RunnerClient = (*Client)(nil)

// Client talks to a serverless GPU execution service over HTTP.
// Contract: POST {base}/run dispatches and returns an execution id;
// GET {base}/status/{id} reports one of IN_QUEUE, IN_PROGRESS, COMPLETED,
// FAILED, CANCELLED, TIMED_OUT plus optional output/error; a 404 on status is
// a valid, distinct answer (the run expired or never existed).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.RunnerConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type runRequest struct {
	Input   map[string]any `json:"input"`
	Webhook string         `json:"webhook,omitempty"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (c *Client) Dispatch(ctx context.Context, input map[string]any, webhookURL string) (string, error) {
	body, err := json.Marshal(runRequest{Input: input, Webhook: webhookURL})
	if err != nil {
		return "", fmt.Errorf("marshal run request: %w", err)
	}

	var out runResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body), &out); err != nil {
		return "", fmt.Errorf("dispatch run: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("dispatch run: service returned no execution id")
	}
	return out.ID, nil
}

func (c *Client) Status(ctx context.Context, remoteID string) (*adapter.RunStatus, error) {
	var out statusResponse
	err := c.do(ctx, http.MethodGet, c.baseURL+"/status/"+remoteID, nil, &out)
	if err != nil {
		if errRes, ok := err.(*httpError); ok && errRes.code == http.StatusNotFound {
			return nil, adapter.ErrRunNotFound
		}
		return nil, fmt.Errorf("query run status: %w", err)
	}
	return &adapter.RunStatus{
		State:  adapter.RemoteState(out.Status),
		Output: out.Output,
		Error:  out.Error,
	}, nil
}

func (c *Client) Cancel(ctx context.Context, remoteID string) error {
	err := c.do(ctx, http.MethodPost, c.baseURL+"/cancel/"+remoteID, nil, nil)
	if err != nil {
		if errRes, ok := err.(*httpError); ok && errRes.code == http.StatusNotFound {
			// Already gone; cancelling is idempotent.
			return nil
		}
		return fmt.Errorf("cancel run: %w", err)
	}
	return nil
}

type httpError struct {
	code int
	body string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("runner returned %d: %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &httpError{code: res.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
