// Package client provides a Go client for the causalkg HTTP API.
//
// It covers the causal queries (path, targets, sources), the correlation
// cursor (next, reset) and the health check. The client handles JSON
// serialization, bearer authentication and standardized error handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanonone/causalkg/pkg/engine"
)

// Failure codes reported by the server in APIError.Code.
const (
	CodeMissingMechanism = "MISSING_MECHANISM"
	CodeNoPathFound      = "NO_PATH_FOUND"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInvalidRequest   = "INVALID_REQUEST"
)

// --- Custom Errors ---

// APIError represents an error returned by the causalkg API (status >= 400).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a NO_PATH_FOUND answer, which also
// signals an exhausted correlation table.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNoPathFound
}

// --- JSON Response Structs ---

type pathsResponse struct {
	Paths []engine.View `json:"paths"`
}

// Correlation is one classified correlation record.
type Correlation struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Correlation float64 `json:"correlation"`
	Explainable bool    `json:"explainable"`
	Status      string  `json:"status"`
}

// --- Client ---

// Client is the Go client for interacting with causalkg.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new client. baseURL is e.g. "http://localhost:9191"; an
// empty token sends no Authorization header.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// jsonRequest is a helper method to execute all requests to the API.
// It handles JSON serialization, HTTP calls, and error management.
func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// --- Causal queries ---

// FindPath returns the single edge linking source and target. direction is
// "forward", "reverse" or "" (either). No edge yields an APIError for which
// IsNotFound is true.
func (c *Client) FindPath(ctx context.Context, source, target, direction string) (engine.View, error) {
	payload := map[string]string{"source": source, "target": target}
	if direction != "" {
		payload["direction"] = direction
	}
	var resp pathsResponse
	if err := c.jsonRequest(ctx, http.MethodPost, "/v1/causal/path", payload, &resp); err != nil {
		return engine.View{}, err
	}
	if len(resp.Paths) == 0 {
		return engine.View{}, &APIError{StatusCode: http.StatusOK, Code: CodeNoPathFound, Message: "empty path list"}
	}
	return resp.Paths[0], nil
}

// FindTargets lists what source affects through the mechanism verb.
func (c *Client) FindTargets(ctx context.Context, source, verb string) ([]engine.View, error) {
	var resp pathsResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/causal/targets",
		map[string]string{"source": source, "type": verb}, &resp)
	return resp.Paths, err
}

// FindSources lists what affects target through the mechanism verb.
func (c *Client) FindSources(ctx context.Context, target, verb string) ([]engine.View, error) {
	var resp pathsResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/causal/sources",
		map[string]string{"target": target, "type": verb}, &resp)
	return resp.Paths, err
}

// --- Correlation cursor ---

// NextCorrelation advances source's cursor on the server.
func (c *Client) NextCorrelation(ctx context.Context, source string) (Correlation, error) {
	var resp Correlation
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/correlations/next",
		map[string]string{"source": source}, &resp)
	return resp, err
}

// ResetCorrelations restarts the named cursors, or all of them when none is
// given and the server allows it.
func (c *Client) ResetCorrelations(ctx context.Context, sources ...string) error {
	var payload any
	if len(sources) > 0 {
		payload = map[string][]string{"sources": sources}
	}
	return c.jsonRequest(ctx, http.MethodPost, "/v1/correlations/reset", payload, nil)
}

// --- System ---

// Health calls /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, nil)
}
