// Package transport is the client side of the veristream API: a REST
// client for the session endpoints and a WebSocket stream for live
// progress events.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/veristream/internal/model"
)

// Client talks to a veristream server over REST
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a REST client for the given base URL, e.g.
// "http://localhost:8000". A zero timeout defaults to 30 seconds.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// AnalyzeResponse is the server's answer to an analyze call
type AnalyzeResponse struct {
	Status    model.SessionStatus `json:"status"`
	SessionID string              `json:"session_id"`
	Claims    []model.Claim       `json:"claims"`
	Message   string              `json:"message"`
}

// VerifySingleResponse wraps the result of a one-off verification
type VerifySingleResponse struct {
	Status    model.SessionStatus      `json:"status"`
	SessionID string                   `json:"session_id"`
	Result    model.VerificationResult `json:"result"`
}

// CreateSession allocates a new session and returns its id
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/api/create-session", nil, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// AnalyzeText submits raw text for claim extraction. An empty sessionID
// lets the server allocate one.
func (c *Client) AnalyzeText(ctx context.Context, sessionID, text string) (AnalyzeResponse, error) {
	var resp AnalyzeResponse
	err := c.post(ctx, "/api/analyze-text", map[string]string{
		"text":       text,
		"session_id": sessionID,
	}, &resp)
	return resp, err
}

// AnalyzeURL fetches an article server-side and extracts claims from it
func (c *Client) AnalyzeURL(ctx context.Context, sessionID, url string) (AnalyzeResponse, error) {
	var resp AnalyzeResponse
	err := c.post(ctx, "/api/analyze-url", map[string]string{
		"url":        url,
		"session_id": sessionID,
	}, &resp)
	return resp, err
}

// ConfirmClaims starts background verification of the confirmed claims
func (c *Client) ConfirmClaims(ctx context.Context, sessionID string, claims []model.Claim) error {
	return c.post(ctx, "/api/confirm-claims", map[string]any{
		"session_id":       sessionID,
		"confirmed_claims": claims,
	}, nil)
}

// VerifySingle verifies one claim synchronously
func (c *Client) VerifySingle(ctx context.Context, sessionID, claim string) (VerifySingleResponse, error) {
	var resp VerifySingleResponse
	err := c.post(ctx, "/api/verify-single", map[string]string{
		"claim":      claim,
		"session_id": sessionID,
	}, &resp)
	return resp, err
}

// DeleteSession removes a session from the server
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/session/"+sessionID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Health probes the server's health endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return apiError(req, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// apiError surfaces the server's detail message when one is present
func apiError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
		return fmt.Errorf("%s %s: %s (HTTP %d)", req.Method, req.URL.Path, detail.Detail, resp.StatusCode)
	}
	return fmt.Errorf("%s %s: HTTP %d", req.Method, req.URL.Path, resp.StatusCode)
}
