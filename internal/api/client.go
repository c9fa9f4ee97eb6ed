// Package api is the HTTP client for the answer-generation, session, history
// and feedback services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/iksnae/chat-session/internal"
)

const apiKeyHeader = "X-API-Key"

// Config configures a Client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the remote services over HTTP
type Client struct {
	http *resty.Client

	mu                  sync.Mutex
	apiKey              string
	onInvalidCredential func()
}

// NewClient creates a new API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = internal.DefaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = internal.DefaultBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c := &Client{http: httpClient}
	c.SetAPIKey(cfg.APIKey)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if key := c.currentKey(); key != "" {
			req.SetHeader(apiKeyHeader, key)
		}
		return nil
	})
	return c
}

// SetAPIKey replaces the credential sent with every request. It is safe to
// call while requests are in flight.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey
}

// OnInvalidCredential registers a callback run when the service rejects the credential
func (c *Client) OnInvalidCredential(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInvalidCredential = fn
}

func (c *Client) credentialRejected() {
	c.mu.Lock()
	c.apiKey = ""
	fn := c.onInvalidCredential
	c.mu.Unlock()
	internal.LogWarn("API key is invalid or expired")
	if fn != nil {
		fn()
	}
}

// errorBody is the service's error payload; detail may be a string or a list
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

func (b *errorBody) message(resp *resty.Response) string {
	if len(b.Detail) > 0 && string(b.Detail) != "null" {
		var s string
		if err := json.Unmarshal(b.Detail, &s); err == nil && s != "" {
			return s
		}
		return string(b.Detail)
	}
	if b.Error != "" {
		return b.Error
	}
	if text := http.StatusText(resp.StatusCode()); text != "" {
		return text
	}
	return "Unknown error occurred"
}

// do executes a request and maps failures onto *internal.APIError
func (c *Client) do(ctx context.Context, op, method, path string, body, result interface{}, configure func(*resty.Request)) error {
	var failure errorBody
	req := c.http.R().
		SetContext(ctx).
		SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if configure != nil {
		configure(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &internal.APIError{Op: op, Message: err.Error(), Err: err}
	}

	internal.Logger().WithField("op", op).
		WithField("status", resp.StatusCode()).
		WithField("elapsed", time.Since(start)).
		Debug("api call")

	if resp.IsError() {
		apiErr := &internal.APIError{Op: op, StatusCode: resp.StatusCode(), Message: failure.message(resp)}
		if errors.Is(apiErr, internal.ErrInvalidCredential) {
			c.credentialRejected()
		}
		return apiErr
	}
	return nil
}

// Ask sends a question to the answer-generation service
func (c *Client) Ask(ctx context.Context, req internal.AskRequest) (*internal.Answer, error) {
	var answer internal.Answer
	if err := c.do(ctx, "ask", http.MethodPost, "/questions/adaptive", req, &answer, nil); err != nil {
		return nil, err
	}
	return &answer, nil
}

type sessionsResponse struct {
	UserID        string                   `json:"user_id"`
	TotalSessions int                      `json:"total_sessions"`
	Sessions      []internal.SessionRecord `json:"sessions"`
}

// ListSessions lists a user's sessions
func (c *Client) ListSessions(ctx context.Context, userID string, limit int) ([]internal.SessionRecord, error) {
	var out sessionsResponse
	err := c.do(ctx, "list_sessions", http.MethodGet, "/users/{userId}/sessions", nil, &out, func(r *resty.Request) {
		r.SetPathParam("userId", userID)
		if limit > 0 {
			r.SetQueryParam("limit", strconv.Itoa(limit))
		}
	})
	if err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

type createSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// CreateSession creates a session; a blank title is left to the server
func (c *Client) CreateSession(ctx context.Context, userID, title string) (*internal.SessionRecord, error) {
	var out internal.SessionRecord
	body := createSessionRequest{Title: strings.TrimSpace(title)}
	err := c.do(ctx, "create_session", http.MethodPost, "/users/{userId}/sessions", body, &out, func(r *resty.Request) {
		r.SetPathParam("userId", userID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession deletes a session
func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return c.do(ctx, "delete_session", http.MethodDelete, "/users/{userId}/sessions/{sessionId}", nil, nil, func(r *resty.Request) {
		r.SetPathParams(map[string]string{
			"userId":    userID,
			"sessionId": sessionID,
		})
	})
}

type historyResponse struct {
	UserID     string          `json:"user_id"`
	TotalTurns int             `json:"total_turns"`
	Turns      []internal.Turn `json:"turns"`
}

// FetchHistory returns up to limit turns of a session in chronological order.
// The history service keys conversations by session id.
func (c *Client) FetchHistory(ctx context.Context, sessionID string, limit int) ([]internal.Turn, error) {
	var out historyResponse
	err := c.do(ctx, "history", http.MethodGet, "/users/{sessionId}/history", nil, &out, func(r *resty.Request) {
		r.SetPathParam("sessionId", sessionID)
		if limit > 0 {
			r.SetQueryParam("last_n_turns", strconv.Itoa(limit))
		}
	})
	if err != nil {
		return nil, err
	}
	return out.Turns, nil
}

// SubmitFeedback sends feedback for one turn
func (c *Client) SubmitFeedback(ctx context.Context, req internal.FeedbackRequest) error {
	return c.do(ctx, "feedback", http.MethodPost, "/feedback", req, nil, nil)
}

// Health checks the service status
func (c *Client) Health(ctx context.Context) (*internal.HealthStatus, error) {
	var out internal.HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns service-wide usage statistics
func (c *Client) Stats(ctx context.Context) (*internal.Stats, error) {
	var out internal.Stats
	if err := c.do(ctx, "stats", http.MethodGet, "/stats", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
