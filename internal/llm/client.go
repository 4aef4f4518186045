// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/config"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds a whole streamed reply.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is how many times a request is retried on 429 or
	// 5xx before any content has arrived.
	DefaultMaxRetries = 2

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024

	userAgent = "retort/0.1"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoAPIKey indicates no API key is configured.
	ErrNoAPIKey = errors.New("llm API key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError indicates a 5xx from the provider.
	ErrServerError = errors.New("server error")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("llm error (HTTP %d): %s", e.Status, e.Message)
}

// Is maps status codes onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrServerError:
		return e.Status >= 500 && e.Status < 600
	}
	return false
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one message of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body posted to /chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one chat completions endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	temperature  float64
	timeout      time.Duration
	maxRetries   int
	backoff      time.Duration

	httpClient *http.Client
	clock      clockwork.Clock
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the clock used for retry backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithRetries sets the retry count and base backoff.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.backoff = base
	}
}

// New builds a Client from the llm config section.
func New(cfg config.LLMConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
		maxRetries:   DefaultMaxRetries,
		backoff:      retryBaseDelay,
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
	}
	if c.baseURL == "" {
		c.baseURL = config.DefaultBaseURL
	}
	if c.model == "" {
		c.model = config.DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		// No client timeout: streams are bounded by the request context.
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return c
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

// Model returns the model identifier.
func (c *Client) Model() string { return c.model }

// BuildRequest returns the streaming request body for one utterance.
func (c *Client) BuildRequest(userText string) ChatRequest {
	return ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: userText},
		},
		Stream:      true,
		Temperature: c.temperature,
	}
}

// handleErrorResponse converts an error response into an *APIError.
func handleErrorResponse(status int, body io.Reader) error {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var apiErr apiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &APIError{Status: status, Code: apiErr.Error.Code, Message: apiErr.Error.Message}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// isRetryable reports whether a failed attempt may be retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError)
}

// calculateBackoff returns the delay before retry number attempt (1-based).
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.backoff * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
