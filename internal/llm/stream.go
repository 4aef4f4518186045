// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// MaxEventSize caps a single SSE event.
const MaxEventSize = 64 * 1024

// =============================================================================
// STREAM TYPES
// =============================================================================

// StreamChunk is one decoded SSE payload.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Content returns the first choice's delta text.
func (c *StreamChunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// Done reports whether the first choice carries a finish reason.
func (c *StreamChunk) Done() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != nil && *c.Choices[0].FinishReason != ""
}

// StreamError is a failure after some content was already delivered.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted after %d chars: %v", len([]rune(e.Partial)), e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error { return e.Err }

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader wraps r.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the joined data lines of the next event, or io.EOF.
// Non-data fields and comments are skipped.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var data [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF && len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			field := bytes.TrimPrefix(line[5:], []byte(" "))
			size += len(field)
			if size > MaxEventSize {
				return nil, fmt.Errorf("sse event exceeds %d bytes", MaxEventSize)
			}
			data = append(data, field)
		}

		if err == io.EOF {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			return nil, io.EOF
		}
	}
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream sends userText and calls onDelta for each non-empty content delta,
// in order, from the calling goroutine. It returns nil when the provider
// signals completion. Requests failing with 429 or 5xx are retried with
// backoff; once a delta has been delivered failures are returned as
// *StreamError.
func (c *Client) Stream(ctx context.Context, userText string, onDelta func(string)) error {
	if !c.IsConfigured() {
		return ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.BuildRequest(userText))
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			c.logger.Warn("retrying llm request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(delay):
			}
		}

		resp, err := c.send(ctx, body)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}
		return c.consume(ctx, resp, onDelta)
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) send(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, handleErrorResponse(resp.StatusCode, resp.Body)
	}
	return resp, nil
}

func (c *Client) consume(ctx context.Context, resp *http.Response, onDelta func(string)) error {
	defer resp.Body.Close()

	reader := NewSSEReader(resp.Body)
	var partial strings.Builder
	chunks := 0

	fail := func(err error) error {
		if partial.Len() == 0 {
			return err
		}
		return &StreamError{Partial: partial.String(), Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Debug("llm stream closed without [DONE]", zap.Int("chunks", chunks))
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(fmt.Errorf("read stream: %w", err))
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			c.logger.Debug("llm stream done", zap.Int("chunks", chunks))
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			c.logger.Debug("skipping malformed chunk", zap.Error(err))
			continue
		}

		if text := chunk.Content(); text != "" {
			chunks++
			partial.WriteString(text)
			onDelta(text)
		}
		if chunk.Done() {
			c.logger.Debug("llm stream finished", zap.Int("chunks", chunks))
			return nil
		}
	}
}

// Complete streams a reply and returns it whole.
func (c *Client) Complete(ctx context.Context, userText string) (string, error) {
	var sb strings.Builder
	err := c.Stream(ctx, userText, func(delta string) { sb.WriteString(delta) })
	return sb.String(), err
}
