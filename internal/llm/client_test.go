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
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/retort/internal/config"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:      baseURL,
		APIKey:       "sk-test",
		Model:        "qwen-plus",
		SystemPrompt: "disagree",
		TimeoutSecs:  5,
		Temperature:  0.9,
	}
}

func sseHandler(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", c)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

// =============================================================================
// REQUEST SHAPE
// =============================================================================

func TestStream_SingleTurnRequest(t *testing.T) {
	var got ChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		sseHandler("ok")(w, r)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL + "/"))
	require.NoError(t, c.Stream(context.Background(), "the sky is blue", func(string) {}))

	assert.Equal(t, "Bearer sk-test", auth)
	assert.True(t, got.Stream)
	assert.Equal(t, "qwen-plus", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, ChatMessage{Role: "system", Content: "disagree"}, got.Messages[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "the sky is blue"}, got.Messages[1])
}

// =============================================================================
// STREAMING
// =============================================================================

func TestStream_DeliversDeltasInOrder(t *testing.T) {
	srv := httptest.NewServer(sseHandler("Hel", "lo", "", " world"))
	defer srv.Close()

	var deltas []string
	err := New(testConfig(srv.URL)).Stream(context.Background(), "hi", func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " world"}, deltas, "empty deltas are skipped")
}

func TestStream_StopsAtFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"no\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"extra\"}}]}\n\n")
	}))
	defer srv.Close()

	got, err := New(testConfig(srv.URL)).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "no", got)
}

func TestStream_SkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"fine\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	got, err := New(testConfig(srv.URL)).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestStream_NoAPIKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.APIKey = "  "
	c := New(cfg)
	assert.False(t, c.IsConfigured())
	assert.ErrorIs(t, c.Stream(context.Background(), "hi", func(string) {}), ErrNoAPIKey)
}

func TestStream_AuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"InvalidApiKey","message":"bad key"}}`)
	}))
	defer srv.Close()

	err := New(testConfig(srv.URL), WithRetries(3, time.Millisecond)).Stream(context.Background(), "hi", func(string) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "InvalidApiKey", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStream_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ok := sseHandler("second try")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	}))
	defer srv.Close()

	got, err := New(testConfig(srv.URL), WithRetries(2, time.Millisecond)).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "second try", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStream_RateLimitExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer srv.Close()

	err := New(testConfig(srv.URL), WithRetries(1, time.Millisecond)).Stream(context.Background(), "hi", func(string) {})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestStream_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := New(testConfig(srv.URL)).Stream(ctx, "hi", func(string) { cancel() })

	var se *StreamError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "par", se.Partial)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// SSE READER
// =============================================================================

func TestSSEReader(t *testing.T) {
	input := "event: message\r\ndata: one\r\n\r\n: comment\n\ndata: a\ndata: b\n\ndata: tail"
	r := NewSSEReader(strings.NewReader(input))

	var events []string
	for {
		data, err := r.ReadEvent()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, string(data))
	}
	assert.Equal(t, []string{"one", "a\nb", "tail"}, events)
}

func TestAPIError_Is(t *testing.T) {
	assert.ErrorIs(t, &APIError{Status: 403}, ErrAuthFailed)
	assert.ErrorIs(t, &APIError{Status: 502}, ErrServerError)
	assert.NotErrorIs(t, &APIError{Status: 400}, ErrServerError)
	assert.Contains(t, (&APIError{Status: 400, Code: "bad", Message: "nope"}).Error(), "[bad]")
}

func TestCalculateBackoff(t *testing.T) {
	c := New(testConfig("http://x"), WithRetries(5, time.Second))
	assert.Equal(t, time.Second, c.calculateBackoff(1))
	assert.Equal(t, 2*time.Second, c.calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, c.calculateBackoff(10))
}
