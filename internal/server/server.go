// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/assistant"
	"github.com/jeranaias/retort/internal/config"
	"github.com/jeranaias/retort/internal/overlay"
	"github.com/jeranaias/retort/internal/util"
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// TextRequest is the body of /v1/messages, /v1/stream/chunk and
// /v1/utterances.
type TextRequest struct {
	Text string `json:"text"`
}

// DispatchRequest is the body of /v1/dispatch.
type DispatchRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// OpResponse reports the outcome of an operation.
type OpResponse struct {
	Applied         bool          `json:"applied"`
	State           overlay.State `json:"state"`
	Stream          string        `json:"stream,omitempty"`
	RelistenPending bool          `json:"relisten_pending,omitempty"`
}

// ErrorResponse is every non-2xx body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Pipeline bool   `json:"pipeline"`
}

// UtteranceHandler runs the assistant pipeline.
type UtteranceHandler interface {
	HandleUtterance(ctx context.Context, text string) error
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the overlay's inbound transport.
type Server struct {
	cfg      config.ServerConfig
	exec     overlay.Executor
	pipeline UtteranceHandler
	logger   *zap.Logger
	version  string
	started  time.Time

	router  *http.ServeMux
	limiter *RateLimiter
	server  *http.Server

	// Background utterances outlive their request.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	mu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithPipeline enables /v1/utterances.
func WithPipeline(p UtteranceHandler) Option {
	return func(s *Server) { s.pipeline = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server that executes operations through exec.
func New(cfg config.ServerConfig, exec overlay.Executor, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		exec:     exec,
		logger:   zap.NewNop(),
		version:  "dev",
		started:  time.Now(),
		router:   http.NewServeMux(),
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.Burst),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /v1/listening", s.handleListening)
	s.router.HandleFunc("POST /v1/messages", s.handleMessages)
	s.router.HandleFunc("POST /v1/stream/begin", s.handleStreamBegin)
	s.router.HandleFunc("POST /v1/stream/chunk", s.handleStreamChunk)
	s.router.HandleFunc("POST /v1/stream/end", s.handleStreamEnd)
	s.router.HandleFunc("POST /v1/dispatch", s.handleDispatch)
	s.router.HandleFunc("POST /v1/utterances", s.handleUtterances)
	s.router.HandleFunc("GET /v1/state", s.handleState)
	s.router.HandleFunc("GET /v1/ws", s.handleWebSocket)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
		AuthMiddleware(s.cfg.Token, s.logger),
		BodyLimitMiddleware(s.cfg.MaxBodyBytes),
	)(s.router)
}

// ============================================================================
// OPERATION HANDLERS
// ============================================================================

func (s *Server) handleListening(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, overlay.Op{Kind: overlay.OpShowListening})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, r, overlay.Op{Kind: overlay.OpSubmitUser, Text: req.Text})
}

func (s *Server) handleStreamBegin(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, overlay.Op{Kind: overlay.OpBeginStream})
}

func (s *Server) handleStreamChunk(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, r, overlay.Op{Kind: overlay.OpAppendChunk, Text: req.Text})
}

func (s *Server) handleStreamEnd(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, overlay.Op{Kind: overlay.OpEndStream})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if !decode(w, r, &req) {
		return
	}
	s.apply(w, r, overlay.Op{Kind: overlay.OpDispatch, Role: req.Role, Text: req.Text})
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, op overlay.Op) {
	res, err := s.exec.Execute(r.Context(), op)
	if err != nil {
		s.logger.Warn("executor unavailable", zap.Stringer("op", op.Kind), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if res.Err != nil {
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func toResponse(res overlay.Result) OpResponse {
	return OpResponse{
		Applied:         res.Applied,
		State:           res.State,
		Stream:          res.Stream.BubbleID,
		RelistenPending: res.Cancel != nil,
	}
}

// statusFor maps a rejected operation onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, overlay.ErrStreamAlreadyOpen):
		return http.StatusConflict
	case errors.Is(err, overlay.ErrUnknownRole), errors.Is(err, overlay.ErrUnknownOp):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// UTTERANCES
// ============================================================================

func (s *Server) handleUtterances(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant pipeline not configured")
		return
	}
	var req TextRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.runBackground(req.Text) {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// runBackground starts one pipeline run. It reports false after Shutdown.
func (s *Server) runBackground(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bgCtx.Err() != nil {
		return false
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if err := s.pipeline.HandleUtterance(s.bgCtx, text); err != nil &&
			!errors.Is(err, assistant.ErrEmptyUtterance) && !errors.Is(err, context.Canceled) {
			s.logger.Warn("utterance failed",
				zap.String("text", util.TruncateRunes(text, 40)),
				zap.Error(err))
		}
	}()
	return true
}

// ============================================================================
// STATE AND HEALTH
// ============================================================================

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.exec.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Pipeline: s.pipeline != nil,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	addr := s.cfg.Addr
	if addr == "" {
		addr = config.DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels background utterances and
// waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.bgCancel()
	srv := s.server
	s.mu.Unlock()

	var err error
	if srv != nil {
		s.logger.Info("server shutting down")
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
