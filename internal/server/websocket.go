// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/overlay"
)

// opState is the frame op that returns a snapshot instead of a transition.
const opState = "state"

// Frame is one client request on /v1/ws.
type Frame struct {
	Op   string `json:"op"`
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`
}

// Reply answers one Frame, in order.
type Reply struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Applied  bool              `json:"applied"`
	State    overlay.State     `json:"state"`
	Stream   string            `json:"stream,omitempty"`
	Snapshot *overlay.Snapshot `json:"snapshot,omitempty"`
}

// handleWebSocket keeps one connection per producer. Frames are executed in
// arrival order, which lets a producer stream chunks without an HTTP round
// trip each.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.bgCtx, cancel)
	defer stop()

	remote := getRemoteIP(r.RemoteAddr)
	s.logger.Debug("websocket connected", zap.String("remote", remote))

	for {
		var frame Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			s.logWSClose(remote, err)
			return
		}
		reply := s.execFrame(ctx, frame)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			s.logWSClose(remote, err)
			return
		}
	}
}

func (s *Server) execFrame(ctx context.Context, frame Frame) Reply {
	if frame.Op == opState {
		snap, err := s.exec.Snapshot(ctx)
		if err != nil {
			return Reply{Error: err.Error()}
		}
		return Reply{OK: true, State: snap.State, Snapshot: &snap}
	}

	kind, ok := overlay.ParseOpKind(frame.Op)
	if !ok {
		return Reply{Error: overlay.ErrUnknownOp.Error() + ": " + frame.Op}
	}
	res, err := s.exec.Execute(ctx, overlay.Op{Kind: kind, Role: frame.Role, Text: frame.Text})
	if err != nil {
		return Reply{Error: err.Error()}
	}
	reply := Reply{
		OK:      res.Err == nil,
		Applied: res.Applied,
		State:   res.State,
		Stream:  res.Stream.BubbleID,
	}
	if res.Err != nil {
		reply.Error = res.Err.Error()
	}
	return reply
}

func (s *Server) logWSClose(remote string, err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
		errors.Is(err, context.Canceled) {
		s.logger.Debug("websocket closed", zap.String("remote", remote))
		return
	}
	s.logger.Warn("websocket error", zap.String("remote", remote), zap.Error(err))
}
