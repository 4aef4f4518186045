// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"fmt"

	"github.com/jeranaias/retort/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the presenter's current presentation state.
type State int

const (
	StateIdleListening State = iota
	StateUserShown
	StateAIStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdleListening:
		return "IDLE_LISTENING"
	case StateUserShown:
		return "USER_SHOWN"
	case StateAIStreaming:
		return "AI_STREAMING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdleListening, StateUserShown, StateAIStreaming} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("overlay: unknown state %q", text)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// OpKind selects a transition.
type OpKind int

const (
	OpShowListening OpKind = iota + 1
	OpSubmitUser
	OpBeginStream
	OpAppendChunk
	OpEndStream
	OpDispatch

	// Internal transitions fired by the scheduler.
	opRelisten
	opFinishExit
)

var opNames = map[OpKind]string{
	OpShowListening: "show_listening",
	OpSubmitUser:    "submit_user",
	OpBeginStream:   "begin_stream",
	OpAppendChunk:   "append_chunk",
	OpEndStream:     "end_stream",
	OpDispatch:      "dispatch",
	opRelisten:      "relisten",
	opFinishExit:    "finish_exit",
}

// String returns the operation name used on the wire and in logs.
func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// ParseOpKind maps a wire name onto a public OpKind.
func ParseOpKind(name string) (OpKind, bool) {
	for k, n := range opNames {
		if n == name && k < opRelisten {
			return k, true
		}
	}
	return 0, false
}

// Op is one request to the presenter.
type Op struct {
	Kind OpKind
	Role string // OpDispatch only
	Text string // OpSubmitUser, OpAppendChunk, OpDispatch

	bubbleID string // opFinishExit only
}

// StreamHandle identifies the single open assistant stream.
type StreamHandle struct {
	BubbleID string
}

// Valid reports whether the handle refers to a stream.
func (h StreamHandle) Valid() bool {
	return h.BubbleID != ""
}

// Result reports the outcome of an Op.
type Result struct {
	// State after the operation.
	State State

	// Applied is false when the op was ignored (for example a chunk with no
	// open stream or a status dispatch without a listening marker).
	Applied bool

	// Err is set when the op was rejected.
	Err error

	// Stream is set by OpBeginStream.
	Stream StreamHandle

	// Cancel is set by OpEndStream and cancels the pending re-listen.
	Cancel Cancel
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a point-in-time copy of presenter state.
type Snapshot struct {
	State           State          `json:"state"`
	Listening       bool           `json:"listening"`
	Streaming       bool           `json:"streaming"`
	RelistenPending bool           `json:"relisten_pending"`
	Bubbles         []model.Bubble `json:"bubbles"`
}

// Texts returns the text of every non-animating bubble, oldest first.
func (s Snapshot) Texts() []string {
	out := make([]string, 0, len(s.Bubbles))
	for _, b := range s.Bubbles {
		if !b.Animating {
			out = append(out, b.Text)
		}
	}
	return out
}
