// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package overlay implements the presentation state machine of the floating
// conversational overlay.
//
// A single Presenter owns every bubble, the active stream and the pending
// re-listen timer. All operations funnel through Presenter.Apply, which is
// the only place state transitions happen:
//
//	IDLE_LISTENING --submit--> USER_SHOWN --begin--> AI_STREAMING
//	      ^                                              |
//	      +------------- end (after RelistenDelay) ------+
//
// The Presenter is not safe for concurrent use. Callers run it on one
// goroutine (the Bubble Tea update loop) and deliver timer callbacks back to
// that goroutine through a Scheduler.
//
// # Rendering
//
// Visual side effects go through the Renderer interface. Bubbles are passed
// by value so a Renderer never holds presenter memory. Renderer errors and
// panics are logged and swallowed; the state machine keeps running.
//
// # Retention
//
// After a user message and when the listening indicator comes back, the
// oldest non-listening bubbles beyond RetentionLimit are marked animating,
// handed to Renderer.BeginExit and removed once ExitAnimation has elapsed.
package overlay
