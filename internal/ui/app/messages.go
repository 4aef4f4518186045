// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/retort/internal/config"
	"github.com/jeranaias/retort/internal/overlay"
)

// =============================================================================
// EXECUTOR MESSAGES
// =============================================================================

// opMsg applies one operation. reply is buffered.
type opMsg struct {
	op    overlay.Op
	reply chan overlay.Result
}

// snapshotMsg requests a snapshot. reply is buffered.
type snapshotMsg struct {
	reply chan overlay.Snapshot
}

// postMsg carries a presenter timer callback onto the UI goroutine.
type postMsg struct {
	fn func()
}

// cancelMsg runs a Cancel token on the UI goroutine.
type cancelMsg struct {
	cancel overlay.Cancel
	reply  chan bool
}

// =============================================================================
// UI MESSAGES
// =============================================================================

// animTickMsg advances exit fades.
type animTickMsg struct{}

// ConfigMsg delivers a reloaded configuration.
type ConfigMsg struct {
	Config *config.Config
}

// hostErrMsg reports a failed host call made from a command.
type hostErrMsg struct {
	call string
	err  error
}
