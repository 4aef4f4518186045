// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import "errors"

var (
	// ErrStreamAlreadyOpen is returned when a stream is begun while another
	// one is still open.
	ErrStreamAlreadyOpen = errors.New("overlay: assistant stream already open")

	// ErrUnknownRole is returned by Dispatch for roles it cannot map.
	ErrUnknownRole = errors.New("overlay: unknown role")

	// ErrUnknownOp is returned by Apply for an Op kind it does not handle.
	ErrUnknownOp = errors.New("overlay: unknown operation")
)
