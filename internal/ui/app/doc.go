// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the Bubble Tea program that hosts the overlay.
//
// The presenter, the panel and the controls are only touched from the
// program's Update goroutine. Other goroutines (HTTP handlers, the
// assistant pipeline, presenter timers) reach them by sending messages:
//
//	opMsg       - apply one overlay.Op and reply with the Result
//	snapshotMsg - reply with an overlay.Snapshot
//	postMsg     - run a scheduled presenter callback
//	cancelMsg   - run a re-listen Cancel token
//
// Executor wraps that message protocol as an overlay.Executor.
package app
