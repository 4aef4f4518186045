// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger used across retort.
//
// Output goes to a size-rotated file under the log directory and, when a
// console writer is given, to that writer too. The level is held in a
// zap.AtomicLevel so a config reload can change it without rebuilding
// loggers that were already handed out.
package logging
