// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across retort.
//
//   - AtomicWriteFile: crash-safe file writes with fsync and rename
//   - TruncateRunes: UTF-8 safe truncation with ellipsis, for log previews
//   - TruncateWidth: display-width truncation for terminal output
package util
