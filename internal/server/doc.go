// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the overlay to other local processes over HTTP and
// WebSocket.
//
// # Endpoints
//
//   - POST /v1/listening     - show the listening indicator
//   - POST /v1/messages      - {"text"} submit a user message
//   - POST /v1/stream/begin  - open the assistant stream (409 if open)
//   - POST /v1/stream/chunk  - {"text"} append to the open stream
//   - POST /v1/stream/end    - close the stream, schedule re-listen
//   - POST /v1/dispatch      - {"role","text"} route by role (400 if unknown)
//   - POST /v1/utterances    - {"text"} run the assistant pipeline (async)
//   - GET  /v1/state         - presenter snapshot
//   - GET  /v1/ws            - WebSocket, frames {"op","role","text"}
//   - GET  /health           - liveness
//
// Every operation runs on the overlay's event loop through an
// overlay.Executor.
//
// # Middleware
//
// Recovery, zap request logging, per-IP token-bucket rate limiting, optional
// bearer auth and a request body limit.
package server
