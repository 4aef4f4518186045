// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm streams single-turn replies from an OpenAI-compatible chat
// completions endpoint (DashScope compatible mode by default).
//
// Every request carries exactly two messages: the configured system prompt
// and the recognized utterance. No history is kept between requests.
//
// Usage:
//
//	client := llm.New(cfg.LLM, llm.WithLogger(logger))
//	err := client.Stream(ctx, "the sky is blue", func(delta string) {
//	    fmt.Print(delta)
//	})
package llm
