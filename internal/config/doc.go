// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for retort.
//
// Configuration is read from TOML, layered over built-in defaults, then
// environment overrides are applied and the result is validated.
//
// # File Location
//
//	~/.retort/config.toml      (RETORT_HOME replaces ~/.retort)
//
// # Environment Overrides
//
//	RETORT_ADDR          server.addr
//	RETORT_TOKEN         server.token
//	RETORT_LLM_BASE_URL  llm.base_url
//	RETORT_LLM_MODEL     llm.model
//	RETORT_LLM_API_KEY   llm.api_key (DASHSCOPE_API_KEY is used if unset)
//	RETORT_LOG_LEVEL     logging.level
//	RETORT_FONT_SIZE     overlay.font_size
//
// # Hot Reload
//
// Watch observes the config file with fsnotify and hands every successfully
// reloaded Config to a callback. Invalid edits are reported and skipped.
package config
