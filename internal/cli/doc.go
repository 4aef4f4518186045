// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the retort command line.
//
// Running retort with no subcommand opens the overlay in the terminal and
// starts the local server. The other commands are thin clients of that
// server:
//
//	retort                      open the overlay
//	retort --headless           server only, in-memory presenter
//	retort say <text>           run the assistant on an utterance
//	retort push --role <r> <t>  dispatch a message by role
//	retort state                print the presenter snapshot
//	retort config path|show|init|get|set
//	retort version
package cli
