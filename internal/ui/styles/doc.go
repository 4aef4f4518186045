// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the retort overlay.
//
// # Colors
//
// All colors are Lip Gloss AdaptiveColors so the overlay follows the
// terminal's light or dark background:
//
//   - Listening indicator: muted text on a dim surface
//   - User bubble: blue tones, right aligned
//   - Assistant bubble: soft violet tones, left aligned
//
// # Animation
//
// Exit animations use TransitionExit (300ms, EaseOutCubic). FadeColor blends
// a bubble's colors toward the surface as the transition progresses.
//
// # Usage
//
//	theme := styles.NewTheme()
//	fg := styles.FadeColor(styles.UserBubbleFg, styles.Surface, theme.IsDark, 0.5)
package styles
