// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// wrapText wraps text to width display cells. Lines break at the last space
// when one is available; otherwise (CJK text, long tokens) they break at the
// cell limit.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(wrapLine(line, width))
	}
	return out.String()
}

func wrapLine(line string, width int) string {
	if runewidth.StringWidth(line) <= width {
		return line
	}

	var lines []string
	var cur []rune
	curWidth := 0
	lastSpace := -1

	for _, r := range line {
		w := runewidth.RuneWidth(r)
		if curWidth+w > width && len(cur) > 0 {
			if lastSpace > 0 {
				lines = append(lines, strings.TrimRight(string(cur[:lastSpace]), " "))
				cur = append([]rune(nil), cur[lastSpace+1:]...)
			} else {
				lines = append(lines, string(cur))
				cur = cur[:0]
			}
			curWidth = runewidth.StringWidth(string(cur))
			lastSpace = -1
			for i, c := range cur {
				if c == ' ' {
					lastSpace = i
				}
			}
		}
		if r == ' ' {
			lastSpace = len(cur)
		}
		cur = append(cur, r)
		curWidth += w
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return strings.Join(lines, "\n")
}

// maxLineWidth returns the widest line in display cells.
func maxLineWidth(text string) int {
	maxWidth := 0
	for _, line := range strings.Split(text, "\n") {
		if w := runewidth.StringWidth(line); w > maxWidth {
			maxWidth = w
		}
	}
	return maxWidth
}
