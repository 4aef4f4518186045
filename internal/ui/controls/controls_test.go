// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controls

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/retort/internal/host"
)

// =============================================================================
// FONT SIZE TESTS
// =============================================================================

func TestFontSize_Clamps(t *testing.T) {
	f := NewFontSize(FontDefault, FontMin, FontMax)
	assert.Equal(t, 14, f.Value())

	for i := 0; i < 20; i++ {
		f.Inc()
	}
	assert.Equal(t, FontMax, f.Value())
	assert.False(t, f.Inc(), "no change at the upper bound")

	for i := 0; i < 20; i++ {
		f.Dec()
	}
	assert.Equal(t, FontMin, f.Value())
	assert.False(t, f.Dec())
}

func TestFontSize_StepIsOne(t *testing.T) {
	f := NewFontSize(14, FontMin, FontMax)
	require.True(t, f.Inc())
	assert.Equal(t, 15, f.Value())
	require.True(t, f.Dec())
	require.True(t, f.Dec())
	assert.Equal(t, 13, f.Value())
}

func TestFontSize_InvalidBounds(t *testing.T) {
	f := NewFontSize(99, 30, 5)
	lo, hi := f.Bounds()
	assert.Equal(t, FontMin, lo)
	assert.Equal(t, FontMax, hi)
	assert.Equal(t, FontMax, f.Value())
}

// =============================================================================
// RESIZE DRAG TESTS
// =============================================================================

func TestResizeDrag_ForwardsEveryMotion(t *testing.T) {
	rec := &host.Recorder{}
	d := NewResizeDrag(rec, nil)

	assert.False(t, d.Motion(5, 5), "motion without press is ignored")
	assert.Empty(t, rec.Resizes)

	d.Press(10, 10)
	d.Motion(12, 10)
	d.Motion(12, 10)
	d.Motion(11, 13)
	d.Release()
	d.Motion(50, 50)

	assert.Equal(t, [][2]int{{2, 0}, {0, 0}, {-1, 3}}, rec.Resizes)
	assert.Equal(t, []host.PointerShape{host.PointerResize, host.PointerDefault}, rec.Pointers)
	assert.False(t, d.Active())
}

func TestResizeDrag_ReportsErrors(t *testing.T) {
	rec := &host.Recorder{Err: errors.New("no window")}
	var errs []error
	d := NewResizeDrag(rec, func(err error) { errs = append(errs, err) })

	d.Press(0, 0)
	d.Motion(1, 1)
	d.Release()

	assert.Len(t, errs, 3)
	assert.Len(t, rec.Resizes, 1, "failures are not retried")
}
