// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTextRoundTrip(t *testing.T) {
	for _, st := range []State{StateIdleListening, StateUserShown, StateAIStreaming} {
		data, err := json.Marshal(st)
		require.NoError(t, err)

		var got State
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, st, got)
	}

	var bad State
	assert.Error(t, json.Unmarshal([]byte(`"SLEEPING"`), &bad))
}
