package stage

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanspareilsmyn/featurestream/internal/engine"
)

func TestWillisonAmplitudeStage(t *testing.T) {
	t.Parallel()

	s, err := NewWillisonAmplitude(4, 1, nil)
	require.NoError(t, err)

	buf := []float64{0, 0, 5, 0}
	require.NoError(t, s.Process(buf, 1))
	assert.Equal(t, []float64{0, 0, 1, 2}, buf)
}

func TestWaveformLengthStagePerChannel(t *testing.T) {
	t.Parallel()

	s, err := NewWaveformLength(3, nil)
	require.NoError(t, err)

	// Channel 0: 1,3,0,1,5. Channel 1: constant.
	buf := []float64{1, 7, 3, 7, 0, 7, 1, 7, 5, 7}
	require.NoError(t, s.Process(buf, 2))
	assert.Equal(t, []float64{0, 0, 2, 0, 5, 0, 6, 0, 8, 0}, buf)
}

func TestDerivedRoundTrip(t *testing.T) {
	t.Parallel()

	builders := map[string]func() (Stage, error){
		TypeWillisonAmplitude: func() (Stage, error) { return NewWillisonAmplitude(3, 0.5, nil) },
		TypeSlopeSignChange:   func() (Stage, error) { return NewSlopeSignChange(3, 0, nil) },
		TypeWaveformLength:    func() (Stage, error) { return NewWaveformLength(3, nil) },
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			original, err := build()
			require.NoError(t, err)
			require.NoError(t, original.Process([]float64{0, 1, 2, -1, 0.5, 3, -2, 2}, 2))

			raw, err := original.SerializeState()
			require.NoError(t, err)

			restored, err := build()
			require.NoError(t, err)
			require.NoError(t, restored.DeserializeState(raw))

			a := []float64{4, -4, 0, 1, 2, 2, -3, 0}
			b := append([]float64(nil), a...)
			require.NoError(t, original.Process(a, 2))
			require.NoError(t, restored.Process(b, 2))
			assert.Equal(t, a, b)
		})
	}
}

func TestDerivedRejectsBadState(t *testing.T) {
	t.Parallel()

	source, err := NewWillisonAmplitude(4, 1, nil)
	require.NoError(t, err)
	require.NoError(t, source.Process([]float64{0, 0, 5, 0}, 1))
	raw, err := source.SerializeState()
	require.NoError(t, err)

	edit := func(f func(*derivedState[engine.LagState])) json.RawMessage {
		var state derivedState[engine.LagState]
		require.NoError(t, json.Unmarshal(raw, &state))
		f(&state)
		out, err := json.Marshal(state)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name   string
		target func() (Stage, error)
		state  json.RawMessage
		want   error
	}{
		{
			name:   "threshold mismatch",
			target: func() (Stage, error) { return NewWillisonAmplitude(4, 2, nil) },
			state:  raw,
			want:   ErrParamMismatch,
		},
		{
			name:   "window size mismatch",
			target: func() (Stage, error) { return NewWillisonAmplitude(8, 1, nil) },
			state:  raw,
			want:   ErrWindowSizeMismatch,
		},
		{
			name:   "tampered count",
			target: func() (Stage, error) { return NewWillisonAmplitude(4, 1, nil) },
			state:  edit(func(s *derivedState[engine.LagState]) { s.Channels[0].Count = 3 }),
			want:   ErrStateCorruption,
		},
		{
			name:   "batch mode",
			target: func() (Stage, error) { return NewWillisonAmplitude(4, 1, nil) },
			state:  edit(func(s *derivedState[engine.LagState]) { s.Mode = ModeBatch }),
			want:   ErrModeMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			target, err := tc.target()
			require.NoError(t, err)
			require.ErrorIs(t, target.DeserializeState(tc.state), tc.want)
			assert.Zero(t, target.Summary().ChannelCount)
		})
	}
}

func TestDerivedRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewWaveformLength(0, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSlopeSignChange(-1, 0, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSlopeSignChangeStateFieldNames(t *testing.T) {
	t.Parallel()

	s, err := NewSlopeSignChange(4, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Process([]float64{1, 3, 2}, 1))

	raw, err := s.SerializeState()
	require.NoError(t, err)

	var state struct {
		Channels []map[string]json.RawMessage `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(raw, &state))
	require.Len(t, state.Channels, 1)

	ch := state.Channels[0]
	for _, key := range []string{"buffer", "runningCount", "sample_minus_1", "sample_minus_2", "init_count"} {
		assert.Contains(t, ch, key)
	}
	assert.JSONEq(t, "2", string(ch["sample_minus_1"]))
	assert.JSONEq(t, "3", string(ch["sample_minus_2"]))
	assert.JSONEq(t, "2", string(ch["init_count"]))
}

func TestDerivedRejectsNonFiniteSamples(t *testing.T) {
	t.Parallel()

	s, err := NewWaveformLength(4, nil)
	require.NoError(t, err)
	require.NoError(t, s.Process([]float64{1, 2}, 1))

	require.ErrorIs(t, s.Process([]float64{math.Inf(1)}, 1), ErrInvalidInput)
	assert.Equal(t, 2, s.Summary().BufferSize)

	_, err = s.SerializeState()
	require.NoError(t, err)
}
