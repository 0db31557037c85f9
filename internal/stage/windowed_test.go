package stage

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func assertTolerance(t *testing.T, want, got float64) {
	t.Helper()
	tolerance := 1e-4 * math.Max(1, math.Abs(want))
	assert.InDeltaf(t, want, got, tolerance, "want %g, got %g", want, got)
}

func TestBatchMeanInterleaved(t *testing.T) {
	t.Parallel()

	s, err := NewMovingAverage(ModeBatch, 0, nil)
	require.NoError(t, err)

	buf := []float64{1, 2, 3, 4}
	require.NoError(t, s.Process(buf, 2))
	assert.Equal(t, []float64{2, 3, 2, 3}, buf)
}

func TestBatchReductionsMatchGonum(t *testing.T) {
	t.Parallel()

	lane := []float64{-3, 1.5, 4, 0.25, -2, 7, 1}
	n := float64(len(lane))

	tests := []struct {
		name  string
		build func() (Stage, error)
		want  float64
	}{
		{
			name:  "mean",
			build: func() (Stage, error) { return NewMovingAverage(ModeBatch, 0, nil) },
			want:  stat.Mean(lane, nil),
		},
		{
			name:  "rms",
			build: func() (Stage, error) { return NewRMS(ModeBatch, 0, nil) },
			want:  floats.Norm(lane, 2) / math.Sqrt(n),
		},
		{
			name:  "mean absolute value",
			build: func() (Stage, error) { return NewMeanAbsoluteValue(ModeBatch, 0, nil) },
			want:  floats.Norm(lane, 1) / n,
		},
		{
			name:  "variance",
			build: func() (Stage, error) { return NewVariance(ModeBatch, 0, nil) },
			want:  stat.PopVariance(lane, nil),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := tc.build()
			require.NoError(t, err)

			buf := append([]float64(nil), lane...)
			require.NoError(t, s.Process(buf, 1))
			for _, got := range buf {
				assertTolerance(t, tc.want, got)
			}
		})
	}
}

func TestBatchZScoreNormalizes(t *testing.T) {
	t.Parallel()

	s, err := NewZScoreNormalize(ModeBatch, 0, DefaultEpsilon, nil)
	require.NoError(t, err)

	// Two channels: a ramp and a constant.
	buf := []float64{1, 5, 2, 5, 3, 5, 4, 5}
	require.NoError(t, s.Process(buf, 2))

	ramp := []float64{buf[0], buf[2], buf[4], buf[6]}
	mean, variance := stat.PopMeanVariance(ramp, nil)
	assertTolerance(t, 0, mean)
	assertTolerance(t, 1, variance)
	assert.Equal(t, []float64{0, 0, 0, 0}, []float64{buf[1], buf[3], buf[5], buf[7]})
}

func TestBatchEmptyBuffer(t *testing.T) {
	t.Parallel()

	s, err := NewRMS(ModeBatch, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Process(nil, 3))
}

func TestMovingRequiresWindowSize(t *testing.T) {
	t.Parallel()

	_, err := NewMovingAverage(ModeMoving, 0, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewVariance(Mode("sliding"), 4, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProcessRejectsChannelCount(t *testing.T) {
	t.Parallel()

	s, err := NewMovingAverage(ModeMoving, 2, nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.Process([]float64{1}, 0), ErrInvalidInput)
}

func TestMovingRejectsNonFiniteSamples(t *testing.T) {
	t.Parallel()

	s, err := NewRMS(ModeMoving, 4, nil)
	require.NoError(t, err)
	require.NoError(t, s.Process([]float64{1, 2}, 1))

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		buf := []float64{3, bad}
		require.ErrorIs(t, s.Process(buf, 1), ErrInvalidInput)
		assert.Equal(t, 3.0, buf[0])
	}
	assert.Equal(t, 2, s.Summary().BufferSize)

	raw, err := s.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"moving","windowSize":4,"channels":[{"buffer":[1,2],"runningSumOfSquares":5}]}`, string(raw))
}

func TestMovingMeanExample(t *testing.T) {
	t.Parallel()

	s, err := NewMovingAverage(ModeMoving, 2, nil)
	require.NoError(t, err)

	buf := []float64{1, 2, 3, 4}
	require.NoError(t, s.Process(buf, 1))
	assert.Equal(t, []float64{1, 1.5, 2.5, 3.5}, buf)
}

func TestMovingKeepsChannelsApart(t *testing.T) {
	t.Parallel()

	s, err := NewMovingAverage(ModeMoving, 2, nil)
	require.NoError(t, err)

	buf := []float64{1, 10, 2, 20}
	require.NoError(t, s.Process(buf, 2))
	assert.Equal(t, []float64{1, 10, 1.5, 15}, buf)

	// Windows carry over between calls.
	buf = []float64{3, 30}
	require.NoError(t, s.Process(buf, 2))
	assert.Equal(t, []float64{2.5, 25}, buf)

	summary := s.Summary()
	assert.Equal(t, Summary{Type: TypeMovingAverage, Mode: "moving", WindowSize: 2, ChannelCount: 2, BufferSize: 2}, summary)
}

func TestChannelCountChangeReinitializes(t *testing.T) {
	t.Parallel()

	s, err := NewVariance(ModeMoving, 3, nil)
	require.NoError(t, err)

	before := testutil.ToFloat64(channelReinits.WithLabelValues(TypeVariance))

	require.NoError(t, s.Process([]float64{1, 2, 3, 4}, 2))
	require.NoError(t, s.Process([]float64{5, 6, 7}, 3))

	assert.Equal(t, before+1, testutil.ToFloat64(channelReinits.WithLabelValues(TypeVariance)))
	assert.Equal(t, 3, s.Summary().ChannelCount)
	assert.Equal(t, 1, s.Summary().BufferSize)
}

func TestResetKeepsLayout(t *testing.T) {
	t.Parallel()

	s, err := NewRMS(ModeMoving, 4, nil)
	require.NoError(t, err)
	require.NoError(t, s.Process([]float64{1, 2, 3, 4, 5, 6}, 2))

	s.Reset()
	summary := s.Summary()
	assert.Equal(t, 2, summary.ChannelCount)
	assert.Equal(t, 4, summary.WindowSize)
	assert.Equal(t, 0, summary.BufferSize)

	buf := []float64{3, -4}
	require.NoError(t, s.Process(buf, 2))
	assert.Equal(t, []float64{3, 4}, buf)
}

func TestStateRoundTripContinuesIdentically(t *testing.T) {
	t.Parallel()

	builders := map[string]func() (Stage, error){
		TypeMovingAverage:     func() (Stage, error) { return NewMovingAverage(ModeMoving, 3, nil) },
		TypeRMS:               func() (Stage, error) { return NewRMS(ModeMoving, 3, nil) },
		TypeMeanAbsoluteValue: func() (Stage, error) { return NewMeanAbsoluteValue(ModeMoving, 3, nil) },
		TypeVariance:          func() (Stage, error) { return NewVariance(ModeMoving, 3, nil) },
		TypeZScoreNormalize:   func() (Stage, error) { return NewZScoreNormalize(ModeMoving, 3, 1e-3, nil) },
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			original, err := build()
			require.NoError(t, err)
			require.NoError(t, original.Process([]float64{1, -2, 3.5, 4, -5, 6, 0.5, 2}, 2))

			raw, err := original.SerializeState()
			require.NoError(t, err)

			restored, err := build()
			require.NoError(t, err)
			require.NoError(t, restored.DeserializeState(raw))
			assert.Equal(t, original.Summary(), restored.Summary())

			a := []float64{7, 8, -9, 10, 11, 12}
			b := append([]float64(nil), a...)
			require.NoError(t, original.Process(a, 2))
			require.NoError(t, restored.Process(b, 2))
			assert.Equal(t, a, b)
		})
	}
}

func TestSerializedFieldNames(t *testing.T) {
	t.Parallel()

	s, err := NewVariance(ModeMoving, 2, nil)
	require.NoError(t, err)
	require.NoError(t, s.Process([]float64{1, 2, 3}, 1))

	raw, err := s.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"mode":"moving","windowSize":2,"channels":[{"buffer":[2,3],"runningSum":5,"runningSumOfSquares":13}]}`,
		string(raw))

	batch, err := NewZScoreNormalize(ModeBatch, 0, 0.5, nil)
	require.NoError(t, err)
	raw, err = batch.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"batch","epsilon":0.5}`, string(raw))
}

func TestUnusedMovingStageSerializesEmptyChannels(t *testing.T) {
	t.Parallel()

	s, err := NewRMS(ModeMoving, 8, nil)
	require.NoError(t, err)

	raw, err := s.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"moving","windowSize":8,"channels":[]}`, string(raw))

	restored, err := NewRMS(ModeMoving, 8, nil)
	require.NoError(t, err)
	require.NoError(t, restored.DeserializeState(raw))
	assert.Zero(t, restored.Summary().ChannelCount)
}

func tamper(t *testing.T, raw json.RawMessage, edit func(*windowedState)) json.RawMessage {
	t.Helper()
	var state windowedState
	require.NoError(t, json.Unmarshal(raw, &state))
	edit(&state)
	out, err := json.Marshal(state)
	require.NoError(t, err)
	return out
}

func TestDeserializeRejectsBadState(t *testing.T) {
	t.Parallel()

	source, err := NewMovingAverage(ModeMoving, 3, nil)
	require.NoError(t, err)
	require.NoError(t, source.Process([]float64{1, 2, 3, 4}, 1))
	raw, err := source.SerializeState()
	require.NoError(t, err)

	tests := []struct {
		name  string
		state json.RawMessage
		want  error
	}{
		{
			name: "tampered running sum",
			state: tamper(t, raw, func(s *windowedState) {
				sum := *s.Channels[0].RunningSum + 1
				s.Channels[0].RunningSum = &sum
			}),
			want: ErrStateCorruption,
		},
		{
			name: "tampered buffer",
			state: tamper(t, raw, func(s *windowedState) {
				s.Channels[0].Buffer[0] = 100
			}),
			want: ErrStateCorruption,
		},
		{
			name:  "mode mismatch",
			state: tamper(t, raw, func(s *windowedState) { s.Mode = ModeBatch }),
			want:  ErrModeMismatch,
		},
		{
			name: "window size mismatch",
			state: tamper(t, raw, func(s *windowedState) {
				ws := 5
				s.WindowSize = &ws
			}),
			want: ErrWindowSizeMismatch,
		},
		{
			name:  "missing window size",
			state: tamper(t, raw, func(s *windowedState) { s.WindowSize = nil }),
			want:  ErrMalformedState,
		},
		{
			name:  "missing running sum",
			state: tamper(t, raw, func(s *windowedState) { s.Channels[0].RunningSum = nil }),
			want:  ErrMalformedState,
		},
		{
			name:  "not json",
			state: json.RawMessage(`{"mode":`),
			want:  ErrMalformedState,
		},
		{
			name:  "empty",
			state: nil,
			want:  ErrMalformedState,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			target, err := NewMovingAverage(ModeMoving, 3, nil)
			require.NoError(t, err)
			require.NoError(t, target.Process([]float64{9, 9}, 2))
			before := target.Summary()

			require.ErrorIs(t, target.DeserializeState(tc.state), tc.want)
			assert.Equal(t, before, target.Summary(), "failed restore must keep previous engines")
		})
	}
}

func TestZScoreEpsilonMismatch(t *testing.T) {
	t.Parallel()

	source, err := NewZScoreNormalize(ModeMoving, 4, 1e-3, nil)
	require.NoError(t, err)
	raw, err := source.SerializeState()
	require.NoError(t, err)

	target, err := NewZScoreNormalize(ModeMoving, 4, 1e-6, nil)
	require.NoError(t, err)
	require.ErrorIs(t, target.DeserializeState(raw), ErrParamMismatch)
}

func TestZScoreRejectsNonPositiveEpsilon(t *testing.T) {
	t.Parallel()

	for _, eps := range []float64{0, -1, math.NaN()} {
		_, err := NewZScoreNormalize(ModeMoving, 4, eps, nil)
		require.ErrorIs(t, err, ErrInvalidConfig)
	}
}
