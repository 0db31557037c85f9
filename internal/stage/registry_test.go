package stage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultRegistryTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		TypeMeanAbsoluteValue,
		TypeMovingAverage,
		TypeRectify,
		TypeRMS,
		TypeSlopeSignChange,
		TypeVariance,
		TypeWaveformLength,
		TypeWillisonAmplitude,
		TypeZScoreNormalize,
	}, DefaultRegistry().Types())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	factory := func(Params, *zap.Logger) (Stage, error) { return NewRectify(RectifyFull) }
	require.NoError(t, r.Register("custom", factory))
	require.ErrorIs(t, r.Register("custom", factory), ErrDuplicateStageType)
	require.ErrorIs(t, r.Register("", factory), ErrInvalidConfig)
	require.ErrorIs(t, r.Register("other", nil), ErrInvalidConfig)
	assert.Panics(t, func() { r.MustRegister("custom", factory) })
}

func TestBuildUnknownType(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry().Build("bogus", Params{}, nil)
	require.ErrorIs(t, err, ErrUnknownStageType)
}

func TestBuildValidParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typeName string
		params   Params
		want     Summary
	}{
		{TypeMovingAverage, Params{"mode": "moving", "windowSize": 4}, Summary{Type: TypeMovingAverage, Mode: "moving", WindowSize: 4}},
		{TypeRMS, Params{"mode": "batch"}, Summary{Type: TypeRMS, Mode: "batch"}},
		{TypeVariance, Params{"mode": "moving", "windowSize": json.Number("8")}, Summary{Type: TypeVariance, Mode: "moving", WindowSize: 8}},
		{TypeMeanAbsoluteValue, Params{"mode": "moving", "windowSize": 2.0}, Summary{Type: TypeMeanAbsoluteValue, Mode: "moving", WindowSize: 2}},
		{TypeZScoreNormalize, Params{"mode": "moving", "windowSize": 16, "epsilon": 0.01}, Summary{Type: TypeZScoreNormalize, Mode: "moving", WindowSize: 16}},
		{TypeRectify, Params{}, Summary{Type: TypeRectify, Mode: "full"}},
		{TypeRectify, Params{"mode": "half"}, Summary{Type: TypeRectify, Mode: "half"}},
		{TypeWillisonAmplitude, Params{"windowSize": 10, "threshold": 0.2}, Summary{Type: TypeWillisonAmplitude, Mode: "moving", WindowSize: 10}},
		{TypeSlopeSignChange, Params{"windowSize": 10, "threshold": 0}, Summary{Type: TypeSlopeSignChange, Mode: "moving", WindowSize: 10}},
		{TypeWaveformLength, Params{"windowSize": int64(5)}, Summary{Type: TypeWaveformLength, Mode: "moving", WindowSize: 5}},
	}

	registry := DefaultRegistry()
	for _, tc := range tests {
		t.Run(tc.typeName, func(t *testing.T) {
			t.Parallel()

			s, err := registry.Build(tc.typeName, tc.params, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.typeName, s.Type())
			assert.Equal(t, tc.want, s.Summary())
		})
	}
}

func TestBuildInvalidParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		typeName string
		params   Params
	}{
		{"missing mode", TypeMovingAverage, Params{"windowSize": 4}},
		{"unknown mode", TypeRMS, Params{"mode": "sliding", "windowSize": 4}},
		{"moving without window", TypeVariance, Params{"mode": "moving"}},
		{"zero window", TypeMovingAverage, Params{"mode": "moving", "windowSize": 0}},
		{"fractional window", TypeMovingAverage, Params{"mode": "moving", "windowSize": 2.5}},
		{"string window", TypeMovingAverage, Params{"mode": "moving", "windowSize": "4"}},
		{"zero epsilon", TypeZScoreNormalize, Params{"mode": "batch", "epsilon": 0}},
		{"negative epsilon", TypeZScoreNormalize, Params{"mode": "batch", "epsilon": -1e-3}},
		{"missing threshold", TypeWillisonAmplitude, Params{"windowSize": 4}},
		{"missing window", TypeSlopeSignChange, Params{"threshold": 1}},
		{"rectify mode", TypeRectify, Params{"mode": "quarter"}},
		{"rectify mode type", TypeRectify, Params{"mode": 1}},
	}

	registry := DefaultRegistry()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := registry.Build(tc.typeName, tc.params, nil)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParamsMatchLowercasedKeys(t *testing.T) {
	t.Parallel()

	s, err := DefaultRegistry().Build(TypeZScoreNormalize, Params{"mode": "moving", "windowsize": 6, "epsilon": 0.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Summary().WindowSize)
}
