package stream

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/message"
)

func TestAlerterExportsLatestValuesAndChecksBounds(t *testing.T) {
	t.Parallel()

	low, high := 1.0, 5.0
	alerts := []config.AlertConfig{
		{Channel: 0, Min: &low},
		{Channel: 1, Max: &high},
	}
	input := make(chan message.FeatureFrame, 2)
	output := make(chan message.FeatureFrame, 2)
	a := NewAlerter(t.Name(), alerts, input, output, zap.NewNop())

	input <- message.FeatureFrame{Stream: "s", Channels: 2, Features: []float64{9, 9, 0.5, 7}}
	input <- message.FeatureFrame{Stream: "s", Channels: 2, Features: []float64{2, 3}}
	close(input)
	require.NoError(t, a.Run(context.Background()))

	assert.InDelta(t, 2, testutil.ToFloat64(channelFeature.WithLabelValues(t.Name(), "0")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(channelFeature.WithLabelValues(t.Name(), "1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(thresholdViolations.WithLabelValues(t.Name(), "0", "<")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(thresholdViolations.WithLabelValues(t.Name(), "1", ">")), 0)
	assert.Len(t, output, 2, "frames are forwarded")
}

func TestAlerterIgnoresEmptyFrames(t *testing.T) {
	t.Parallel()

	input := make(chan message.FeatureFrame, 1)
	a := NewAlerter(t.Name(), nil, input, nil, zap.NewNop())
	input <- message.FeatureFrame{Channels: 2}
	close(input)
	require.NoError(t, a.Run(context.Background()))
}
