package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_frames_processed_total",
			Help: "Total number of sample frames run through the feature pipeline.",
		},
		[]string{"pipeline"},
	)
	framesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_frames_dropped_total",
			Help: "Total number of frames dropped, by reason.",
		},
		[]string{"pipeline", "reason"},
	)
	checkpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_checkpoints_total",
			Help: "Total number of pipeline state checkpoints and restores, by outcome.",
		},
		[]string{"pipeline", "operation", "outcome"},
	)
	channelFeature = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "featurestream_channel_feature_value",
			Help: "Latest pipeline output for a channel.",
		},
		[]string{"pipeline", "channel"},
	)
	thresholdViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_threshold_violations_total",
			Help: "Total number of channel outputs outside their configured bounds.",
		},
		[]string{"pipeline", "channel", "comparison"},
	)
	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_publish_failures_total",
			Help: "Total number of feature frames that could not be written to Kafka.",
		},
		[]string{"pipeline"},
	)
)

const (
	dropReasonChannels     = "channel_mismatch"
	dropReasonProcessing   = "processing_error"
	dropReasonBackpressure = "output_full"
	dropReasonParse        = "parse_error"
)
