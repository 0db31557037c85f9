package dsp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "featurestream_pipeline_pass_duration_seconds",
			Help:    "Time spent running one buffer through every stage of a pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"pipeline"},
	)
	samplesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_pipeline_samples_total",
			Help: "Total number of interleaved samples processed by a pipeline.",
		},
		[]string{"pipeline"},
	)
	passFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_pipeline_failures_total",
			Help: "Total number of passes that failed, by the type of the failing stage.",
		},
		[]string{"pipeline", "stage_type"},
	)
	stateOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurestream_pipeline_state_operations_total",
			Help: "Total number of state save/load/clear operations, by outcome.",
		},
		[]string{"pipeline", "operation", "outcome"},
	)
)
