package stage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var channelReinits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "featurestream_stage_channel_reinit_total",
		Help: "Number of times a stage discarded its per-channel state because the channel count changed.",
	},
	[]string{"stage_type"},
)
