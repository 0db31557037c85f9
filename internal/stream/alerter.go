package stream

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/message"
)

// Alerter exports the latest output of every channel and checks it against
// the configured bounds. Frames are forwarded to output when it is set.
type Alerter struct {
	pipelineName string
	alerts       map[int][]config.AlertConfig
	input        <-chan message.FeatureFrame
	output       chan<- message.FeatureFrame
	logger       *zap.Logger
}

// NewAlerter creates a new Alerter instance. output may be nil.
func NewAlerter(pipelineName string, alerts []config.AlertConfig, input <-chan message.FeatureFrame, output chan<- message.FeatureFrame, logger *zap.Logger) *Alerter {
	byChannel := make(map[int][]config.AlertConfig)
	for _, a := range alerts {
		byChannel[a.Channel] = append(byChannel[a.Channel], a)
	}

	logger.Debug("Alerter initialized", zap.Int("alert_count", len(alerts)))

	return &Alerter{
		pipelineName: pipelineName,
		alerts:       byChannel,
		input:        input,
		output:       output,
		logger:       logger,
	}
}

// Run starts the alerter's processing loop.
func (a *Alerter) Run(ctx context.Context) error {
	sugar := a.logger.Sugar()
	sugar.Info("Starting alerter loop...")
	defer sugar.Info("Alerter loop stopped.")

	for {
		select {
		case frame, ok := <-a.input:
			if !ok {
				sugar.Info("Alerter input channel closed.")
				return nil
			}
			a.processFrame(frame)

			if a.output == nil {
				continue
			}
			select {
			case a.output <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping alerter.")
			return ctx.Err()
		}
	}
}

// processFrame looks at the newest sample of each channel.
func (a *Alerter) processFrame(frame message.FeatureFrame) {
	channels := frame.Channels
	if channels < 1 || len(frame.Features) < channels {
		return
	}
	latest := frame.Features[len(frame.Features)-channels:]

	for ch, value := range latest {
		label := strconv.Itoa(ch)
		channelFeature.WithLabelValues(a.pipelineName, label).Set(value)

		for _, bounds := range a.alerts[ch] {
			a.check(frame, ch, label, value, bounds)
		}
	}
}

func (a *Alerter) check(frame message.FeatureFrame, ch int, label string, value float64, bounds config.AlertConfig) {
	if bounds.Min != nil && value < *bounds.Min {
		a.logger.Warn("Channel feature below minimum",
			zap.String("stream", frame.Stream),
			zap.Int("channel", ch),
			zap.Time("timestamp", frame.Timestamp),
			zap.Float64("actual", value),
			zap.Float64("threshold", *bounds.Min),
			zap.String("comparison", "<"),
		)
		thresholdViolations.WithLabelValues(a.pipelineName, label, "<").Inc()
	}
	if bounds.Max != nil && value > *bounds.Max {
		a.logger.Warn("Channel feature above maximum",
			zap.String("stream", frame.Stream),
			zap.Int("channel", ch),
			zap.Time("timestamp", frame.Timestamp),
			zap.Float64("actual", value),
			zap.Float64("threshold", *bounds.Max),
			zap.String("comparison", ">"),
		)
		thresholdViolations.WithLabelValues(a.pipelineName, label, ">").Inc()
	}
}
