package stream

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/dsp"
	"github.com/sanspareilsmyn/featurestream/internal/message"
	"github.com/sanspareilsmyn/featurestream/internal/statestore"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeMissing = "missing"
)

// Processor runs frames through the feature pipeline and checkpoints the
// pipeline state to the store.
type Processor struct {
	cfg      config.PipelineConfig
	stateCfg config.StateConfig
	pipeline *dsp.Pipeline
	store    statestore.Store
	input    <-chan message.Frame
	output   chan<- message.FeatureFrame
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a new Processor instance.
func NewProcessor(cfg config.PipelineConfig, stateCfg config.StateConfig, pipeline *dsp.Pipeline, store statestore.Store, input <-chan message.Frame, output chan<- message.FeatureFrame, logger *zap.Logger) *Processor {
	logger.Info("Processor initialized",
		zap.Int("channels", cfg.Channels),
		zap.Duration("checkpoint_interval", cfg.CheckpointInterval),
		zap.String("state_key", stateCfg.Key),
	)
	return &Processor{
		cfg:      cfg,
		stateCfg: stateCfg,
		pipeline: pipeline,
		store:    store,
		input:    input,
		output:   output,
		logger:   logger,
		now:      time.Now,
	}
}

// Run restores the last checkpoint when configured, then processes frames
// until the input is closed or ctx is cancelled. A final checkpoint is
// written on the way out.
func (p *Processor) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting processor loop...")
	defer sugar.Info("Processor loop stopped.")

	if p.stateCfg.RestoreOnStart {
		p.Restore()
	}

	var tick <-chan time.Time
	if p.cfg.CheckpointInterval > 0 {
		ticker := time.NewTicker(p.cfg.CheckpointInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case frame, ok := <-p.input:
			if !ok {
				sugar.Info("Processor input channel closed. Writing final checkpoint...")
				p.Checkpoint()
				return nil
			}
			p.processFrame(frame)

		case tickTime := <-tick:
			sugar.Debugw("Checkpoint ticker fired", zap.Time("tick_time", tickTime))
			p.Checkpoint()

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping processor. Writing final checkpoint...")
			p.Checkpoint()
			return ctx.Err()
		}
	}
}

// processFrame runs one frame and forwards the features. A pass is never
// abandoned halfway, so the caller waits for the result even during
// shutdown.
func (p *Processor) processFrame(frame message.Frame) {
	if frame.Channels != p.cfg.Channels {
		framesDropped.WithLabelValues(p.cfg.Name, dropReasonChannels).Inc()
		p.logger.Warn("Frame channel count does not match pipeline, skipping",
			zap.String("stream", frame.Stream),
			zap.Int("frame_channels", frame.Channels),
			zap.Int("pipeline_channels", p.cfg.Channels),
		)
		return
	}

	done, err := p.pipeline.Process(frame.Samples, frame.Channels)
	if err != nil {
		framesDropped.WithLabelValues(p.cfg.Name, dropReasonProcessing).Inc()
		p.logger.Warn("Frame rejected by pipeline", zap.String("stream", frame.Stream), zap.Error(err))
		return
	}
	result := <-done
	if result.Err != nil {
		framesDropped.WithLabelValues(p.cfg.Name, dropReasonProcessing).Inc()
		p.logger.Error("Pipeline pass failed", zap.String("stream", frame.Stream), zap.Error(result.Err))
		return
	}
	framesProcessed.WithLabelValues(p.cfg.Name).Inc()

	features := message.FeatureFrame{
		Stream:      frame.Stream,
		Pipeline:    p.cfg.Name,
		Channels:    frame.Channels,
		Features:    result.Buffer,
		Timestamp:   frame.Timestamp,
		ProcessedAt: p.now(),
	}

	select {
	case p.output <- features:
	default:
		framesDropped.WithLabelValues(p.cfg.Name, dropReasonBackpressure).Inc()
		p.logger.Warn("Processor output channel full, dropping features",
			zap.String("stream", frame.Stream),
			zap.Time("timestamp", frame.Timestamp),
		)
	}
}

// Checkpoint saves the pipeline state under the configured key.
func (p *Processor) Checkpoint() {
	data, err := p.pipeline.MarshalState()
	if err == nil {
		err = p.store.Put(p.stateCfg.Key, data)
	}
	if err != nil {
		checkpoints.WithLabelValues(p.cfg.Name, "save", outcomeFailure).Inc()
		p.logger.Error("Failed to checkpoint pipeline state", zap.String("key", p.stateCfg.Key), zap.Error(err))
		return
	}
	checkpoints.WithLabelValues(p.cfg.Name, "save", outcomeSuccess).Inc()
	p.logger.Debug("Pipeline state checkpointed", zap.String("key", p.stateCfg.Key), zap.Int("bytes", len(data)))
}

// Restore loads the last checkpoint. A snapshot that does not fit the
// pipeline is discarded and processing starts from empty windows.
func (p *Processor) Restore() {
	data, err := p.store.Get(p.stateCfg.Key)
	if errors.Is(err, statestore.ErrNotFound) {
		checkpoints.WithLabelValues(p.cfg.Name, "restore", outcomeMissing).Inc()
		p.logger.Info("No pipeline checkpoint found, starting fresh", zap.String("key", p.stateCfg.Key))
		return
	}
	if err == nil {
		err = p.pipeline.UnmarshalState(data)
	}
	if err != nil {
		checkpoints.WithLabelValues(p.cfg.Name, "restore", outcomeFailure).Inc()
		p.logger.Warn("Failed to restore pipeline checkpoint, starting fresh",
			zap.String("key", p.stateCfg.Key),
			zap.Error(err),
		)
		p.pipeline.ClearState()
		return
	}
	checkpoints.WithLabelValues(p.cfg.Name, "restore", outcomeSuccess).Inc()
	p.logger.Info("Pipeline checkpoint restored", zap.String("key", p.stateCfg.Key))
}
