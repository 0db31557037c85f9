// Package stream wires the feature pipeline into a Kafka service: consume
// sample frames, run them through the pipeline, export and check the
// results, and optionally publish them.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/dsp"
	"github.com/sanspareilsmyn/featurestream/internal/message"
	"github.com/sanspareilsmyn/featurestream/internal/stage"
	"github.com/sanspareilsmyn/featurestream/internal/statestore"
)

const channelBufferSize = 100

// component is one long-running stage of the service.
type component interface {
	Run(ctx context.Context) error
}

// Service orchestrates consumer, parser, processor, alerter and publisher.
type Service struct {
	cfg       *config.Config
	pipeline  *dsp.Pipeline
	consumer  component
	parser    *Parser
	processor *Processor
	alerter   *Alerter
	publisher component
	logger    *zap.Logger

	rawMessages chan []byte
	frames      chan message.Frame
	features    chan message.FeatureFrame
	published   chan message.FeatureFrame
}

// New creates and wires up the service.
func New(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	initLogger := logger.Named("service.init")
	initLogger.Debug("Creating service components...")

	store, err := statestore.NewFileStore(cfg.State.Directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateStoreCreationFailed, err)
	}

	pipeline, err := BuildPipeline(cfg.Pipeline, stage.DefaultRegistry(), logger.Named("dsp"))
	if err != nil {
		initLogger.Error("Failed to build pipeline", zap.Error(err))
		return nil, err
	}

	rawMessages := make(chan []byte, channelBufferSize)
	consumer, err := NewConsumer(cfg.Kafka, rawMessages, logger.Named("consumer"))
	if err != nil {
		initLogger.Error("Failed to create consumer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}

	s := newService(cfg, pipeline, store, consumer, rawMessages, logger)
	if cfg.Kafka.OutputTopic != "" {
		s.published = make(chan message.FeatureFrame, channelBufferSize)
		s.publisher = NewPublisher(cfg.Pipeline.Name, cfg.Kafka, s.published, logger.Named("publisher"))
		s.alerter.output = s.published
	}

	initLogger.Info("Service instance created successfully",
		zap.String("pipeline", cfg.Pipeline.Name),
		zap.Bool("publishing", s.publisher != nil),
	)
	return s, nil
}

func newService(cfg *config.Config, pipeline *dsp.Pipeline, store statestore.Store, consumer component, rawMessages chan []byte, logger *zap.Logger) *Service {
	frames := make(chan message.Frame, channelBufferSize)
	features := make(chan message.FeatureFrame, channelBufferSize)

	return &Service{
		cfg:         cfg,
		pipeline:    pipeline,
		consumer:    consumer,
		parser:      NewParser(cfg.Pipeline.Name, rawMessages, frames, logger.Named("parser")),
		processor:   NewProcessor(cfg.Pipeline, cfg.State, pipeline, store, frames, features, logger.Named("processor")),
		alerter:     NewAlerter(cfg.Pipeline.Name, cfg.Alerts, features, nil, logger.Named("alerter")),
		logger:      logger.Named("service"),
		rawMessages: rawMessages,
		frames:      frames,
		features:    features,
	}
}

// Pipeline exposes the feature pipeline for diagnostics.
func (s *Service) Pipeline() *dsp.Pipeline { return s.pipeline }

// Run starts all components and waits for them to complete or for ctx to
// be cancelled. Each component closes its output channel on exit, so a
// stopped producer drains everything downstream of it.
func (s *Service) Run(ctx context.Context) error {
	sugar := s.logger.Sugar()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 5)
	var wg conc.WaitGroup

	sugar.Info("Service Run: Starting components...")

	wg.Go(func() {
		defer close(s.rawMessages)
		s.runComponent(ctx, "consumer", s.consumer, ErrConsumerRunFailed, errCh)
	})
	wg.Go(func() {
		defer close(s.frames)
		// Parser errors are only ever cancellations.
		_ = s.parser.Run(ctx)
	})
	// The processor keeps draining frames after cancellation so its final
	// checkpoint covers everything already consumed.
	wg.Go(func() {
		defer close(s.features)
		s.runComponent(context.WithoutCancel(ctx), "processor", s.processor, ErrProcessorRunFailed, errCh)
	})
	wg.Go(func() {
		if s.published != nil {
			defer close(s.published)
		}
		s.runComponent(ctx, "alerter", s.alerter, ErrAlerterRunFailed, errCh)
	})
	if s.publisher != nil {
		wg.Go(func() {
			s.runComponent(ctx, "publisher", s.publisher, ErrPublisherRunFailed, errCh)
		})
	}

	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Service Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-errCh:
		sugar.Errorw("Service Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}
	cancel()

	wg.Wait()
	sugar.Info("Service Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

func (s *Service) runComponent(ctx context.Context, name string, c component, wrap error, errCh chan<- error) {
	s.logger.Debug("Starting component", zap.String("component", name))
	err := c.Run(ctx)
	switch {
	case err == nil:
		s.logger.Debug("Component finished normally", zap.String("component", name))
	case errors.Is(err, context.Canceled):
		s.logger.Debug("Component cancelled gracefully", zap.String("component", name))
	default:
		s.logger.Error("Component exited with error", zap.String("component", name), zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", wrap, err)
	}
}
