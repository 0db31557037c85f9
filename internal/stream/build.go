package stream

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/dsp"
	"github.com/sanspareilsmyn/featurestream/internal/stage"
)

// BuildPipeline creates a pipeline with the configured stages, in order.
func BuildPipeline(cfg config.PipelineConfig, registry *stage.Registry, logger *zap.Logger) (*dsp.Pipeline, error) {
	p := dsp.New(registry, dsp.WithName(cfg.Name), dsp.WithLogger(logger))
	for i, sc := range cfg.Stages {
		if err := p.AddStage(sc.Type, stage.Params(sc.Params)); err != nil {
			return nil, fmt.Errorf("%w: stage %d: %w", ErrPipelineCreationFailed, i, err)
		}
	}
	logger.Info("Feature pipeline built",
		zap.String("pipeline", cfg.Name),
		zap.Int("stage_count", p.Len()),
		zap.Int("channels", cfg.Channels),
	)
	return p, nil
}
