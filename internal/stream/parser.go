package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/message"
)

// Parser turns raw message values into validated frames. Frames that fail
// validation are logged and skipped.
type Parser struct {
	pipelineName string
	input        <-chan []byte
	output       chan<- message.Frame
	logger       *zap.Logger
	now          func() time.Time
}

func NewParser(pipelineName string, input <-chan []byte, output chan<- message.Frame, logger *zap.Logger) *Parser {
	return &Parser{
		pipelineName: pipelineName,
		input:        input,
		output:       output,
		logger:       logger,
		now:          time.Now,
	}
}

// Run parses until the input is closed or ctx is cancelled.
func (p *Parser) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Debug("Starting parser loop...")

	for {
		select {
		case raw, ok := <-p.input:
			if !ok {
				sugar.Debug("Parser finished (raw message channel closed).")
				return nil
			}

			frame, err := message.ParseFrame(raw, p.now())
			if err != nil {
				framesDropped.WithLabelValues(p.pipelineName, dropReasonParse).Inc()
				sugar.Warnw("Failed to parse frame, skipping", zap.Error(err))
				continue
			}

			select {
			case p.output <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
