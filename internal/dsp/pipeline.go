// Package dsp chains stages into a pipeline that processes interleaved
// sample buffers off the caller's goroutine and snapshots its state.
package dsp

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/stage"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Result is delivered exactly once per Process call. Buffer is the caller's
// buffer, mutated in place, or nil when Err is set.
type Result struct {
	Buffer []float64
	Err    error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithName labels the pipeline's metrics and log lines.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline is an ordered list of stages. At most one pass or state operation
// runs at a time, and passes run in the order Process was called.
type Pipeline struct {
	mu       sync.Mutex
	queueMu  sync.Mutex
	tail     chan struct{} // closed when the most recently queued pass is done
	registry *stage.Registry
	stages   []stage.Stage
	name     string
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an empty pipeline. A nil registry means stage.DefaultRegistry.
func New(registry *stage.Registry, opts ...Option) *Pipeline {
	if registry == nil {
		registry = stage.DefaultRegistry()
	}
	p := &Pipeline{
		registry: registry,
		name:     "default",
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("pipeline", p.name))
	return p
}

// AddStage builds a stage from the registry and appends it. The stage list
// is unchanged on error.
func (p *Pipeline) AddStage(typeName string, params stage.Params) error {
	s, err := p.registry.Build(typeName, params, p.logger.Named(typeName))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, s)
	p.logger.Debug("Stage added",
		zap.Int("index", len(p.stages)-1),
		zap.String("type", typeName),
	)
	return nil
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stages)
}

// Process runs buf through every stage on a worker goroutine. Each pass
// waits for the one queued before it. The caller must not touch buf until
// the result arrives. Argument errors are returned
// synchronously; everything else is delivered on the channel.
func (p *Pipeline) Process(buf []float64, channels int) (<-chan Result, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}
	if len(buf)%channels != 0 {
		return nil, fmt.Errorf("%w: length %d, channels %d", ErrMalformedBuffer, len(buf), channels)
	}

	p.queueMu.Lock()
	prev := p.tail
	finished := make(chan struct{})
	p.tail = finished
	p.queueMu.Unlock()

	done := make(chan Result, 1)
	go func() {
		defer close(finished)
		if prev != nil {
			<-prev
		}
		if err := p.run(buf, channels); err != nil {
			done <- Result{Err: err}
			return
		}
		done <- Result{Buffer: buf}
	}()
	return done, nil
}

func (p *Pipeline) run(buf []float64, channels int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	current := -1
	var runErr error
	var pc panics.Catcher
	pc.Try(func() {
		for i, s := range p.stages {
			current = i
			if err := s.Process(buf, channels); err != nil {
				runErr = err
				return
			}
		}
	})
	if r := pc.Recovered(); r != nil {
		runErr = r.AsError()
	}

	if runErr != nil {
		stageType := ""
		if current >= 0 && current < len(p.stages) {
			stageType = p.stages[current].Type()
		}
		passFailures.WithLabelValues(p.name, stageType).Inc()
		p.logger.Error("Pipeline pass failed",
			zap.Int("stage_index", current),
			zap.String("stage_type", stageType),
			zap.Error(runErr),
		)
		return fmt.Errorf("%w: stage %d (%s): %w", ErrProcessingFailed, current, stageType, runErr)
	}

	passDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	samplesProcessed.WithLabelValues(p.name).Add(float64(len(buf)))
	return nil
}

// SaveState snapshots every stage in order.
func (p *Pipeline) SaveState() (*PersistedState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := &PersistedState{
		Timestamp:  p.now().Unix(),
		StageCount: len(p.stages),
		Stages:     make([]StageState, len(p.stages)),
	}
	for i, s := range p.stages {
		raw, err := s.SerializeState()
		if err != nil {
			stateOperations.WithLabelValues(p.name, "save", outcomeFailure).Inc()
			return nil, fmt.Errorf("serialize stage %d (%s): %w", i, s.Type(), err)
		}
		state.Stages[i] = StageState{Index: i, Type: s.Type(), State: raw}
	}
	stateOperations.WithLabelValues(p.name, "save", outcomeSuccess).Inc()
	return state, nil
}

// LoadState restores every stage from state. Count and type mismatches are
// detected before any stage is touched. A stage that rejects its state
// aborts the load; stages restored before it keep their new state.
func (p *Pipeline) LoadState(state *PersistedState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.loadState(state); err != nil {
		stateOperations.WithLabelValues(p.name, "load", outcomeFailure).Inc()
		return err
	}
	stateOperations.WithLabelValues(p.name, "load", outcomeSuccess).Inc()
	return nil
}

func (p *Pipeline) loadState(state *PersistedState) error {
	if state == nil || state.Stages == nil {
		return fmt.Errorf("%w: missing 'stages' field", ErrMalformedSnapshot)
	}
	if len(state.Stages) != len(p.stages) {
		return fmt.Errorf("%w: expected %d but got %d", ErrStageCountMismatch, len(p.stages), len(state.Stages))
	}
	for i, entry := range state.Stages {
		if entry.Type != "" && entry.Type != p.stages[i].Type() {
			return fmt.Errorf("%w: stage %d is %s, snapshot has %s", ErrStageTypeMismatch, i, p.stages[i].Type(), entry.Type)
		}
	}

	p.logger.Info("Restoring pipeline state", zap.Int("stage_count", len(state.Stages)))
	for i, entry := range state.Stages {
		if len(entry.State) == 0 {
			continue
		}
		if err := p.stages[i].DeserializeState(entry.State); err != nil {
			return fmt.Errorf("restore stage %d (%s): %w", i, p.stages[i].Type(), err)
		}
	}
	p.logger.Info("Pipeline state restored")
	return nil
}

// ClearState resets every stage without removing it.
func (p *Pipeline) ClearState() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.stages {
		s.Reset()
	}
	stateOperations.WithLabelValues(p.name, "clear", outcomeSuccess).Inc()
	p.logger.Info("Pipeline state cleared", zap.Int("stage_count", len(p.stages)))
}

// ListState summarizes every stage.
func (p *Pipeline) ListState() StateSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := StateSummary{
		Timestamp:  p.now().Unix(),
		StageCount: len(p.stages),
		Stages:     make([]StageSummary, len(p.stages)),
	}
	for i, s := range p.stages {
		ss := s.Summary()
		summary.Stages[i] = StageSummary{
			Index:        i,
			Type:         ss.Type,
			Mode:         ss.Mode,
			WindowSize:   ss.WindowSize,
			ChannelCount: ss.ChannelCount,
			BufferSize:   ss.BufferSize,
		}
	}
	return summary
}

// MarshalState is SaveState encoded as JSON.
func (p *Pipeline) MarshalState() ([]byte, error) {
	state, err := p.SaveState()
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}

// UnmarshalState decodes data and loads it.
func (p *Pipeline) UnmarshalState(data []byte) error {
	state, err := DecodeState(data)
	if err != nil {
		return err
	}
	return p.LoadState(state)
}
