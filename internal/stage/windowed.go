package stage

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/engine"
	"github.com/sanspareilsmyn/featurestream/internal/policy"
)

// windowedState is the persisted form of a moving Windowed stage. Moving
// state always carries a channels array, empty before the first pass.
type windowedState struct {
	Mode       Mode           `json:"mode"`
	WindowSize *int           `json:"windowSize,omitempty"`
	Epsilon    *float64       `json:"epsilon,omitempty"`
	Channels   []channelState `json:"channels"`
}

// batchState is the persisted form of a batch Windowed stage.
type batchState struct {
	Mode    Mode     `json:"mode"`
	Epsilon *float64 `json:"epsilon,omitempty"`
}

type channelState struct {
	Buffer              []float64 `json:"buffer"`
	RunningSum          *float64  `json:"runningSum,omitempty"`
	RunningSumOfSquares *float64  `json:"runningSumOfSquares,omitempty"`
}

// statistic describes one windowed statistic: how to build its policy, how
// to reduce a whole channel in batch mode, and how its running state maps
// onto the persisted channel fields.
type statistic[S any, P policy.Policy[float64, S]] struct {
	typeName  string
	newPolicy func() P
	batch     reduceFunc
	encode    func(s S, cs *channelState)
	decode    func(cs channelState) (S, error)
}

// Windowed runs one engine per channel in moving mode, or a per-channel
// reduction in batch mode.
type Windowed[S any, P policy.Policy[float64, S]] struct {
	stat       statistic[S, P]
	mode       Mode
	windowSize int
	epsilon    *float64
	engines    []*engine.Engine[float64, S, P]
	logger     *zap.Logger
}

func newWindowed[S any, P policy.Policy[float64, S]](stat statistic[S, P], mode Mode, windowSize int, logger *zap.Logger) (*Windowed[S, P], error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%s: %w", stat.typeName, err)
	}
	if mode == ModeMoving && windowSize <= 0 {
		return nil, fmt.Errorf("%w: %s: window size must be greater than 0 for 'moving' mode", ErrInvalidConfig, stat.typeName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Windowed[S, P]{
		stat:       stat,
		mode:       mode,
		windowSize: windowSize,
		logger:     logger,
	}, nil
}

func (s *Windowed[S, P]) Type() string    { return s.stat.typeName }
func (s *Windowed[S, P]) Mode() Mode      { return s.mode }
func (s *Windowed[S, P]) WindowSize() int { return s.windowSize }

// Process replaces every sample with its channel's statistic.
func (s *Windowed[S, P]) Process(buf []float64, channels int) error {
	if err := checkChannels(channels); err != nil {
		return err
	}
	if s.mode == ModeBatch {
		processBatch(buf, channels, s.stat.batch)
		return nil
	}

	if err := checkFinite(s.stat.typeName, buf); err != nil {
		return err
	}
	if err := s.ensureEngines(channels); err != nil {
		return err
	}
	for i, v := range buf {
		buf[i] = s.engines[i%channels].AddSample(v)
	}
	return nil
}

// ensureEngines (re)allocates one engine per channel. A change of channel
// count discards all window contents.
func (s *Windowed[S, P]) ensureEngines(channels int) error {
	if len(s.engines) == channels {
		return nil
	}
	if len(s.engines) > 0 {
		s.logger.Warn("Channel count changed, discarding window state",
			zap.String("stage", s.stat.typeName),
			zap.Int("previous_channels", len(s.engines)),
			zap.Int("channels", channels),
		)
		channelReinits.WithLabelValues(s.stat.typeName).Inc()
	}
	engines, err := s.newEngines(channels)
	if err != nil {
		return err
	}
	s.engines = engines
	return nil
}

func (s *Windowed[S, P]) newEngines(channels int) ([]*engine.Engine[float64, S, P], error) {
	engines := make([]*engine.Engine[float64, S, P], channels)
	for c := range engines {
		e, err := engine.New[float64, S](s.windowSize, s.stat.newPolicy())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, s.stat.typeName, err)
		}
		engines[c] = e
	}
	return engines, nil
}

// Reset clears every channel's window; channel count and window size survive.
func (s *Windowed[S, P]) Reset() {
	for _, e := range s.engines {
		e.Clear()
	}
}

func (s *Windowed[S, P]) SerializeState() (json.RawMessage, error) {
	if s.mode == ModeBatch {
		return json.Marshal(batchState{Mode: s.mode, Epsilon: s.epsilon})
	}

	windowSize := s.windowSize
	state := windowedState{
		Mode:       s.mode,
		WindowSize: &windowSize,
		Epsilon:    s.epsilon,
		Channels:   make([]channelState, len(s.engines)),
	}
	for c, e := range s.engines {
		buf, agg := e.Snapshot()
		state.Channels[c].Buffer = buf
		s.stat.encode(agg, &state.Channels[c])
	}
	return json.Marshal(state)
}

// DeserializeState validates and adopts a persisted state. The stage keeps
// its current engines unless every channel validates.
func (s *Windowed[S, P]) DeserializeState(raw json.RawMessage) error {
	var state windowedState
	if err := decodeState(s.stat.typeName, raw, &state); err != nil {
		return err
	}
	if state.Mode != s.mode {
		return fmt.Errorf("%w: %s: configured %q, state %q", ErrModeMismatch, s.stat.typeName, s.mode, state.Mode)
	}
	if err := s.checkEpsilon(state.Epsilon); err != nil {
		return err
	}
	if s.mode == ModeBatch {
		return nil
	}
	if state.WindowSize == nil {
		return fmt.Errorf("%w: %s: missing windowSize", ErrMalformedState, s.stat.typeName)
	}
	if *state.WindowSize != s.windowSize {
		return fmt.Errorf("%w: %s: configured %d, state %d", ErrWindowSizeMismatch, s.stat.typeName, s.windowSize, *state.WindowSize)
	}

	engines, err := s.newEngines(len(state.Channels))
	if err != nil {
		return err
	}
	for c, cs := range state.Channels {
		agg, err := s.stat.decode(cs)
		if err != nil {
			return fmt.Errorf("%w: %s: channel %d: %w", ErrMalformedState, s.stat.typeName, c, err)
		}
		if err := engines[c].Restore(cs.Buffer, agg); err != nil {
			return fmt.Errorf("%w: %s: channel %d: %w", ErrStateCorruption, s.stat.typeName, c, err)
		}
	}
	s.engines = engines
	return nil
}

func (s *Windowed[S, P]) checkEpsilon(stateEpsilon *float64) error {
	if s.epsilon == nil {
		return nil
	}
	if stateEpsilon == nil || *stateEpsilon != *s.epsilon {
		return fmt.Errorf("%w: %s: epsilon configured %g, state %v", ErrParamMismatch, s.stat.typeName, *s.epsilon, stateEpsilon)
	}
	return nil
}

func (s *Windowed[S, P]) Summary() Summary {
	summary := Summary{
		Type:         s.stat.typeName,
		Mode:         string(s.mode),
		ChannelCount: len(s.engines),
	}
	if s.mode == ModeMoving {
		summary.WindowSize = s.windowSize
	}
	if len(s.engines) > 0 {
		summary.BufferSize = s.engines[0].Len()
	}
	return summary
}
