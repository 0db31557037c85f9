package stage

import (
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/featurestream/internal/engine"
)

const (
	TypeWillisonAmplitude = "willisonAmplitude"
	TypeSlopeSignChange   = "slopeSignChange"
	TypeWaveformLength    = "waveformLength"
)

// filter is a per-channel derived filter with a serializable state St.
type filter[St any] interface {
	AddSample(x float64) float64
	Clear()
	Len() int
	Snapshot() St
	Restore(s St) error
}

// derivedState is the persisted form of a Derived stage. Derived stages are
// always moving.
type derivedState[St any] struct {
	Mode       Mode     `json:"mode"`
	WindowSize *int     `json:"windowSize"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Channels   []St     `json:"channels"`
}

// Derived runs one derived filter per channel.
type Derived[St any, F filter[St]] struct {
	typeName   string
	windowSize int
	threshold  *float64
	newFilter  func() (F, error)
	filters    []F
	logger     *zap.Logger
}

func newDerived[St any, F filter[St]](typeName string, windowSize int, threshold *float64, newFilter func() (F, error), logger *zap.Logger) (*Derived[St, F], error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: %s: window size must be greater than 0", ErrInvalidConfig, typeName)
	}
	if threshold != nil && (math.IsNaN(*threshold) || math.IsInf(*threshold, 0)) {
		return nil, fmt.Errorf("%w: %s: threshold must be finite", ErrInvalidConfig, typeName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Derived[St, F]{
		typeName:   typeName,
		windowSize: windowSize,
		threshold:  threshold,
		newFilter:  newFilter,
		logger:     logger,
	}, nil
}

// NewWillisonAmplitude returns a stage counting threshold-exceeding jumps.
func NewWillisonAmplitude(windowSize int, threshold float64, logger *zap.Logger) (*Derived[engine.LagState, *engine.Wamp], error) {
	return newDerived[engine.LagState](TypeWillisonAmplitude, windowSize, &threshold, func() (*engine.Wamp, error) {
		return engine.NewWamp(windowSize, threshold)
	}, logger)
}

// NewSlopeSignChange returns a stage counting slope reversals.
func NewSlopeSignChange(windowSize int, threshold float64, logger *zap.Logger) (*Derived[engine.SlopeState, *engine.SlopeSignChange], error) {
	return newDerived[engine.SlopeState](TypeSlopeSignChange, windowSize, &threshold, func() (*engine.SlopeSignChange, error) {
		return engine.NewSlopeSignChange(windowSize, threshold)
	}, logger)
}

// NewWaveformLength returns a stage summing absolute sample differences.
func NewWaveformLength(windowSize int, logger *zap.Logger) (*Derived[engine.WaveformState, *engine.WaveformLength], error) {
	return newDerived[engine.WaveformState](TypeWaveformLength, windowSize, nil, func() (*engine.WaveformLength, error) {
		return engine.NewWaveformLength(windowSize)
	}, logger)
}

func (s *Derived[St, F]) Type() string { return s.typeName }

func (s *Derived[St, F]) Process(buf []float64, channels int) error {
	if err := checkChannels(channels); err != nil {
		return err
	}
	if err := checkFinite(s.typeName, buf); err != nil {
		return err
	}
	if len(s.filters) != channels {
		if len(s.filters) > 0 {
			s.logger.Warn("Channel count changed, discarding filter state",
				zap.String("stage", s.typeName),
				zap.Int("previous_channels", len(s.filters)),
				zap.Int("channels", channels),
			)
			channelReinits.WithLabelValues(s.typeName).Inc()
		}
		filters, err := s.newFilters(channels)
		if err != nil {
			return err
		}
		s.filters = filters
	}
	for i, v := range buf {
		buf[i] = s.filters[i%channels].AddSample(v)
	}
	return nil
}

func (s *Derived[St, F]) newFilters(channels int) ([]F, error) {
	filters := make([]F, channels)
	for c := range filters {
		f, err := s.newFilter()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, s.typeName, err)
		}
		filters[c] = f
	}
	return filters, nil
}

func (s *Derived[St, F]) Reset() {
	for _, f := range s.filters {
		f.Clear()
	}
}

func (s *Derived[St, F]) SerializeState() (json.RawMessage, error) {
	windowSize := s.windowSize
	state := derivedState[St]{
		Mode:       ModeMoving,
		WindowSize: &windowSize,
		Threshold:  s.threshold,
		Channels:   make([]St, len(s.filters)),
	}
	for c, f := range s.filters {
		state.Channels[c] = f.Snapshot()
	}
	return json.Marshal(state)
}

func (s *Derived[St, F]) DeserializeState(raw json.RawMessage) error {
	var state derivedState[St]
	if err := decodeState(s.typeName, raw, &state); err != nil {
		return err
	}
	if state.Mode != "" && state.Mode != ModeMoving {
		return fmt.Errorf("%w: %s: configured %q, state %q", ErrModeMismatch, s.typeName, ModeMoving, state.Mode)
	}
	if state.WindowSize == nil {
		return fmt.Errorf("%w: %s: missing windowSize", ErrMalformedState, s.typeName)
	}
	if *state.WindowSize != s.windowSize {
		return fmt.Errorf("%w: %s: configured %d, state %d", ErrWindowSizeMismatch, s.typeName, s.windowSize, *state.WindowSize)
	}
	if s.threshold != nil && (state.Threshold == nil || *state.Threshold != *s.threshold) {
		return fmt.Errorf("%w: %s: threshold configured %g, state %v", ErrParamMismatch, s.typeName, *s.threshold, state.Threshold)
	}

	filters, err := s.newFilters(len(state.Channels))
	if err != nil {
		return err
	}
	for c, cs := range state.Channels {
		if err := filters[c].Restore(cs); err != nil {
			return fmt.Errorf("%w: %s: channel %d: %w", ErrStateCorruption, s.typeName, c, err)
		}
	}
	s.filters = filters
	return nil
}

func (s *Derived[St, F]) Summary() Summary {
	summary := Summary{
		Type:         s.typeName,
		Mode:         string(ModeMoving),
		WindowSize:   s.windowSize,
		ChannelCount: len(s.filters),
	}
	if len(s.filters) > 0 {
		summary.BufferSize = s.filters[0].Len()
	}
	return summary
}
