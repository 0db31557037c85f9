package stage

import (
	"encoding/json"
	"fmt"
	"math"
)

const TypeRectify = "rectify"

// RectifyMode selects full-wave (absolute value) or half-wave (negatives
// clipped to zero) rectification.
type RectifyMode string

const (
	RectifyFull RectifyMode = "full"
	RectifyHalf RectifyMode = "half"
)

type rectifyState struct {
	Mode RectifyMode `json:"mode"`
}

// Rectify is a stateless per-sample stage.
type Rectify struct {
	mode         RectifyMode
	lastChannels int
}

// NewRectify returns a rectify stage.
func NewRectify(mode RectifyMode) (*Rectify, error) {
	switch mode {
	case RectifyFull, RectifyHalf:
	default:
		return nil, fmt.Errorf("%w: %s: mode must be %q or %q, got %q", ErrInvalidConfig, TypeRectify, RectifyFull, RectifyHalf, mode)
	}
	return &Rectify{mode: mode}, nil
}

func (s *Rectify) Type() string { return TypeRectify }

func (s *Rectify) Process(buf []float64, channels int) error {
	if err := checkChannels(channels); err != nil {
		return err
	}
	s.lastChannels = channels
	if s.mode == RectifyFull {
		for i, v := range buf {
			buf[i] = math.Abs(v)
		}
		return nil
	}
	for i, v := range buf {
		buf[i] = math.Max(0, v)
	}
	return nil
}

func (s *Rectify) SerializeState() (json.RawMessage, error) {
	return json.Marshal(rectifyState{Mode: s.mode})
}

func (s *Rectify) DeserializeState(raw json.RawMessage) error {
	var state rectifyState
	if err := decodeState(TypeRectify, raw, &state); err != nil {
		return err
	}
	if state.Mode != s.mode {
		return fmt.Errorf("%w: %s: configured %q, state %q", ErrModeMismatch, TypeRectify, s.mode, state.Mode)
	}
	return nil
}

func (s *Rectify) Reset() {}

func (s *Rectify) Summary() Summary {
	return Summary{Type: TypeRectify, Mode: string(s.mode), ChannelCount: s.lastChannels}
}
