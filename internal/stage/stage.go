// Package stage adapts window engines to the pipeline stage contract: one
// engine per channel, batch or moving processing, and validated state
// (de)serialization.
package stage

import (
	"encoding/json"
	"fmt"
	"math"
)

// Stage is one configured processing step. Process mutates buf in place;
// buf is interleaved as [ch0, ch1, ..., chN-1, ch0, ...].
type Stage interface {
	Type() string
	Process(buf []float64, channels int) error
	SerializeState() (json.RawMessage, error)
	DeserializeState(state json.RawMessage) error
	Reset()
	Summary() Summary
}

// Summary is a read-only view of a stage used for diagnostics.
type Summary struct {
	Type         string `json:"type"`
	Mode         string `json:"mode,omitempty"`
	WindowSize   int    `json:"windowSize,omitempty"`
	ChannelCount int    `json:"channelCount"`
	BufferSize   int    `json:"bufferSize"`
}

// Mode selects between a one-shot reduction and a streaming window.
type Mode string

const (
	ModeBatch  Mode = "batch"
	ModeMoving Mode = "moving"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBatch, ModeMoving:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeBatch, ModeMoving, s)
	}
}

func checkChannels(channels int) error {
	if channels < 1 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidInput, channels)
	}
	return nil
}

// checkFinite rejects NaN and ±Inf before they reach a window; JSON state
// cannot encode them.
func checkFinite(typeName string, buf []float64) error {
	for i, v := range buf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s: non-finite sample %g at index %d", ErrInvalidInput, typeName, v, i)
		}
	}
	return nil
}

func decodeState(typeName string, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s: empty state", ErrMalformedState, typeName)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedState, typeName, err)
	}
	return nil
}
