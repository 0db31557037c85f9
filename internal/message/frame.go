package message

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Frame is one batch of interleaved samples read from the input topic:
// [ch0, ch1, ..., chN-1, ch0, ...].
type Frame struct {
	Stream    string
	Channels  int
	Samples   []float64
	Timestamp time.Time
}

// FeatureFrame is a processed Frame as written to the output topic.
type FeatureFrame struct {
	Stream      string    `json:"stream"`
	Pipeline    string    `json:"pipeline"`
	Channels    int       `json:"channels"`
	Features    []float64 `json:"features"`
	Timestamp   time.Time `json:"timestamp"`
	ProcessedAt time.Time `json:"processedAt"`
}

// ParseDynamicJSON parses JSON data from a byte slice into a DynamicMessage map.
func ParseDynamicJSON(data []byte) (DynamicMessage, error) {
	var msg DynamicMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	return msg, nil
}

// ParseFrame decodes and validates a sample frame. A missing timestamp
// defaults to now.
func ParseFrame(data []byte, now time.Time) (Frame, error) {
	msg, err := ParseDynamicJSON(data)
	if err != nil {
		return Frame{}, err
	}

	channels, ok := msg.GetFloat64("channels")
	if !ok || channels != math.Trunc(channels) || channels < 1 {
		return Frame{}, fmt.Errorf("%w: channels %s", ErrInvalidFrame, msg.GetFieldSnippet("channels", 32))
	}
	samples, ok := msg.GetFloat64Slice("samples")
	if !ok {
		return Frame{}, fmt.Errorf("%w: samples %s", ErrInvalidFrame, msg.GetFieldSnippet("samples", 64))
	}
	if len(samples)%int(channels) != 0 {
		return Frame{}, fmt.Errorf("%w: %d samples for %d channels", ErrInvalidFrame, len(samples), int(channels))
	}

	frame := Frame{
		Channels:  int(channels),
		Samples:   samples,
		Timestamp: now,
	}
	frame.Stream, _ = msg.GetString("stream")
	if msg.HasNonNull("timestamp") {
		ts, ok := msg.GetTime("timestamp")
		if !ok {
			return Frame{}, fmt.Errorf("%w: timestamp %s", ErrInvalidFrame, msg.GetFieldSnippet("timestamp", 40))
		}
		frame.Timestamp = ts
	}
	return frame, nil
}

// Encode marshals f as JSON.
func (f FeatureFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
