package dsp

import (
	"encoding/json"
	"fmt"
)

// PersistedState is the snapshot of every stage in a pipeline. Each stage's
// state is opaque here and only interpreted by the stage at the same index.
type PersistedState struct {
	Timestamp  int64        `json:"timestamp"`
	StageCount int          `json:"stageCount"`
	Stages     []StageState `json:"stages"`
}

// StageState is one entry of PersistedState.
type StageState struct {
	Index int             `json:"index"`
	Type  string          `json:"type"`
	State json.RawMessage `json:"state,omitempty"`
}

// StateSummary is the diagnostic view returned by ListState.
type StateSummary struct {
	Timestamp  int64          `json:"timestamp"`
	StageCount int            `json:"stageCount"`
	Stages     []StageSummary `json:"stages"`
}

// StageSummary describes one stage without its window contents.
type StageSummary struct {
	Index        int    `json:"index"`
	Type         string `json:"type"`
	Mode         string `json:"mode,omitempty"`
	WindowSize   int    `json:"windowSize,omitempty"`
	ChannelCount int    `json:"channelCount"`
	BufferSize   int    `json:"bufferSize"`
}

// DecodeState parses a JSON snapshot produced by MarshalState.
func DecodeState(data []byte) (*PersistedState, error) {
	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	if state.Stages == nil {
		return nil, fmt.Errorf("%w: missing 'stages' field", ErrMalformedSnapshot)
	}
	return &state, nil
}
