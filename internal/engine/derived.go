package engine

import (
	"math"

	"github.com/sanspareilsmyn/featurestream/internal/policy"
)

// LagState is the serializable form of a Wamp filter.
type LagState struct {
	Buffer      []bool  `json:"buffer"`
	Count       int     `json:"runningCount"`
	Previous    float64 `json:"previousSample"`
	Initialized bool    `json:"initialized"`
}

// SlopeState is the serializable form of a SlopeSignChange filter.
// SampleMinus1 is x[i] and SampleMinus2 is x[i-1]; InitCount saturates at 2.
type SlopeState struct {
	Buffer       []bool  `json:"buffer"`
	Count        int     `json:"runningCount"`
	SampleMinus1 float64 `json:"sample_minus_1"`
	SampleMinus2 float64 `json:"sample_minus_2"`
	InitCount    int     `json:"init_count"`
}

// Wamp counts, over the window, how many consecutive-sample jumps exceeded
// the threshold (Willison amplitude).
type Wamp struct {
	counter     *Engine[bool, int, *policy.Counter]
	threshold   float64
	previous    float64
	initialized bool
}

// NewWamp returns a Willison amplitude filter.
func NewWamp(windowSize int, threshold float64) (*Wamp, error) {
	counter, err := New[bool, int](windowSize, &policy.Counter{})
	if err != nil {
		return nil, err
	}
	return &Wamp{counter: counter, threshold: threshold}, nil
}

// AddSample feeds x and returns the number of threshold crossings in the window.
func (f *Wamp) AddSample(x float64) float64 {
	exceeded := f.initialized && math.Abs(x-f.previous) > f.threshold
	f.previous = x
	f.initialized = true
	return f.counter.AddSample(exceeded)
}

func (f *Wamp) Clear() {
	f.counter.Clear()
	f.previous = 0
	f.initialized = false
}

func (f *Wamp) Len() int { return f.counter.Len() }

func (f *Wamp) Snapshot() LagState {
	buf, count := f.counter.Snapshot()
	return LagState{Buffer: buf, Count: count, Previous: f.previous, Initialized: f.initialized}
}

func (f *Wamp) Restore(s LagState) error {
	if err := f.counter.Restore(s.Buffer, s.Count); err != nil {
		return err
	}
	f.previous = s.Previous
	f.initialized = s.Initialized
	return nil
}

// SlopeSignChange counts local slope reversals whose product of differences
// exceeds the threshold. The first two samples only seed the lags.
type SlopeSignChange struct {
	counter   *Engine[bool, int, *policy.Counter]
	threshold float64
	prev1     float64 // x[i]
	prev2     float64 // x[i-1]
	seen      int
}

// NewSlopeSignChange returns a slope-sign-change filter.
func NewSlopeSignChange(windowSize int, threshold float64) (*SlopeSignChange, error) {
	counter, err := New[bool, int](windowSize, &policy.Counter{})
	if err != nil {
		return nil, err
	}
	return &SlopeSignChange{counter: counter, threshold: threshold}, nil
}

// AddSample treats x as x[i+1] and returns the number of sign changes in the window.
func (f *SlopeSignChange) AddSample(x float64) float64 {
	changed := false
	if f.seen >= 2 {
		changed = (f.prev1-f.prev2)*(f.prev1-x) > f.threshold
	} else {
		f.seen++
	}
	f.prev2 = f.prev1
	f.prev1 = x
	return f.counter.AddSample(changed)
}

func (f *SlopeSignChange) Clear() {
	f.counter.Clear()
	f.prev1 = 0
	f.prev2 = 0
	f.seen = 0
}

func (f *SlopeSignChange) Len() int { return f.counter.Len() }

func (f *SlopeSignChange) Snapshot() SlopeState {
	buf, count := f.counter.Snapshot()
	return SlopeState{
		Buffer:       buf,
		Count:        count,
		SampleMinus1: f.prev1,
		SampleMinus2: f.prev2,
		InitCount:    f.seen,
	}
}

func (f *SlopeSignChange) Restore(s SlopeState) error {
	if err := f.counter.Restore(s.Buffer, s.Count); err != nil {
		return err
	}
	f.prev1 = s.SampleMinus1
	f.prev2 = s.SampleMinus2
	f.seen = min(max(s.InitCount, 0), 2)
	return nil
}

// WaveformState is the serializable form of a WaveformLength filter.
type WaveformState struct {
	Buffer      []float64 `json:"buffer"`
	Sum         float64   `json:"runningSum"`
	Previous    float64   `json:"previousSample"`
	Initialized bool      `json:"initialized"`
}

// WaveformLength sums absolute consecutive differences over the window.
type WaveformLength struct {
	sum         *Engine[float64, float64, *policy.Sum]
	previous    float64
	initialized bool
}

// NewWaveformLength returns a waveform-length filter.
func NewWaveformLength(windowSize int) (*WaveformLength, error) {
	sum, err := New[float64, float64](windowSize, &policy.Sum{})
	if err != nil {
		return nil, err
	}
	return &WaveformLength{sum: sum}, nil
}

// AddSample feeds x and returns the windowed sum of |x[i] - x[i-1]|.
func (f *WaveformLength) AddSample(x float64) float64 {
	var diff float64
	if f.initialized {
		diff = math.Abs(x - f.previous)
	}
	f.previous = x
	f.initialized = true
	return f.sum.AddSample(diff)
}

func (f *WaveformLength) Clear() {
	f.sum.Clear()
	f.previous = 0
	f.initialized = false
}

func (f *WaveformLength) Len() int { return f.sum.Len() }

func (f *WaveformLength) Snapshot() WaveformState {
	buf, sum := f.sum.Snapshot()
	return WaveformState{Buffer: buf, Sum: sum, Previous: f.previous, Initialized: f.initialized}
}

func (f *WaveformLength) Restore(s WaveformState) error {
	if err := f.sum.Restore(s.Buffer, s.Sum); err != nil {
		return err
	}
	f.previous = s.Previous
	f.initialized = s.Initialized
	return nil
}
