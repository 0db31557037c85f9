// Package policy holds the incremental aggregation strategies plugged into
// engine.Engine. Each policy keeps a small running state that is updated in
// O(1) when a value enters or leaves the window.
package policy

import (
	"errors"
	"fmt"
	"math"
)

// ErrAggregateMismatch is returned by Verify when a stored aggregate does not
// match the one recomputed from the window contents.
var ErrAggregateMismatch = errors.New("stored aggregate does not match window contents")

// RelativeTolerance scales the allowed drift between a stored aggregate and a
// recomputed one.
const RelativeTolerance = 0.0001

// Policy is the contract between a window engine and its statistic. T is the
// element type kept in the window and S the serializable running state.
type Policy[T any, S any] interface {
	OnAdd(v T)
	OnRemove(v T)
	Clear()
	// Result returns the statistic over count live values. latest is the
	// sample that was just added; only ZScore looks at it.
	Result(latest T, count int) float64
	State() S
	SetState(s S)
	// Verify recomputes the aggregate from window and compares it with stored.
	Verify(stored S, window []T) error
}

// Moments is the running state shared by Variance and ZScore.
type Moments struct {
	Sum   float64
	SumSq float64
}

// Within reports whether stored is within RelativeTolerance*max(1,|expected|)
// of expected.
func Within(stored, expected float64) bool {
	tolerance := RelativeTolerance * math.Max(1, math.Abs(expected))
	return math.Abs(stored-expected) <= tolerance
}

func checkAggregate(name string, stored, expected float64) error {
	if !Within(stored, expected) {
		return fmt.Errorf("%w: %s expected %g, got %g", ErrAggregateMismatch, name, expected, stored)
	}
	return nil
}

func sumOf(window []float64) float64 {
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum
}

func sumSqOf(window []float64) float64 {
	var sumSq float64
	for _, v := range window {
		sumSq += v * v
	}
	return sumSq
}

// Mean keeps a running sum.
type Mean struct {
	sum float64
}

func (p *Mean) OnAdd(v float64)    { p.sum += v }
func (p *Mean) OnRemove(v float64) { p.sum -= v }
func (p *Mean) Clear()             { p.sum = 0 }
func (p *Mean) State() float64     { return p.sum }
func (p *Mean) SetState(s float64) { p.sum = s }

func (p *Mean) Result(_ float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return p.sum / float64(count)
}

func (p *Mean) Verify(stored float64, window []float64) error {
	return checkAggregate("running sum", stored, sumOf(window))
}

// RMS keeps a running sum of squares.
type RMS struct {
	sumSq float64
}

func (p *RMS) OnAdd(v float64)    { p.sumSq += v * v }
func (p *RMS) OnRemove(v float64) { p.sumSq -= v * v }
func (p *RMS) Clear()             { p.sumSq = 0 }
func (p *RMS) State() float64     { return p.sumSq }
func (p *RMS) SetState(s float64) { p.sumSq = s }

// Result clamps the mean square at zero: incremental subtraction can leave a
// tiny negative residue.
func (p *RMS) Result(_ float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Sqrt(math.Max(0, p.sumSq/float64(count)))
}

func (p *RMS) Verify(stored float64, window []float64) error {
	return checkAggregate("running sum of squares", stored, sumSqOf(window))
}

// MeanAbs keeps a running sum of absolute values.
type MeanAbs struct {
	sumAbs float64
}

func (p *MeanAbs) OnAdd(v float64)    { p.sumAbs += math.Abs(v) }
func (p *MeanAbs) OnRemove(v float64) { p.sumAbs -= math.Abs(v) }
func (p *MeanAbs) Clear()             { p.sumAbs = 0 }
func (p *MeanAbs) State() float64     { return p.sumAbs }
func (p *MeanAbs) SetState(s float64) { p.sumAbs = s }

func (p *MeanAbs) Result(_ float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return p.sumAbs / float64(count)
}

func (p *MeanAbs) Verify(stored float64, window []float64) error {
	var expected float64
	for _, v := range window {
		expected += math.Abs(v)
	}
	return checkAggregate("running sum", stored, expected)
}

// Variance keeps sum and sum of squares and reports the population variance.
type Variance struct {
	m Moments
}

func (p *Variance) OnAdd(v float64) {
	p.m.Sum += v
	p.m.SumSq += v * v
}

func (p *Variance) OnRemove(v float64) {
	p.m.Sum -= v
	p.m.SumSq -= v * v
}

func (p *Variance) Clear()             { p.m = Moments{} }
func (p *Variance) State() Moments     { return p.m }
func (p *Variance) SetState(s Moments) { p.m = s }

func (p *Variance) Result(_ float64, count int) float64 {
	return variance(p.m, count)
}

func (p *Variance) Verify(stored Moments, window []float64) error {
	return verifyMoments(stored, window)
}

// ZScore normalizes the latest sample against the window mean and standard
// deviation. A window whose deviation is below epsilon yields 0.
type ZScore struct {
	m       Moments
	epsilon float64
}

// NewZScore returns a ZScore policy with the given epsilon.
func NewZScore(epsilon float64) *ZScore {
	return &ZScore{epsilon: epsilon}
}

func (p *ZScore) OnAdd(v float64) {
	p.m.Sum += v
	p.m.SumSq += v * v
}

func (p *ZScore) OnRemove(v float64) {
	p.m.Sum -= v
	p.m.SumSq -= v * v
}

func (p *ZScore) Clear()             { p.m = Moments{} }
func (p *ZScore) State() Moments     { return p.m }
func (p *ZScore) SetState(s Moments) { p.m = s }

// Epsilon returns the deviation floor below which results are 0.
func (p *ZScore) Epsilon() float64 { return p.epsilon }

func (p *ZScore) Result(latest float64, count int) float64 {
	if count == 0 {
		return 0
	}
	stddev := math.Sqrt(variance(p.m, count))
	if stddev < p.epsilon {
		return 0
	}
	return (latest - p.m.Sum/float64(count)) / stddev
}

func (p *ZScore) Verify(stored Moments, window []float64) error {
	return verifyMoments(stored, window)
}

func variance(m Moments, count int) float64 {
	if count == 0 {
		return 0
	}
	n := float64(count)
	mean := m.Sum / n
	return math.Max(0, m.SumSq/n-mean*mean)
}

func verifyMoments(stored Moments, window []float64) error {
	if err := checkAggregate("running sum", stored.Sum, sumOf(window)); err != nil {
		return err
	}
	return checkAggregate("running sum of squares", stored.SumSq, sumSqOf(window))
}

// Counter counts the true values currently in the window.
type Counter struct {
	n int
}

func (p *Counter) OnAdd(v bool) {
	if v {
		p.n++
	}
}

func (p *Counter) OnRemove(v bool) {
	if v {
		p.n--
	}
}

func (p *Counter) Clear()         { p.n = 0 }
func (p *Counter) State() int     { return p.n }
func (p *Counter) SetState(s int) { p.n = s }

func (p *Counter) Result(_ bool, _ int) float64 {
	return float64(p.n)
}

// Verify requires an exact count.
func (p *Counter) Verify(stored int, window []bool) error {
	expected := 0
	for _, v := range window {
		if v {
			expected++
		}
	}
	if stored != expected {
		return fmt.Errorf("%w: running count expected %d, got %d", ErrAggregateMismatch, expected, stored)
	}
	return nil
}

// Sum keeps a running sum and reports it unscaled.
type Sum struct {
	sum float64
}

func (p *Sum) OnAdd(v float64)    { p.sum += v }
func (p *Sum) OnRemove(v float64) { p.sum -= v }
func (p *Sum) Clear()             { p.sum = 0 }
func (p *Sum) State() float64     { return p.sum }
func (p *Sum) SetState(s float64) { p.sum = s }

func (p *Sum) Result(_ float64, _ int) float64 { return p.sum }

func (p *Sum) Verify(stored float64, window []float64) error {
	return checkAggregate("running sum", stored, sumOf(window))
}
