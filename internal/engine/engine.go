// Package engine binds a ring window to an aggregation policy and builds the
// derived amplitude filters on top of it.
package engine

import (
	"fmt"

	"github.com/sanspareilsmyn/featurestream/internal/policy"
	"github.com/sanspareilsmyn/featurestream/internal/ring"
)

// Engine is a sliding window whose statistic is maintained incrementally by
// P. The policy only ever sees values that are live in the window: evictions
// are reported before the overwrite, additions before the result is read.
type Engine[T any, S any, P policy.Policy[T, S]] struct {
	window *ring.Window[T]
	policy P
}

// New returns an engine over a window of windowSize samples.
func New[T any, S any, P policy.Policy[T, S]](windowSize int, p P) (*Engine[T, S, P], error) {
	w, err := ring.New[T](windowSize)
	if err != nil {
		return nil, err
	}
	return &Engine[T, S, P]{window: w, policy: p}, nil
}

// AddSample pushes v and returns the policy's result over the updated window.
func (e *Engine[T, S, P]) AddSample(v T) float64 {
	if e.window.Full() {
		// Peek cannot fail on a full window.
		evicted, _ := e.window.Peek()
		e.policy.OnRemove(evicted)
	}
	e.window.PushOverwrite(v)
	e.policy.OnAdd(v)
	return e.policy.Result(v, e.window.Len())
}

// Clear empties the window, then resets the policy.
func (e *Engine[T, S, P]) Clear() {
	e.window.Clear()
	e.policy.Clear()
}

func (e *Engine[T, S, P]) Len() int        { return e.window.Len() }
func (e *Engine[T, S, P]) WindowSize() int { return e.window.Cap() }
func (e *Engine[T, S, P]) Full() bool      { return e.window.Full() }
func (e *Engine[T, S, P]) Policy() P       { return e.policy }

// Snapshot returns the window contents oldest to newest and the policy state.
func (e *Engine[T, S, P]) Snapshot() ([]T, S) {
	return e.window.Slice(), e.policy.State()
}

// Restore replaces the window with buffer and adopts state after checking it
// against the restored contents. On failure the engine is left cleared.
func (e *Engine[T, S, P]) Restore(buffer []T, state S) error {
	e.window.Fill(buffer)
	if err := e.policy.Verify(state, e.window.Slice()); err != nil {
		e.Clear()
		return fmt.Errorf("restore window of %d: %w", len(buffer), err)
	}
	e.policy.SetState(state)
	return nil
}
