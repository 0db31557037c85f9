// Package ring provides a fixed-capacity circular window with
// overwrite-oldest semantics.
package ring

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity = errors.New("window capacity must be positive")
	ErrEmptyBuffer     = errors.New("window is empty")
)

// Window is a fixed-capacity FIFO ring. All index arithmetic is kept inside
// the type; callers only see insertion order.
type Window[T any] struct {
	storage []T
	head    int // next write position
	tail    int // oldest element
	count   int
}

// New returns an empty window holding at most capacity items.
func New[T any](capacity int) (*Window[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Window[T]{storage: make([]T, capacity)}, nil
}

// Len returns the number of live items.
func (w *Window[T]) Len() int { return w.count }

// Cap returns the fixed capacity.
func (w *Window[T]) Cap() int { return len(w.storage) }

// Full reports whether Len() == Cap().
func (w *Window[T]) Full() bool { return w.count == len(w.storage) }

// Empty reports whether the window holds no items.
func (w *Window[T]) Empty() bool { return w.count == 0 }

// Push appends item if there is room. It returns false without mutating the
// window when it is full.
func (w *Window[T]) Push(item T) bool {
	if w.Full() {
		return false
	}
	w.storage[w.head] = item
	w.head = w.next(w.head)
	w.count++
	return true
}

// PushOverwrite appends item, evicting the oldest item when full. The evicted
// value is the one a preceding Peek returned.
func (w *Window[T]) PushOverwrite(item T) {
	if w.Full() {
		w.tail = w.next(w.tail)
		w.count--
	}
	w.storage[w.head] = item
	w.head = w.next(w.head)
	w.count++
}

// Peek returns the oldest item.
func (w *Window[T]) Peek() (T, error) {
	if w.count == 0 {
		var zero T
		return zero, ErrEmptyBuffer
	}
	return w.storage[w.tail], nil
}

// Pop removes and returns the oldest item.
func (w *Window[T]) Pop() (T, bool) {
	if w.count == 0 {
		var zero T
		return zero, false
	}
	item := w.storage[w.tail]
	w.tail = w.next(w.tail)
	w.count--
	return item, true
}

// Clear drops all items. Storage is left as is and never read again.
func (w *Window[T]) Clear() {
	w.head = 0
	w.tail = 0
	w.count = 0
}

// Slice returns a copy of the live items ordered oldest to newest.
func (w *Window[T]) Slice() []T {
	out := make([]T, w.count)
	idx := w.tail
	for i := range out {
		out[i] = w.storage[idx]
		idx = w.next(idx)
	}
	return out
}

// Fill clears the window and replays PushOverwrite for every element of seq,
// so a sequence longer than the capacity keeps only its tail.
func (w *Window[T]) Fill(seq []T) {
	w.Clear()
	for _, v := range seq {
		w.PushOverwrite(v)
	}
}

func (w *Window[T]) next(i int) int {
	i++
	if i == len(w.storage) {
		return 0
	}
	return i
}
