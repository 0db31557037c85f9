package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -3} {
		_, err := New[float64](capacity)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestPushStopsWhenFull(t *testing.T) {
	t.Parallel()

	w, err := New[int](2)
	require.NoError(t, err)

	assert.True(t, w.Push(1))
	assert.True(t, w.Push(2))
	assert.False(t, w.Push(3))
	assert.Equal(t, []int{1, 2}, w.Slice())
	assert.True(t, w.Full())
}

func TestPushOverwriteKeepsNewest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		inserts  int
	}{
		{name: "capacity one", capacity: 1, inserts: 5},
		{name: "partial fill", capacity: 4, inserts: 3},
		{name: "exact fill", capacity: 4, inserts: 4},
		{name: "many wraps", capacity: 3, inserts: 17},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w, err := New[int](tc.capacity)
			require.NoError(t, err)

			for v := 1; v <= tc.inserts; v++ {
				w.PushOverwrite(v)
			}

			start := 1
			if tc.inserts > tc.capacity {
				start = tc.inserts - tc.capacity + 1
			}
			want := make([]int, 0, tc.capacity)
			for v := start; v <= tc.inserts; v++ {
				want = append(want, v)
			}
			assert.Equal(t, want, w.Slice())
		})
	}
}

func TestPeekReturnsValueAboutToBeEvicted(t *testing.T) {
	t.Parallel()

	w, err := New[float64](3)
	require.NoError(t, err)

	_, err = w.Peek()
	require.ErrorIs(t, err, ErrEmptyBuffer)

	for _, v := range []float64{1, 2, 3} {
		w.PushOverwrite(v)
	}
	oldest, err := w.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1.0, oldest)

	w.PushOverwrite(4)
	assert.Equal(t, []float64{2, 3, 4}, w.Slice())
}

func TestPopDrainsInOrder(t *testing.T) {
	t.Parallel()

	w, err := New[int](3)
	require.NoError(t, err)
	for v := 1; v <= 5; v++ {
		w.PushOverwrite(v)
	}

	for _, want := range []int{3, 4, 5} {
		got, ok := w.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := w.Pop()
	assert.False(t, ok)
	assert.True(t, w.Empty())
}

func TestClearAndFill(t *testing.T) {
	t.Parallel()

	w, err := New[int](3)
	require.NoError(t, err)
	w.Fill([]int{9, 8})
	assert.Equal(t, []int{9, 8}, w.Slice())

	w.Clear()
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.Slice())

	w.Fill([]int{1, 2, 3, 4, 5})
	assert.Equal(t, []int{3, 4, 5}, w.Slice())
	assert.Equal(t, 3, w.Cap())
}
