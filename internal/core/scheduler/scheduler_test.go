package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
)

func TestRunsTasksInDueOrder(t *testing.T) {
	s := New(log.NewNop())
	var order []string
	s.After(300*time.Millisecond, "c", func() { order = append(order, "c") })
	s.After(100*time.Millisecond, "a", func() { order = append(order, "a") })
	s.After(100*time.Millisecond, "b", func() { order = append(order, "b") })

	assert.Equal(t, 0, s.Advance(50*time.Millisecond))
	assert.Equal(t, 2, s.Advance(50*time.Millisecond))
	assert.Equal(t, []string{"a", "b"}, order)

	assert.Equal(t, 1, s.Advance(time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1100*time.Millisecond, s.Now())
}

func TestCancel(t *testing.T) {
	s := New(log.NewNop())
	fired := false
	id := s.After(time.Second, "x", func() { fired = true })

	assert.True(t, s.Pending(id))
	left, ok := s.Remaining(id)
	require.True(t, ok)
	assert.Equal(t, time.Second, left)

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id), "second cancel is a no-op")
	s.Advance(2 * time.Second)
	assert.False(t, fired)
	assert.False(t, s.Cancel(uuid.New()))
}

func TestTaskScheduledFromCallback(t *testing.T) {
	s := New(log.NewNop())
	var order []string
	s.After(time.Second, "outer", func() {
		order = append(order, "outer")
		s.After(0, "now", func() { order = append(order, "now") })
		s.After(time.Second, "later", func() { order = append(order, "later") })
	})

	assert.Equal(t, 2, s.Advance(time.Second))
	assert.Equal(t, []string{"outer", "now"}, order)
	assert.Equal(t, 1, s.Len())
}

func TestCancelAll(t *testing.T) {
	s := New(log.NewNop())
	fired := 0
	s.After(time.Second, "a", func() { fired++ })
	s.After(2*time.Second, "b", func() { fired++ })

	assert.Equal(t, 2, s.CancelAll())
	s.Advance(time.Minute)
	assert.Zero(t, fired)
	assert.Zero(t, s.CancelAll())
}
