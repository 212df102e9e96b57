// Package scheduler runs delayed callbacks on a simulated clock advanced by the game tick.
//
// Nothing fires on its own: Advance moves the clock and runs every task that fell due,
// in due order, on the caller's goroutine. Tasks scheduled from inside a callback with a
// due time not after the new clock fire within the same Advance.
package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/pkg/sequence"
)

// TaskID identifies a scheduled task. The zero value never names a task.
type TaskID = uuid.UUID

type task struct {
	id   TaskID
	name string
	due  time.Duration
	seq  uint64
	fn   func()
}

type Scheduler struct {
	logger log.Log
	now    time.Duration
	seq    uint64
	// queue is ordered by (due, seq).
	queue *sequence.PriorityQueue[*task]
	byID  map[TaskID]*sequence.Item[*task]
}

func New(logger log.Log) *Scheduler {
	return &Scheduler{
		logger: logger.With(log.String("component", "scheduler")),
		queue:  sequence.NewPriorityQueue(earlier),
		byID:   make(map[TaskID]*sequence.Item[*task]),
	}
}

// Now is the simulated time elapsed since the scheduler was created.
func (s *Scheduler) Now() time.Duration { return s.now }

// Len is the number of pending tasks.
func (s *Scheduler) Len() int { return s.queue.Len() }

// After schedules fn to run once d has elapsed on the simulated clock. Negative delays
// are treated as zero.
func (s *Scheduler) After(d time.Duration, name string, fn func()) TaskID {
	if d < 0 {
		d = 0
	}
	s.seq++
	t := &task{id: uuid.New(), name: name, due: s.now + d, seq: s.seq, fn: fn}
	s.byID[t.id] = s.queue.Enqueue(t)
	s.logger.Debug("Task scheduled",
		log.String("task", name),
		log.String("task_id", t.id.String()),
		log.Duration("delay", d),
	)
	return t.id
}

// Cancel removes a pending task. It reports false when the task already ran or was
// cancelled.
func (s *Scheduler) Cancel(id TaskID) bool {
	item, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.queue.Remove(item)
	s.logger.Debug("Task cancelled", log.String("task", item.Value.name), log.String("task_id", id.String()))
	return true
}

func (s *Scheduler) Pending(id TaskID) bool {
	_, ok := s.byID[id]
	return ok
}

// Remaining returns how long until the task fires.
func (s *Scheduler) Remaining(id TaskID) (time.Duration, bool) {
	item, ok := s.byID[id]
	if !ok {
		return 0, false
	}
	return item.Value.due - s.now, true
}

// Advance moves the clock forward by dt and runs every task that is due. It returns the
// number of tasks run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}
	ran := 0
	for {
		t, ok := s.queue.Peek()
		if !ok || t.due > s.now {
			break
		}
		s.queue.Dequeue()
		delete(s.byID, t.id)
		ran++
		t.fn()
	}
	return ran
}

// CancelAll drops every pending task and returns how many were dropped. The clock is not
// rewound.
func (s *Scheduler) CancelAll() int {
	n := s.queue.Clear()
	clear(s.byID)
	if n > 0 {
		s.logger.Debug("All tasks cancelled", log.Int("count", n))
	}
	return n
}

func earlier(a, b *task) bool {
	if a.due != b.due {
		return a.due < b.due
	}
	return a.seq < b.seq
}
