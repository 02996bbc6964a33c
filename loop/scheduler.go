package loop

import (
	"container/heap"
	"sync"
	"time"
)

type timer struct {
	seq    uint64
	when   time.Time
	period time.Duration
	fn     func()

	// Position in the queue, or -1 when the timer is not queued.
	index int
}

type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Scheduler is a queue of one-shot and periodic timers. Callbacks run inside
// [Scheduler.RunDue] on the goroutine that calls it.
type Scheduler struct {
	now   func() time.Time
	queue timerQueue
	seq   uint64

	// Guards the queue against cancellation from other goroutines.
	mu sync.Mutex
}

// NewScheduler returns a new [Scheduler] reading time from now. A nil now
// uses [time.Now].
func NewScheduler(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{now: now}
}

// Now returns the current time of the scheduler clock.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// AfterFunc runs fn once after d. Calling the returned function cancels the
// timer; it is safe to call more than once.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) func() {
	return s.add(d, 0, fn)
}

// Every runs fn after delay and then every period. Calling the returned
// function cancels the timer.
func (s *Scheduler) Every(delay, period time.Duration, fn func()) func() {
	if period <= 0 {
		return s.add(delay, 0, fn)
	}
	return s.add(delay, period, fn)
}

func (s *Scheduler) add(delay, period time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &timer{
		seq:    s.seq,
		when:   s.now().Add(delay),
		period: period,
		fn:     fn,
	}
	heap.Push(&s.queue, t)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		t.period = 0
		if t.index >= 0 {
			heap.Remove(&s.queue, t.index)
		}
	}
}

// Len returns the number of queued timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// Next returns the deadline of the earliest timer.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].when, true
}

// RunDue runs every timer whose deadline passed and returns how many ran.
// Periodic timers are queued again before their callback runs, so a
// callback may cancel its own timer.
func (s *Scheduler) RunDue() int {
	now := s.now()
	ran := 0

	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].when.After(now) {
			s.mu.Unlock()
			return ran
		}

		t := heap.Pop(&s.queue).(*timer)
		if t.period > 0 {
			t.when = t.when.Add(t.period)
			if !t.when.After(now) {
				t.when = now.Add(t.period)
			}
			heap.Push(&s.queue, t)
		}
		s.mu.Unlock()

		t.fn()
		ran++
	}
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a [ManualClock] set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
