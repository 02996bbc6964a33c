// Package loop provides the single-threaded event loop of the panel. Window
// system events, timer callbacks and configuration reloads all run on the
// goroutine that calls [Loop.Run].
package loop

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Loop runs posted functions and due timers on one goroutine.
type Loop struct {
	sched  *Scheduler
	posts  chan func()
	wakeup chan struct{}
	onIdle []func()
}

// New returns a new [Loop] driving sched.
func New(sched *Scheduler) *Loop {
	return &Loop{
		sched:  sched,
		posts:  make(chan func(), 256),
		wakeup: make(chan struct{}, 1),
	}
}

// Scheduler returns the timer scheduler of the loop.
func (l *Loop) Scheduler() *Scheduler {
	return l.sched
}

// Post queues fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (l *Loop) Post(fn func()) {
	l.posts <- fn
}

// OnIdle adds a function that runs after each batch of work, before the loop
// waits again. Renderers use it to coalesce redraws.
//
// OnIdle must be called before [Loop.Run].
func (l *Loop) OnIdle(fn func()) {
	l.onIdle = append(l.onIdle, fn)
}

// Wake makes a waiting loop re-check its timers, e.g. after a timer was
// added from another goroutine.
func (l *Loop) Wake() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Run processes posted functions and timers until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	wait := time.NewTimer(time.Hour)
	defer wait.Stop()

	for {
		l.sched.RunDue()
		for _, fn := range l.onIdle {
			fn()
		}

		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}

		if next, ok := l.sched.Next(); ok {
			wait.Reset(max(time.Until(next), 0))
		} else {
			wait.Reset(time.Hour)
		}

		select {
		case <-ctx.Done():
			log.Debug("Event loop stopped")
			return ctx.Err()
		case fn := <-l.posts:
			fn()
			l.drain()
		case <-l.wakeup:
		case <-wait.C:
		}
	}
}

// drain runs the functions that are already queued.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.posts:
			fn()
		default:
			return
		}
	}
}
