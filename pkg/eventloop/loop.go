// Package eventloop provides the single-consumer task queue that owns the script engine.
//
// Every interaction with the script side is posted to a Loop and executed, one task at a time,
// on the goroutine running Loop.Run. Producers never block on the consumer.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

const logPrefix = "eventloop:loop"

// ErrLoopClosed is returned when posting to a loop that has been closed.
var ErrLoopClosed = errors.New("event loop closed")

// Loop is an unbounded FIFO of tasks consumed by a single goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a Loop. Tasks are not executed until Run is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues task without waiting for it to run.
func (l *Loop) Post(task func()) error {
	if task == nil {
		return fmt.Errorf("%s - nil task", logPrefix)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do posts task and waits until it has run, ctx is done, or the loop stops.
// It must not be called from a task running on the loop.
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Run consumes tasks until ctx is done or the loop is closed and drained.
// When ctx ends first the loop is closed and pending tasks are discarded.
// Only one goroutine may call Run.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	slog.Debug(fmt.Sprintf("%s - Loop started", logPrefix))
	for {
		task, closed := l.next()
		if task != nil {
			l.execute(task)
			continue
		}
		if closed {
			slog.Debug(fmt.Sprintf("%s - Loop drained and closed", logPrefix))
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			if n := l.abandon(); n > 0 {
				slog.Warn(fmt.Sprintf("%s - Loop stopped: %v, discarded %d pending task(s)", logPrefix, ctx.Err(), n))
			} else {
				slog.Debug(fmt.Sprintf("%s - Loop stopped: %v", logPrefix, ctx.Err()))
			}
			return ctx.Err()
		}
	}
}

// Close stops intake. Tasks already queued still run.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, l.closed
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, l.closed
}

// abandon closes the loop and drops whatever is still queued. Later Posts fail with ErrLoopClosed.
func (l *Loop) abandon() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	n := len(l.queue)
	l.queue = nil
	return n
}

func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - Task panicked: %v\n%s", logPrefix, r, debug.Stack()))
		}
	}()
	task()
}
