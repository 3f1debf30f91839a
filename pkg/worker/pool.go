// Package worker runs receiver invocations off the script-owning loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const logPrefix = "worker:pool"

var (
	// ErrPoolFull is returned by Submit when a bounded pool has no free slot.
	ErrPoolFull = errors.New("worker pool full")
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
)

// Pool runs each submitted task on its own goroutine. With MaxWorkers > 0 at most that many
// tasks run at once and Submit fails fast instead of queueing.
type Pool struct {
	sem    *semaphore.Weighted
	max    int64
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewPool creates a pool. maxWorkers <= 0 means unbounded.
func NewPool(maxWorkers int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{ctx: ctx, cancel: cancel}
	if maxWorkers > 0 {
		p.max = int64(maxWorkers)
		p.sem = semaphore.NewWeighted(p.max)
	}
	return p
}

// Submit starts task on a new goroutine and returns without waiting for it.
// name identifies the task in logs.
func (p *Pool) Submit(name string, task func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.sem != nil && !p.sem.TryAcquire(1) {
		slog.Warn(fmt.Sprintf("%s - Rejected task %s: %d workers busy", logPrefix, name, p.max))
		return ErrPoolFull
	}

	p.wg.Add(1)
	p.active.Add(1)
	go p.run(name, task)
	return nil
}

func (p *Pool) run(name string, task func(ctx context.Context)) {
	defer p.wg.Done()
	defer p.active.Add(-1)
	if p.sem != nil {
		defer p.sem.Release(1)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - Task %s panicked: %v\n%s", logPrefix, name, r, debug.Stack()))
		}
	}()
	task(p.ctx)
}

// Active returns the number of running tasks.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Close stops intake and waits for running tasks. If ctx is done first the task context is
// cancelled and ctx.Err() is returned; tasks are not waited for further.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		slog.Warn(fmt.Sprintf("%s - Close timed out with %d tasks running", logPrefix, p.Active()))
		return ctx.Err()
	}
}
