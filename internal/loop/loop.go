// Package loop provides the single threaded task loop that owns session
// state. Ticks, user commands and remote callbacks are posted to the loop
// and run one at a time, in the order they were posted.
package loop

import (
	"context"
	"sync"
)

// Dispatcher runs tasks against session state.
type Dispatcher interface {
	// Dispatch queues fn without waiting for it to run.
	Dispatch(fn func())
	// Do runs fn and waits for its result. It must not be called from a
	// task that is already running on the dispatcher.
	Do(ctx context.Context, fn func() error) error
}

// Inline runs every task immediately on the calling goroutine.
type Inline struct{}

func (Inline) Dispatch(fn func()) {
	fn()
}

func (Inline) Do(_ context.Context, fn func() error) error {
	return fn()
}

// Loop is a Dispatcher backed by a single goroutine started with Run.
// The queue is unbounded so that a running task may post further tasks.
type Loop struct {
	wake  chan struct{}
	done  chan struct{}
	queue []func()
	mu    sync.Mutex
	once  sync.Once
}

// New returns a Loop that does nothing until Run is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Dispatch appends fn to the queue. Tasks posted after the loop has stopped
// are dropped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts fn and blocks until it has run or ctx is done.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)

	l.Dispatch(func() {
		result <- fn()
	})

	select {
	case err := <-result:
		return err
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			fn, ok := l.next()
			if !ok {
				break
			}

			fn()

			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}

	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return fn, true
}
