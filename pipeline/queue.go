package pipeline

import (
	"context"
	"sync"
)

// DefaultQueueSize bounds the number of pending GPU tasks.
const DefaultQueueSize = 64

// Future is the pending result of a queued task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finished or ctx is done. Giving up on the wait
// does not cancel a task that already started.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Queue runs tasks one at a time, in submission order, on a single
// goroutine. Everything that touches the device goes through it.
type Queue struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{tasks: make(chan func(), size)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		task()
	}
}

// Submit enqueues fn. If ctx is done before fn starts, fn is skipped and the
// future resolves with ctx.Err(). Submit blocks while the queue is full.
func Submit[T any](ctx context.Context, q *Queue, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		var zero T
		f.resolve(zero, ErrQueueClosed)
		return f
	}

	task := func() {
		if err := ctx.Err(); err != nil {
			var zero T
			f.resolve(zero, err)
			return
		}
		v, err := fn()
		f.resolve(v, err)
	}

	select {
	case q.tasks <- task:
	case <-ctx.Done():
		var zero T
		f.resolve(zero, ctx.Err())
	}
	return f
}

// Close stops accepting tasks, runs the ones already queued and waits for
// the worker goroutine to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}
