package pipeline

import (
	"context"
	"sync"
)

// Future is the eventual result of a job submitted to a Pool. It is safe to
// wait on from any number of goroutines.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Failed returns a future that is already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job has finished or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the job error, or nil while the job is still pending.
func (f *Future[T]) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}
