package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull = errors.New("pipeline queue full")
	ErrClosed    = errors.New("pipeline closed")
	ErrStopped   = errors.New("pipeline stopped before job ran")
)

type job struct {
	name string
	run  func(ctx context.Context)
	fail func(err error)
}

// Pool runs jobs on a fixed set of worker goroutines fed by a bounded queue.
// Submitting never runs the job on the caller and never blocks: when the
// queue is full the returned future fails immediately.
type Pool struct {
	name  string
	log   *slog.Logger
	queue chan job

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	workers   int
}

func NewPool(name string, workers, queueSize int, log *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:    name,
		log:     log.With("pool", name),
		queue:   make(chan job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	p.log.Debug("pool started", "workers", workers, "queue", queueSize)
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for j := range p.queue {
		if p.ctx.Err() != nil {
			j.fail(ErrStopped)
			continue
		}
		j.run(p.ctx)
	}
}

// Go submits fn to p and returns its future.
func Go[T any](p *Pool, name string, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	j := job{
		name: name,
		run: func(ctx context.Context) {
			v, err := call(ctx, fn)
			if err != nil {
				p.failed.Add(1)
				p.log.Error("job failed", "job", name, "error", err)
			} else {
				p.completed.Add(1)
			}
			f.resolve(v, err)
		},
		fail: func(err error) {
			var zero T
			f.resolve(zero, err)
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.rejected.Add(1)
		j.fail(ErrClosed)
		return f
	}
	select {
	case p.queue <- j:
		p.submitted.Add(1)
	default:
		p.rejected.Add(1)
		p.log.Warn("queue full, dropping job", "job", name)
		j.fail(ErrQueueFull)
	}
	return f
}

// Submit is Go for jobs that only report an error.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) *Future[struct{}] {
	return Go(p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Shutdown stops accepting jobs and lets the workers drain the queue for up
// to grace. After that the worker context is cancelled and whatever is still
// queued fails with ErrStopped. It reports whether the queue drained in time.
func (p *Pool) Shutdown(grace time.Duration) bool {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		p.cancel()
		p.log.Info("pool drained")
		return true
	case <-timer.C:
	}

	p.log.Warn("pool did not drain in time, forcing stop", "grace", grace, "pending", len(p.queue))
	p.cancel()
	select {
	case <-done:
	case <-time.After(grace):
		p.log.Error("workers still busy after forced stop")
	}
	return false
}

type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
