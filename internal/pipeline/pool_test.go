package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, workers, queue int) *Pool {
	t.Helper()
	p := NewPool("test", workers, queue, logs.GetLoggerFromLevel(slog.LevelDebug))
	t.Cleanup(func() { p.Shutdown(time.Second) })
	return p
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPool_SubmitDoesNotBlockCaller(t *testing.T) {
	req := require.New(t)
	p := newTestPool(t, 1, 4)
	release := make(chan struct{})

	start := time.Now()
	f := p.Submit("slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	req.Less(time.Since(start), 50*time.Millisecond)

	select {
	case <-f.Done():
		req.Fail("job ran before it was released")
	default:
	}
	close(release)
	_, err := f.Wait(waitCtx(t))
	req.NoError(err)
}

func TestPool_QueueFullFailsImmediately(t *testing.T) {
	req := require.New(t)
	p := newTestPool(t, 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	defer close(release)

	p.Submit("busy", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	p.Submit("queued", func(ctx context.Context) error { return nil })

	var ran atomic.Bool
	f := p.Submit("overflow", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	select {
	case <-f.Done():
	default:
		req.Fail("overflow future should already be resolved")
	}
	req.ErrorIs(f.Err(), ErrQueueFull)
	req.False(ran.Load())
	req.EqualValues(1, p.Stats().Rejected)
}

func TestPool_ResultAndError(t *testing.T) {
	req := require.New(t)
	p := newTestPool(t, 2, 4)
	boom := errors.New("boom")

	v, err := Go(p, "answer", func(ctx context.Context) (int, error) { return 42, nil }).Wait(waitCtx(t))
	req.NoError(err)
	req.Equal(42, v)

	_, err = p.Submit("fails", func(ctx context.Context) error { return boom }).Wait(waitCtx(t))
	req.ErrorIs(err, boom)

	_, err = p.Submit("panics", func(ctx context.Context) error { panic("oops") }).Wait(waitCtx(t))
	req.ErrorContains(err, "oops")

	req.Eventually(func() bool { return p.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	req := require.New(t)
	p := NewPool("drain", 1, 10, logs.GetLoggerFromLevel(slog.LevelDebug))

	var done atomic.Int32
	var futures []*Future[struct{}]
	for i := 0; i < 5; i++ {
		futures = append(futures, p.Submit("job", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}))
	}

	req.True(p.Shutdown(time.Second))
	req.EqualValues(5, done.Load())
	for _, f := range futures {
		req.NoError(f.Err())
	}

	_, err := p.Submit("late", func(ctx context.Context) error { return nil }).Wait(waitCtx(t))
	req.ErrorIs(err, ErrClosed)
}

func TestPool_ShutdownForcesStopAfterGrace(t *testing.T) {
	req := require.New(t)
	p := NewPool("force", 1, 10, logs.GetLoggerFromLevel(slog.LevelDebug))
	started := make(chan struct{})

	stuck := p.Submit("stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	pending := p.Submit("pending", func(ctx context.Context) error { return nil })

	req.False(p.Shutdown(50 * time.Millisecond))

	_, err := stuck.Wait(waitCtx(t))
	req.ErrorIs(err, context.Canceled)
	_, err = pending.Wait(waitCtx(t))
	req.ErrorIs(err, ErrStopped)
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	req := require.New(t)
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
	req.NoError(f.Err())

	f.resolve(7, nil)
	f.resolve(8, nil)
	v, err := f.Wait(context.Background())
	req.NoError(err)
	req.Equal(7, v)
}
