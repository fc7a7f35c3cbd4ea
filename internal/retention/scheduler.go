package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler runs the purge whenever the cron expression matches.
type Scheduler struct {
	cron   *Cron
	svc    *Service
	maxAge time.Duration
	log    *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(expr string, maxAge time.Duration, svc *Service, log *slog.Logger) (*Scheduler, error) {
	cron, err := ParseCron(expr)
	if err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", expr, err)
	}
	return &Scheduler{cron: cron, svc: svc, maxAge: maxAge, log: log}, nil
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		// Check every minute, aligned to the minute
		for {
			next := time.Now().Truncate(time.Minute).Add(time.Minute)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
				s.tick(ctx, next)
			}
		}
	}()

	s.log.Info("retention scheduler started", "next_run", s.cron.Next(time.Now()), "max_age", s.maxAge)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if !s.cron.Matches(now) {
		return
	}
	res, err := s.svc.Purge(ctx, s.maxAge)
	if err != nil {
		s.log.Error("scheduled purge failed", "error", err)
		return
	}
	s.log.Info("scheduled purge done", "cutoff", res.Cutoff, "next_run", s.cron.Next(now))
}
