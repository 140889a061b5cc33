package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner executes one digest.
type Runner interface {
	Run(ctx context.Context, refresh bool) (*Digest, error)
}

var _ Runner = (*Service)(nil)

// Scheduler triggers digests on a cron expression evaluated in a fixed
// location.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   Runner

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func NewScheduler(spec string, loc *time.Location, runner Runner) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		runner:   runner,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.runOnce))

	return s, nil
}

// Next returns the first scheduled run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true

	slog.Info("Scheduler started", "next_run", s.Next(time.Now()))
}

// Stop cancels a running digest and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}

	if _, err := s.runner.Run(ctx, false); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			slog.Warn("Scheduled digest skipped, previous run still active")
			return
		}
		slog.Error("Scheduled digest failed", "error", err)
	}
}
