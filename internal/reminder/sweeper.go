package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-confero/internal/lock"
	"github.com/noah-isme/backend-confero/internal/registration"
)

const sweepLockKey = "confero:reminder:sweep"

// DueLister finds registrations whose reminder never made it onto the
// queue.
type DueLister interface {
	ListReminderDue(ctx context.Context, cutoff time.Time, limit int32) ([]registration.Registration, error)
}

// Enqueuer re-enqueues a reminder immediately. Satisfied by Scheduler.
type Enqueuer interface {
	EnqueueNow(ctx context.Context, reg registration.Registration) error
}

// Sweeper periodically re-enqueues overdue reminders. The scan runs
// under a distributed lock so only one worker instance sweeps at a
// time; task id deduplication keeps retried enqueues harmless.
type Sweeper struct {
	Regs      DueLister
	Scheduler Enqueuer
	Locker    lock.Locker
	LockTTL   time.Duration
	Interval  time.Duration
	Delay     time.Duration
	BatchSize int32
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.Logger.Error().Err(err).Msg("reminder sweep failed")
		}
	}
}

// SweepOnce enqueues reminders for registrations past their due time
// that were never marked as reminded.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	if s == nil || s.Regs == nil || s.Scheduler == nil {
		return errors.New("reminder: sweeper not configured")
	}
	return s.Locker.WithLock(ctx, sweepLockKey, s.LockTTL, func(ctx context.Context) error {
		delay := s.Delay
		if delay <= 0 {
			delay = 24 * time.Hour
		}
		batch := s.BatchSize
		if batch <= 0 {
			batch = 100
		}
		cutoff := s.now().Add(-delay)
		regs, err := s.Regs.ListReminderDue(ctx, cutoff, batch)
		if err != nil {
			return err
		}
		for _, reg := range regs {
			err := s.Scheduler.EnqueueNow(ctx, reg)
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			if err != nil {
				return err
			}
			s.Logger.Info().
				Str("registration_id", reg.ID.String()).
				Msg("re-enqueued overdue payment reminder")
		}
		return nil
	})
}

func (s *Sweeper) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
