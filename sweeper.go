package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule is how often expired pending registrations are purged
const DefaultSweepSchedule = "@every 5m"

// PendingSweeper purges expired pending registrations and idle limiter
// buckets on a cron schedule.
type PendingSweeper struct {
	store    PendingStore
	limiters []*AttemptLimiter
	idle     time.Duration
	now      func() time.Time
	logger   Logger
	cron     *cron.Cron
	entry    cron.EntryID
}

// SweeperOption configures a PendingSweeper
type SweeperOption func(*PendingSweeper)

// WithSweeperClock sets the clock used as the purge cutoff
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *PendingSweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweeperLimiters prunes the given limiters on every run
func WithSweeperLimiters(idle time.Duration, limiters ...*AttemptLimiter) SweeperOption {
	return func(s *PendingSweeper) {
		s.idle = idle
		s.limiters = append(s.limiters, limiters...)
	}
}

// WithSweeperLogger sets the logger
func WithSweeperLogger(l Logger) SweeperOption {
	return func(s *PendingSweeper) {
		s.logger = normalizeLogger(l)
	}
}

// NewPendingSweeper creates a sweeper for store
func NewPendingSweeper(store PendingStore, opts ...SweeperOption) *PendingSweeper {
	s := &PendingSweeper{
		store:  store,
		idle:   time.Hour,
		now:    time.Now,
		logger: defLogger{},
		cron:   cron.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Sweep runs one purge pass
func (s *PendingSweeper) Sweep(ctx context.Context) (int64, error) {
	purged, err := s.store.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, l := range s.limiters {
		pruned += l.Prune(s.idle)
	}

	if purged > 0 || pruned > 0 {
		s.logger.Info("pending sweep", "purged", purged, "limiter_keys_pruned", pruned)
	}
	return purged, nil
}

// Start schedules Sweep and starts the cron runner
func (s *PendingSweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	entry, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("pending sweep failed", "error", err)
		}
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sweep schedule").
			WithMetadata(map[string]any{"schedule": schedule})
	}
	s.entry = entry
	s.cron.Start()
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish
func (s *PendingSweeper) Stop() {
	<-s.cron.Stop().Done()
}
