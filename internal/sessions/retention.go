package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionPolicy controls the periodic truncation sweep. Sessions
// themselves persist indefinitely (spec §3); this only prunes their event
// logs, never the Session row.
type RetentionPolicy struct {
	// MaxEventsPerSession caps how many trailing events GetEvents-backed
	// truncation keeps; 0 disables truncation.
	MaxEventsPerSession int
	// Schedule is a standard 5-field cron expression for sweep frequency.
	Schedule string
}

// DefaultRetentionPolicy truncates nothing but runs the sweep hourly so a
// policy can be tightened by config without code changes.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{MaxEventsPerSession: 0, Schedule: "0 * * * *"}
}

// Sweeper runs RetentionPolicy against a Store on a cron schedule.
type Sweeper struct {
	store  Store
	policy RetentionPolicy
	logger *slog.Logger
	cron   *cron.Cron
}

// NewSweeper creates a Sweeper. Call Start to begin the schedule.
func NewSweeper(store Store, policy RetentionPolicy, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:  store,
		policy: policy,
		logger: logger.With("component", "sessions.retention"),
		cron:   cron.New(),
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.policy.Schedule, s.sweepOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweepOnce() {
	if s.policy.MaxEventsPerSession <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sessions, err := s.store.List(ctx, "", ListOptions{})
	if err != nil {
		s.logger.Error("list sessions for retention sweep failed", "error", err)
		return
	}
	for _, sess := range sessions {
		removed, err := s.store.TruncateEvents(ctx, sess.ID, s.policy.MaxEventsPerSession)
		if err != nil {
			s.logger.Warn("truncate events during retention sweep failed", "session_id", sess.ID, "error", err)
			continue
		}
		if removed > 0 {
			s.logger.Info("truncated session event log", "session_id", sess.ID, "removed", removed, "cap", s.policy.MaxEventsPerSession)
		}
	}
}
