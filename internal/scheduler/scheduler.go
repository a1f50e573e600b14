// Package scheduler drives due schedule entries through their publish
// transition on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
	"orchestrator/internal/providers/social"
)

// Config tunes the scheduler loop.
type Config struct {
	Interval     time.Duration
	EntryTimeout time.Duration
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     60 * time.Second,
		EntryTimeout: 60 * time.Second,
	}
}

// Scheduler scans for entries due today and posts them. It is an explicit
// lifecycle object: Start is idempotent per instance, so a process can
// never end up with two competing timers posting the same entries.
type Scheduler struct {
	repo      domain.ScheduleRepository
	publisher social.Publisher
	cfg       Config
	logger    infra.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// New constructs a scheduler.
func New(repo domain.ScheduleRepository, publisher social.Publisher, cfg Config, logger infra.Logger) *Scheduler {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.EntryTimeout <= 0 {
		cfg.EntryTimeout = defaults.EntryTimeout
	}
	return &Scheduler{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the recurring timer. It reports whether a transition
// actually occurred: a second call on a running scheduler is a no-op
// returning false.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return false
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("scheduler: started")
	return true
}

// Stop halts the timer and waits for an in-flight tick to finish. It
// reports whether the scheduler was running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return false
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler: stopped")
	return true
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes every entry due today. Entries are independent: one
// failed publish never prevents the others from being attempted, and a
// failed entry stays failed until explicitly re-scheduled.
func (s *Scheduler) Tick(ctx context.Context) {
	today := s.now().UTC().Truncate(24 * time.Hour)

	entries, err := s.repo.ListDue(ctx, today)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: due query failed")
		return
	}
	for i := range entries {
		s.processEntry(ctx, &entries[i])
	}
}

func (s *Scheduler) processEntry(ctx context.Context, entry *domain.ScheduleEntry) {
	// Claim before publishing. The conditional transition out of
	// scheduled is what keeps a second instance sharing the same
	// storage from posting this entry again.
	claimed, err := s.repo.UpdateStatusIf(ctx, entry.ID, domain.ScheduleStatusScheduled, domain.ScheduleStatusPosting, "")
	if err != nil {
		s.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("scheduler: claim failed")
		return
	}
	if !claimed {
		// Another instance already owns this entry.
		return
	}

	s.logger.Info().Str("entry_id", entry.ID).Str("title", entry.Title).Msg("scheduler: posting entry")

	postCtx, cancel := context.WithTimeout(ctx, s.cfg.EntryTimeout)
	receipt, err := s.publisher.Post(postCtx, entry)
	cancel()

	if err != nil {
		s.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("scheduler: post failed")
		if _, uerr := s.repo.UpdateStatusIf(ctx, entry.ID, domain.ScheduleStatusPosting, domain.ScheduleStatusFailed, ""); uerr != nil {
			s.logger.Error().Err(uerr).Str("entry_id", entry.ID).Msg("scheduler: mark failed failed")
		}
		return
	}

	if _, err := s.repo.UpdateStatusIf(ctx, entry.ID, domain.ScheduleStatusPosting, domain.ScheduleStatusPosted, receipt.ExternalID); err != nil {
		s.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("scheduler: mark posted failed")
		return
	}
	s.logger.Info().Str("entry_id", entry.ID).Str("external_id", receipt.ExternalID).Msg("scheduler: entry posted")
}
