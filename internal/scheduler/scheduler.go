package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"patchwatch/internal/arbiter"
	"patchwatch/internal/catalog"
	"patchwatch/internal/config"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/relation"
)

// Summary aggregates the results of one check cycle.
type Summary struct {
	Checked      int `json:"checked"`
	UpdatesFound int `json:"updatesFound"`
	SequelsFound int `json:"sequelsFound"`
	Failed       int `json:"failed"`
}

func (s *Summary) add(other Summary) {
	s.Checked += other.Checked
	s.UpdatesFound += other.UpdatesFound
	s.SequelsFound += other.SequelsFound
	s.Failed += other.Failed
}

// Entry is one account's schedule bookkeeping. Process-local; rebuilt from
// the catalog at startup and on refresh, never the source of truth.
type Entry struct {
	AccountID string        `json:"accountId"`
	Cadence   time.Duration `json:"cadence"`
	LastCheck time.Time     `json:"lastCheck"`
	NextCheck time.Time     `json:"nextCheck"`
}

// Status is a snapshot of the scheduler's state.
type Status struct {
	Running           bool    `json:"running"`
	ScheduledAccounts int     `json:"scheduledAccounts"`
	NextChecks        []Entry `json:"nextChecks"`
}

// Scheduler coordinates periodic check cycles across accounts.
type Scheduler struct {
	cfg     *config.Config
	store   *catalog.Store
	client  *listings.Client
	arbiter *arbiter.Arbiter
	matcher *relation.Matcher
	logger  *slog.Logger

	tickInterval   time.Duration
	defaultCadence time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	entries  map[string]*Entry
	inFlight map[string]bool
}

// New constructs a Scheduler. Start must be called explicitly by the
// application entry point.
func New(cfg *config.Config, store *catalog.Store, client *listings.Client, arb *arbiter.Arbiter, matcher *relation.Matcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:            cfg,
		store:          store,
		client:         client,
		arbiter:        arb,
		matcher:        matcher,
		logger:         logging.NewComponentLogger(logger, "scheduler"),
		tickInterval:   cfg.TickInterval(),
		defaultCadence: cfg.DefaultCadence(),
		entries:        make(map[string]*Entry),
		inFlight:       make(map[string]bool),
	}
}

// Start launches the tick loop and auxiliary sweeps. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if err := s.rebuildScheduleLocked(ctx); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("build schedule: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(3)
	s.mu.Unlock()

	go s.runTicks(runCtx)
	go s.runCacheSweep(runCtx)
	go s.runTitleSweep(runCtx)

	s.logger.Info("scheduler started",
		logging.Duration("tick_interval", s.tickInterval),
		logging.Int("accounts", s.accountCount()))
	return nil
}

// Stop cancels the timers and waits for in-flight work to wind down. Calling
// Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) accountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Status returns the running flag, the scheduled account count, and the next
// checks sorted ascending, capped by the configured limit.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		next = append(next, *entry)
	}
	sort.Slice(next, func(i, j int) bool {
		if next[i].NextCheck.Equal(next[j].NextCheck) {
			return next[i].AccountID < next[j].AccountID
		}
		return next[i].NextCheck.Before(next[j].NextCheck)
	})
	if limit := s.cfg.Scheduler.StatusNextChecksLimit; limit > 0 && len(next) > limit {
		next = next[:limit]
	}

	return Status{
		Running:           s.running,
		ScheduledAccounts: len(s.entries),
		NextChecks:        next,
	}
}

// RefreshSchedule recomputes one account's cadence from current catalog
// state, removing the entry entirely when the account has no active releases.
func (s *Scheduler) RefreshSchedule(ctx context.Context, accountID string) error {
	cadences, err := s.store.ListAccountCadences(ctx)
	if err != nil {
		return fmt.Errorf("list account cadences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cadence := range cadences {
		if cadence.AccountID != accountID {
			continue
		}
		s.upsertEntryLocked(accountID, s.cadenceFor(cadence), time.Now().UTC())
		return nil
	}

	delete(s.entries, accountID)
	s.logger.Info("schedule entry removed, no active releases",
		logging.String(logging.FieldAccount, accountID))
	return nil
}

// CheckNow runs one account's check cycle immediately, honoring the
// single-flight guarantee against overlapping ticks.
func (s *Scheduler) CheckNow(ctx context.Context, accountID string) (Summary, error) {
	s.mu.Lock()
	if s.inFlight[accountID] {
		s.mu.Unlock()
		return Summary{}, fmt.Errorf("check already in progress for account %s", accountID)
	}
	s.inFlight[accountID] = true
	s.mu.Unlock()

	summary := s.runCycle(ctx, accountID)

	now := time.Now().UTC()
	s.mu.Lock()
	delete(s.inFlight, accountID)
	if entry, ok := s.entries[accountID]; ok {
		entry.LastCheck = now
		entry.NextCheck = now.Add(entry.Cadence)
	}
	s.mu.Unlock()

	return summary, nil
}

func (s *Scheduler) rebuildScheduleLocked(ctx context.Context) error {
	cadences, err := s.store.ListAccountCadences(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	s.entries = make(map[string]*Entry, len(cadences))
	for _, cadence := range cadences {
		s.upsertEntryLocked(cadence.AccountID, s.cadenceFor(cadence), now)
	}
	return nil
}

func (s *Scheduler) cadenceFor(cadence catalog.AccountCadence) time.Duration {
	if cadence.CadenceMinutes <= 0 {
		return s.defaultCadence
	}
	return time.Duration(cadence.CadenceMinutes) * time.Minute
}

func (s *Scheduler) upsertEntryLocked(accountID string, cadence time.Duration, now time.Time) {
	if existing, ok := s.entries[accountID]; ok {
		existing.Cadence = cadence
		if existing.LastCheck.IsZero() {
			existing.NextCheck = now
		} else {
			existing.NextCheck = existing.LastCheck.Add(cadence)
		}
		return
	}
	// New accounts are due immediately; the next tick picks them up.
	s.entries[accountID] = &Entry{
		AccountID: accountID,
		Cadence:   cadence,
		NextCheck: now,
	}
}

func (s *Scheduler) runTicks(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs check cycles for every due account. Cycles run sequentially to
// bound outbound request concurrency; one account's failure never blocks the
// rest of the tick.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	due := make([]string, 0, len(s.entries))
	for accountID, entry := range s.entries {
		if s.inFlight[accountID] {
			continue
		}
		if !now.Before(entry.NextCheck) {
			due = append(due, accountID)
			s.inFlight[accountID] = true
		}
	}
	s.mu.Unlock()
	sort.Strings(due)

	for i, accountID := range due {
		if ctx.Err() != nil {
			// Only the unprocessed remainder still holds tick-owned flags;
			// completed accounts may already be re-marked by a CheckNow.
			s.clearInFlight(due[i:])
			return
		}
		summary := s.runCycle(ctx, accountID)

		finished := time.Now().UTC()
		s.mu.Lock()
		delete(s.inFlight, accountID)
		if entry, ok := s.entries[accountID]; ok {
			entry.LastCheck = finished
			entry.NextCheck = finished.Add(entry.Cadence)
		}
		s.mu.Unlock()

		s.logger.Info("check cycle complete",
			logging.String(logging.FieldAccount, accountID),
			logging.Int("checked", summary.Checked),
			logging.Int("updates_found", summary.UpdatesFound),
			logging.Int("sequels_found", summary.SequelsFound),
			logging.Int("failed", summary.Failed))
	}
}

func (s *Scheduler) clearInFlight(accounts []string) {
	s.mu.Lock()
	for _, accountID := range accounts {
		delete(s.inFlight, accountID)
	}
	s.mu.Unlock()
}
