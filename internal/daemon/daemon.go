package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"patchwatch/internal/arbiter"
	"patchwatch/internal/catalog"
	"patchwatch/internal/config"
	"patchwatch/internal/logging"
	"patchwatch/internal/relation"
	"patchwatch/internal/scheduler"
)

// Daemon owns the background engine and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *catalog.Store
	scheduler *scheduler.Scheduler
	arbiter   *arbiter.Arbiter
	matcher   *relation.Matcher
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Scheduler    scheduler.Status
	CatalogPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, sched *scheduler.Scheduler, arb *arbiter.Arbiter, matcher *relation.Matcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || sched == nil || arb == nil || matcher == nil {
		return nil, errors.New("daemon requires config, store, scheduler, arbiter, and matcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "patchwatchd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		scheduler: sched,
		arbiter:   arb,
		matcher:   matcher,
		logPath:   filepath.Join(cfg.Paths.LogDir, "patchwatch.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another patchwatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("patchwatch daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the scheduler and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("patchwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Scheduler:    d.scheduler.Status(),
		CatalogPath:  filepath.Join(d.cfg.Paths.DataDir, "catalog.db"),
		LockFilePath: d.lockPath,
	}
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// CheckNow runs one account's check cycle immediately.
func (d *Daemon) CheckNow(ctx context.Context, accountID string) (scheduler.Summary, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return scheduler.Summary{}, errors.New("account id is required")
	}
	return d.scheduler.CheckNow(ctx, accountID)
}

// RefreshSchedule recomputes one account's schedule entry.
func (d *Daemon) RefreshSchedule(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return errors.New("account id is required")
	}
	return d.scheduler.RefreshSchedule(ctx, accountID)
}

// Approve promotes a pending update into the release history.
func (d *Daemon) Approve(ctx context.Context, releaseID int64, pendingID string) (*catalog.UpdateRecord, error) {
	if releaseID <= 0 {
		return nil, fmt.Errorf("invalid release id %d", releaseID)
	}
	pendingID = strings.TrimSpace(pendingID)
	if pendingID == "" {
		return nil, errors.New("pending id is required")
	}
	return d.arbiter.Approve(ctx, releaseID, pendingID)
}

// Reject dismisses a pending update.
func (d *Daemon) Reject(ctx context.Context, releaseID int64, pendingID string) error {
	if releaseID <= 0 {
		return fmt.Errorf("invalid release id %d", releaseID)
	}
	pendingID = strings.TrimSpace(pendingID)
	if pendingID == "" {
		return errors.New("pending id is required")
	}
	return d.arbiter.Reject(ctx, releaseID, pendingID)
}

// ResolveRelation applies a user decision to a relation candidate.
func (d *Daemon) ResolveRelation(ctx context.Context, candidateID string, action relation.Action) error {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return errors.New("candidate id is required")
	}
	return d.matcher.Resolve(ctx, candidateID, action)
}

// ListReleases returns tracked releases, optionally scoped to one account.
func (d *Daemon) ListReleases(ctx context.Context, accountID string, activeOnly bool) ([]*catalog.TrackedRelease, error) {
	if strings.TrimSpace(accountID) == "" {
		return d.store.ListAllReleases(ctx)
	}
	return d.store.ListReleases(ctx, accountID, activeOnly)
}

// AddRelease registers a new tracked release and refreshes its account's
// schedule entry.
func (d *Daemon) AddRelease(ctx context.Context, release *catalog.TrackedRelease) (*catalog.TrackedRelease, error) {
	if release == nil {
		return nil, errors.New("release is required")
	}
	release.AccountID = strings.TrimSpace(release.AccountID)
	release.Title = strings.TrimSpace(release.Title)
	if release.AccountID == "" {
		return nil, errors.New("account id is required")
	}
	if release.Title == "" {
		return nil, errors.New("title is required")
	}
	if release.OriginalTitle == "" {
		release.OriginalTitle = release.Title
	}
	if release.CadenceMinutes <= 0 {
		release.CadenceMinutes = d.cfg.Scheduler.DefaultCadenceMinutes
	}
	release.Active = true

	created, err := d.store.InsertRelease(ctx, release)
	if err != nil {
		return nil, err
	}
	if err := d.scheduler.RefreshSchedule(ctx, created.AccountID); err != nil {
		d.logger.Warn("refresh schedule after add",
			logging.String(logging.FieldAccount, created.AccountID),
			logging.Error(err))
	}
	return created, nil
}

// RemoveRelease deletes a tracked release and refreshes the account schedule.
func (d *Daemon) RemoveRelease(ctx context.Context, releaseID int64) error {
	release, err := d.store.GetRelease(ctx, releaseID)
	if err != nil {
		return err
	}
	if err := d.store.DeleteRelease(ctx, releaseID); err != nil {
		return err
	}
	if err := d.scheduler.RefreshSchedule(ctx, release.AccountID); err != nil {
		d.logger.Warn("refresh schedule after remove",
			logging.String(logging.FieldAccount, release.AccountID),
			logging.Error(err))
	}
	return nil
}

// SetReleaseActive pauses or resumes checking for one release.
func (d *Daemon) SetReleaseActive(ctx context.Context, releaseID int64, active bool) error {
	release, err := d.store.GetRelease(ctx, releaseID)
	if err != nil {
		return err
	}
	if err := d.store.SetReleaseActive(ctx, releaseID, active); err != nil {
		return err
	}
	if err := d.scheduler.RefreshSchedule(ctx, release.AccountID); err != nil {
		d.logger.Warn("refresh schedule after pause",
			logging.String(logging.FieldAccount, release.AccountID),
			logging.Error(err))
	}
	return nil
}

// ListPending returns queued detections, optionally scoped to one release
// (zero means all releases).
func (d *Daemon) ListPending(ctx context.Context, releaseID int64) ([]*catalog.PendingUpdate, error) {
	if releaseID == 0 {
		return d.store.ListAllPending(ctx)
	}
	return d.store.ListPending(ctx, releaseID, false)
}

// ListRelations returns open relation candidates, optionally scoped to one
// release (zero means all releases).
func (d *Daemon) ListRelations(ctx context.Context, releaseID int64) ([]*catalog.RelationCandidate, error) {
	return d.store.ListRelations(ctx, releaseID)
}

// ListHistory returns one release's applied update history.
func (d *Daemon) ListHistory(ctx context.Context, releaseID int64) ([]*catalog.UpdateRecord, error) {
	return d.store.ListUpdates(ctx, releaseID)
}

// CatalogHealth returns storage diagnostics.
func (d *Daemon) CatalogHealth(ctx context.Context) catalog.Health {
	return d.store.CheckHealth(ctx)
}
