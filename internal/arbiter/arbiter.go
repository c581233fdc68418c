package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"patchwatch/internal/catalog"
	"patchwatch/internal/classifier"
	"patchwatch/internal/config"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/version"
)

// Outcome names what the arbiter did with one candidate listing.
type Outcome string

const (
	// OutcomeApplied means an UpdateRecord was appended and the release state
	// advanced.
	OutcomeApplied Outcome = "applied"
	// OutcomeQueued means a PendingUpdate was created for human review.
	OutcomeQueued Outcome = "queued"
	// OutcomeCurrent means the release is already up to date.
	OutcomeCurrent Outcome = "current"
	// OutcomeSuppressed means the dedup key already exists, open or dismissed.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeDropped means confidence fell below the queueing floor or no
	// tokens were detected.
	OutcomeDropped Outcome = "dropped"
)

// Evaluation reports the result of evaluating one candidate listing.
type Evaluation struct {
	Outcome    Outcome
	Detection  version.Detection
	Verdict    version.Verdict
	Confidence float64
	Method     catalog.DetectionMethod
	Record     *catalog.UpdateRecord
	Pending    *catalog.PendingUpdate
}

// Arbiter applies or queues detected updates against the catalog.
type Arbiter struct {
	store      *catalog.Store
	classifier classifier.Service
	engine     config.Engine
	freshness  time.Duration
	logger     *slog.Logger
}

// New creates an Arbiter. The classifier service may be nil, in which case
// every detection runs pattern-only.
func New(store *catalog.Store, svc classifier.Service, cfg *config.Config, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		store:      store,
		classifier: svc,
		engine:     cfg.Engine,
		freshness:  cfg.FreshnessWindow(),
		logger:     logging.NewComponentLogger(logger, "arbiter"),
	}
}

// Evaluate runs the full detect/compare/decide pipeline for one candidate
// listing matched to a tracked release. Storage errors are returned; a
// classifier failure degrades to pattern-only confidence.
func (a *Arbiter) Evaluate(ctx context.Context, release *catalog.TrackedRelease, listing listings.Listing, now time.Time) (Evaluation, error) {
	rawText := listing.RawVersionText
	if rawText == "" {
		rawText = listing.Title
	}

	detection := version.Detect(rawText)
	if detection.Empty() && rawText != listing.Title {
		detection = version.Detect(listing.Title)
	}

	eval := Evaluation{
		Detection: detection,
		Method:    catalog.MethodPattern,
	}

	if detection.Empty() {
		eval.Outcome = OutcomeDropped
		a.logger.Debug("no tokens detected",
			logging.Int64(logging.FieldReleaseID, release.ID),
			logging.String("title", listing.Title))
		return eval, a.touch(ctx, release.ID, now)
	}

	eval.Verdict = version.Outdated(release.LocalState(), version.RemoteSignal{
		Version: detection.Version,
		Build:   detection.Build,
		Seen:    now,
	}, now, a.freshness)

	if !eval.Verdict.Outdated {
		eval.Outcome = OutcomeCurrent
		return eval, a.touch(ctx, release.ID, now)
	}

	eval.Confidence = a.engine.PatternConfidence
	var secondary *classifier.Opinion
	if a.classifier != nil {
		opinion, err := a.classifier.Classify(ctx, release.Title, rawText)
		if err != nil {
			a.logger.Warn("classifier unavailable, using pattern confidence",
				logging.Int64(logging.FieldReleaseID, release.ID),
				logging.Error(err))
		} else {
			secondary = &opinion
			eval.Method = catalog.MethodAssisted
			if opinion.Confidence > eval.Confidence {
				eval.Confidence = opinion.Confidence
			}
		}
	}

	// Advisory verdicts carry no verified evidence and are never auto-applied.
	if eval.Confidence >= a.engine.AutoApplyConfidence && !eval.Verdict.Advisory {
		record, err := a.apply(ctx, release, detection, listing, now)
		if err != nil {
			return eval, err
		}
		eval.Outcome = OutcomeApplied
		eval.Record = record
		return eval, nil
	}

	if eval.Confidence >= a.engine.QueueMinConfidence {
		pending, outcome, err := a.queue(ctx, release.ID, detection, eval, secondary, now)
		if err != nil {
			return eval, err
		}
		eval.Outcome = outcome
		eval.Pending = pending
		return eval, a.touch(ctx, release.ID, now)
	}

	eval.Outcome = OutcomeDropped
	a.logger.Info("detection below queueing floor",
		logging.Int64(logging.FieldReleaseID, release.ID),
		logging.String("detected", detectionKey(detection)),
		logging.Float64("confidence", eval.Confidence))
	return eval, a.touch(ctx, release.ID, now)
}

func (a *Arbiter) apply(ctx context.Context, release *catalog.TrackedRelease, detection version.Detection, listing listings.Listing, now time.Time) (*catalog.UpdateRecord, error) {
	record, err := a.store.ApplyUpdate(ctx, catalog.ApplyInput{
		ReleaseID:      release.ID,
		Version:        detection.Version,
		Build:          detection.Build,
		Significance:   version.Classify(release.CurrentVersion, detection.Version),
		SourceLink:     listing.Link,
		DateFound:      now,
		RawVersionText: listing.RawVersionText,
	})
	if err != nil {
		return nil, fmt.Errorf("apply update: %w", err)
	}

	if err := a.pruneStalePending(ctx, release.ID, detection); err != nil {
		a.logger.Warn("prune stale pending entries",
			logging.Int64(logging.FieldReleaseID, release.ID),
			logging.Error(err))
	}

	a.logger.Info("update applied",
		logging.Int64(logging.FieldReleaseID, release.ID),
		logging.String("version", detection.Version),
		logging.String("build", detection.Build),
		logging.String("significance", string(record.Significance)))
	return record, nil
}

// pruneStalePending removes open pending entries whose detected value is no
// longer newer than the just-applied state. Dismissed rows stay untouched so
// their suppression keys survive.
func (a *Arbiter) pruneStalePending(ctx context.Context, releaseID int64, applied version.Detection) error {
	entries, err := a.store.ListPending(ctx, releaseID, false)
	if err != nil {
		return err
	}
	var stale []int64
	for _, entry := range entries {
		if pendingIsStale(entry, applied) {
			stale = append(stale, entry.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	removed, err := a.store.DeletePending(ctx, stale...)
	if err != nil {
		return err
	}
	a.logger.Debug("removed stale pending entries",
		logging.Int64(logging.FieldReleaseID, releaseID),
		logging.Int64("removed", removed))
	return nil
}

// pendingIsStale reports whether an open entry is superseded by the applied
// detection. Build-only entries store their build number in the dedup version
// field, so the build comparison runs first and the version comparison skips
// aliased values.
func pendingIsStale(entry *catalog.PendingUpdate, applied version.Detection) bool {
	if entry.Build != "" && applied.Build != "" {
		if cmp, ok := version.CompareBuilds(entry.Build, applied.Build); ok && cmp <= 0 {
			return true
		}
	}
	if entry.Version != "" && entry.Version != entry.Build && applied.Version != "" {
		if cmp, ok := version.CompareVersions(entry.Version, applied.Version); ok {
			return cmp <= 0
		}
	}
	return false
}

func (a *Arbiter) queue(ctx context.Context, releaseID int64, detection version.Detection, eval Evaluation, secondary *classifier.Opinion, now time.Time) (*catalog.PendingUpdate, Outcome, error) {
	key := detectionKey(detection)
	exists, dismissed, err := a.store.PendingKeyState(ctx, releaseID, key, eval.Method)
	if err != nil {
		return nil, "", err
	}
	if exists {
		if dismissed {
			a.logger.Debug("detection suppressed by dismissed key",
				logging.Int64(logging.FieldReleaseID, releaseID),
				logging.String("detected", key))
		}
		return nil, OutcomeSuppressed, nil
	}

	pending := &catalog.PendingUpdate{
		ReleaseID:  releaseID,
		Version:    key,
		Build:      detection.Build,
		Confidence: eval.Confidence,
		Reason:     eval.Verdict.Reason,
		Method:     eval.Method,
		DateFound:  now,
	}
	if secondary != nil {
		confidence := secondary.Confidence
		pending.SecondaryConfidence = &confidence
		pending.SecondaryReason = secondary.Reason
	}

	created, err := a.store.CreatePending(ctx, pending)
	if err != nil {
		// A concurrent cycle can win the insert race; treat it as suppression.
		if errors.Is(err, catalog.ErrDuplicateKey) {
			return nil, OutcomeSuppressed, nil
		}
		return nil, "", err
	}

	a.logger.Info("update queued for review",
		logging.Int64(logging.FieldReleaseID, releaseID),
		logging.Int64(logging.FieldPendingID, created.ID),
		logging.String("detected", key),
		logging.Float64("confidence", eval.Confidence))
	return created, OutcomeQueued, nil
}

// detectionKey is the dedup identity of a detection: the version when one was
// found, otherwise the build number.
func detectionKey(d version.Detection) string {
	if d.Version != "" {
		return d.Version
	}
	return d.Build
}

func (a *Arbiter) touch(ctx context.Context, releaseID int64, now time.Time) error {
	if err := a.store.TouchLastChecked(ctx, releaseID, now); err != nil {
		return fmt.Errorf("touch last checked: %w", err)
	}
	return nil
}

// Approve promotes a pending entry into the release's history. Approving an
// already-resolved entry returns catalog.ErrNotFound instead of applying the
// update a second time.
func (a *Arbiter) Approve(ctx context.Context, releaseID int64, pendingID string) (*catalog.UpdateRecord, error) {
	pending, err := a.store.GetPendingByPublicID(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending.ReleaseID != releaseID {
		return nil, fmt.Errorf("pending update %s does not belong to release %d: %w", pendingID, releaseID, catalog.ErrNotFound)
	}
	if pending.Dismissed {
		return nil, fmt.Errorf("pending update %s already rejected: %w", pendingID, catalog.ErrNotFound)
	}

	release, err := a.store.GetRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	record, err := a.store.ApplyUpdate(ctx, catalog.ApplyInput{
		ReleaseID:       releaseID,
		Version:         pending.Version,
		Build:           pending.Build,
		Significance:    version.Classify(release.CurrentVersion, pending.Version),
		DateFound:       time.Now().UTC(),
		RemovePendingID: pending.ID,
	})
	if err != nil {
		return nil, err
	}

	applied := version.Detection{Build: pending.Build}
	if pending.Version != pending.Build {
		applied.Version = pending.Version
	}
	if err := a.pruneStalePending(ctx, releaseID, applied); err != nil {
		a.logger.Warn("prune stale pending entries",
			logging.Int64(logging.FieldReleaseID, releaseID),
			logging.Error(err))
	}

	a.logger.Info("pending update approved",
		logging.Int64(logging.FieldReleaseID, releaseID),
		logging.Int64(logging.FieldPendingID, pending.ID),
		logging.String("version", pending.Version))
	return record, nil
}

// Reject marks a pending entry dismissed. The dedup key is retained so the
// identical detection is not re-queued by later polls.
func (a *Arbiter) Reject(ctx context.Context, releaseID int64, pendingID string) error {
	pending, err := a.store.GetPendingByPublicID(ctx, pendingID)
	if err != nil {
		return err
	}
	if pending.ReleaseID != releaseID {
		return fmt.Errorf("pending update %s does not belong to release %d: %w", pendingID, releaseID, catalog.ErrNotFound)
	}
	if err := a.store.DismissPending(ctx, pending.ID); err != nil {
		return err
	}
	a.logger.Info("pending update rejected",
		logging.Int64(logging.FieldReleaseID, releaseID),
		logging.Int64(logging.FieldPendingID, pending.ID))
	return nil
}
