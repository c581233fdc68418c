package arbiter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"patchwatch/internal/catalog"
	"patchwatch/internal/classifier"
	"patchwatch/internal/config"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
)

func newTestArbiter(t *testing.T, svc classifier.Service) (*Arbiter, *catalog.Store) {
	t.Helper()
	store, err := catalog.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := config.Default()
	return New(store, svc, &cfg, logging.NewNop()), store
}

func seedRelease(t *testing.T, store *catalog.Store, release catalog.TrackedRelease) *catalog.TrackedRelease {
	t.Helper()
	if release.AccountID == "" {
		release.AccountID = "acct-1"
	}
	if release.Title == "" {
		release.Title = "Shadow Realm"
	}
	if release.CadenceMinutes == 0 {
		release.CadenceMinutes = 60
	}
	release.Active = true
	seeded, err := store.InsertRelease(context.Background(), &release)
	if err != nil {
		t.Fatalf("insert release: %v", err)
	}
	return seeded
}

type stubClassifier struct {
	opinion classifier.Opinion
	err     error
	calls   int
}

func (s *stubClassifier) Classify(context.Context, string, string) (classifier.Opinion, error) {
	s.calls++
	return s.opinion, s.err
}

func TestEvaluateCurrentTouchesLastChecked(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0.0",
		VersionVerified: true,
	})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.0.0",
		RawVersionText: "v1.0.0",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeCurrent {
		t.Fatalf("outcome = %s, want current", eval.Outcome)
	}

	got, err := store.GetRelease(ctx, release.ID)
	if err != nil {
		t.Fatalf("get release: %v", err)
	}
	if got.LastChecked == nil {
		t.Error("lastChecked should be set after an up-to-date check")
	}
	records, err := store.ListUpdates(ctx, release.ID)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("history has %d records, want 0", len(records))
	}
}

func TestEvaluateQueuesAtPatternConfidence(t *testing.T) {
	// Pattern confidence 0.6 sits between queue-min 0.3 and auto-apply 0.8.
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.2.3",
		VersionVerified: true,
	})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.3.0",
		RawVersionText: "v1.3.0",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued", eval.Outcome)
	}
	if eval.Pending == nil || eval.Pending.Version != "1.3.0" {
		t.Fatalf("pending = %+v, want version 1.3.0", eval.Pending)
	}
	if eval.Pending.Method != catalog.MethodPattern {
		t.Errorf("method = %s, want pattern", eval.Pending.Method)
	}

	// Re-polling the identical version must not create a second entry.
	eval, err = arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.3.0",
		RawVersionText: "v1.3.0",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if eval.Outcome != OutcomeSuppressed {
		t.Fatalf("outcome = %s, want suppressed", eval.Outcome)
	}
	entries, err := store.ListPending(ctx, release.ID, true)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("pending entries = %d, want 1", len(entries))
	}
}

func TestEvaluateAutoAppliesWithClassifier(t *testing.T) {
	svc := &stubClassifier{opinion: classifier.Opinion{Confidence: 0.95, Reason: "clear version bump"}}
	arb, store := newTestArbiter(t, svc)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "2.0",
		VersionVerified: true,
	})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v2.1 Build 15832751-GROUP",
		Link:           "https://example.test/listing",
		RawVersionText: "v2.1 Build 15832751-GROUP",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", eval.Outcome)
	}
	if eval.Record == nil || eval.Record.Version != "2.1" || eval.Record.Build != "15832751" {
		t.Fatalf("record = %+v, want version 2.1 build 15832751", eval.Record)
	}
	if svc.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", svc.calls)
	}

	got, err := store.GetRelease(ctx, release.ID)
	if err != nil {
		t.Fatalf("get release: %v", err)
	}
	if got.CurrentVersion != "2.1" || !got.BuildVerified || got.CurrentBuild != "15832751" {
		t.Errorf("release state not advanced: %+v", got)
	}
}

func TestEvaluateClassifierFailureFallsBack(t *testing.T) {
	svc := &stubClassifier{err: errors.New("upstream timeout")}
	arb, store := newTestArbiter(t, svc)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0",
		VersionVerified: true,
	})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.1",
		RawVersionText: "v1.1",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued on pattern confidence", eval.Outcome)
	}
	if eval.Method != catalog.MethodPattern {
		t.Errorf("method = %s, want pattern after classifier failure", eval.Method)
	}
	if eval.Pending.SecondaryConfidence != nil {
		t.Error("secondary confidence should be absent after classifier failure")
	}
}

func TestEvaluateAdvisoryNeverAutoApplies(t *testing.T) {
	svc := &stubClassifier{opinion: classifier.Opinion{Confidence: 0.99, Reason: "looks new"}}
	arb, store := newTestArbiter(t, svc)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v3.0",
		RawVersionText: "v3.0",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.Verdict.Advisory {
		t.Fatal("verdict should be advisory with no verified local state")
	}
	if eval.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, advisory detections must queue not apply", eval.Outcome)
	}
}

func TestApproveIdempotentSafe(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0",
		VersionVerified: true,
	})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.1",
		RawVersionText: "v1.1",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued", eval.Outcome)
	}

	record, err := arb.Approve(ctx, release.ID, eval.Pending.PublicID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if record.Version != "1.1" {
		t.Errorf("record version = %s, want 1.1", record.Version)
	}

	if _, err := arb.Approve(ctx, release.ID, eval.Pending.PublicID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("second approve err = %v, want ErrNotFound", err)
	}
	records, err := store.ListUpdates(ctx, release.ID)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("history has %d records, want exactly 1", len(records))
	}
}

func TestRejectSuppressesRedetection(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0",
		VersionVerified: true,
	})
	listing := listings.Listing{Title: "Shadow Realm v1.1", RawVersionText: "v1.1"}

	eval, err := arb.Evaluate(ctx, release, listing, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := arb.Reject(ctx, release.ID, eval.Pending.PublicID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	eval, err = arb.Evaluate(ctx, release, listing, time.Now().UTC())
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if eval.Outcome != OutcomeSuppressed {
		t.Fatalf("outcome = %s, want suppressed after reject", eval.Outcome)
	}

	open, err := store.ListPending(ctx, release.ID, false)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open pending entries = %d, want 0", len(open))
	}
}

func TestApproveWrongRelease(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0",
		VersionVerified: true,
	})
	other := seedRelease(t, store, catalog.TrackedRelease{Title: "Other Title"})

	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.1",
		RawVersionText: "v1.1",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := arb.Approve(ctx, other.ID, eval.Pending.PublicID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("cross-release approve err = %v, want ErrNotFound", err)
	}
}

func TestAutoApplyPrunesStalePending(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0",
		VersionVerified: true,
	})

	// Queue an ambiguous 1.1 detection first.
	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.1",
		RawVersionText: "v1.1",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued", eval.Outcome)
	}

	// A confident 1.2 detection auto-applies and invalidates the 1.1 entry.
	arb.classifier = &stubClassifier{opinion: classifier.Opinion{Confidence: 0.9, Reason: "confirmed"}}
	eval, err = arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.2",
		RawVersionText: "v1.2",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", eval.Outcome)
	}

	open, err := store.ListPending(ctx, release.ID, true)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("pending entries = %d, want 0 after prune", len(open))
	}
}

func TestAutoApplyPrunesBuildOnlyPending(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentBuild:  "15700000",
		BuildVerified: true,
	})

	// Queue a build-only detection; its dedup key is the build number itself.
	eval, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm Build 15810000-GROUP",
		RawVersionText: "Build 15810000",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued", eval.Outcome)
	}
	if eval.Pending.Version != eval.Pending.Build {
		t.Fatalf("pending key = %q, want build alias %q", eval.Pending.Version, eval.Pending.Build)
	}

	// A confident newer detection carrying both version and build applies and
	// must invalidate the build-only entry despite its aliased version field.
	arb.classifier = &stubClassifier{opinion: classifier.Opinion{Confidence: 0.9, Reason: "confirmed"}}
	eval, err = arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v2.0 Build 15832751-GROUP",
		RawVersionText: "v2.0 Build 15832751",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", eval.Outcome)
	}

	open, err := store.ListPending(ctx, release.ID, true)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("pending entries = %d, want 0 after prune, first = %+v", len(open), open[0])
	}
}

func TestApprovePrunesSupersededPending(t *testing.T) {
	arb, store := newTestArbiter(t, nil)
	ctx := context.Background()
	release := seedRelease(t, store, catalog.TrackedRelease{
		CurrentVersion:  "1.0",
		VersionVerified: true,
	})

	older, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.1",
		RawVersionText: "v1.1",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if older.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued", older.Outcome)
	}

	newer, err := arb.Evaluate(ctx, release, listings.Listing{
		Title:          "Shadow Realm v1.2",
		RawVersionText: "v1.2",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if newer.Outcome != OutcomeQueued {
		t.Fatalf("outcome = %s, want queued", newer.Outcome)
	}

	// Approving the newer entry performs the same transition as an auto-apply
	// and must sweep the older entry along with it.
	if _, err := arb.Approve(ctx, release.ID, newer.Pending.PublicID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := store.GetPending(ctx, older.Pending.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("superseded pending lookup err = %v, want ErrNotFound", err)
	}
	open, err := store.ListPending(ctx, release.ID, true)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("pending entries = %d, want 0 after approve", len(open))
	}
}
