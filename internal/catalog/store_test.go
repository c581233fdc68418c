package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"patchwatch/internal/version"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRelease(t *testing.T, store *Store, accountID, title string) *TrackedRelease {
	t.Helper()
	release, err := store.InsertRelease(context.Background(), &TrackedRelease{
		AccountID:      accountID,
		Title:          title,
		OriginalTitle:  title,
		SourceTag:      "aggregator",
		CadenceMinutes: 60,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("insert release: %v", err)
	}
	return release
}

func TestInsertAndGetRelease(t *testing.T) {
	store := newTestStore(t)
	release := seedRelease(t, store, "acct-1", "Shadow Realm")

	got, err := store.GetRelease(context.Background(), release.ID)
	if err != nil {
		t.Fatalf("get release: %v", err)
	}
	if got.Title != "Shadow Realm" || got.AccountID != "acct-1" || !got.Active {
		t.Errorf("unexpected release %+v", got)
	}
	if got.LastChecked != nil {
		t.Error("fresh release should have nil lastChecked")
	}
}

func TestGetReleaseNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetRelease(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyUpdateAdvancesState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := seedRelease(t, store, "acct-1", "Shadow Realm")

	record, err := store.ApplyUpdate(ctx, ApplyInput{
		ReleaseID:      release.ID,
		Version:        "1.1",
		Build:          "900100",
		Significance:   version.SignificanceMinor,
		SourceLink:     "https://example.com/listing",
		DownloadRefs:   []string{"https://example.com/dl"},
		RawVersionText: "Shadow Realm v1.1 Build 900100",
	})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if record.Version != "1.1" || record.PreviousVersion != "" {
		t.Errorf("unexpected record %+v", record)
	}

	got, err := store.GetRelease(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentVersion != "1.1" || !got.VersionVerified {
		t.Errorf("release version state = %q verified=%v", got.CurrentVersion, got.VersionVerified)
	}
	if got.CurrentBuild != "900100" || !got.BuildVerified {
		t.Errorf("release build state = %q verified=%v", got.CurrentBuild, got.BuildVerified)
	}
	if got.LastChecked == nil {
		t.Error("lastChecked not set by apply")
	}

	history, err := store.ListUpdates(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}

	// Second apply snapshots the previous version.
	record, err = store.ApplyUpdate(ctx, ApplyInput{
		ReleaseID:    release.ID,
		Version:      "1.2",
		Significance: version.SignificanceMinor,
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.PreviousVersion != "1.1" {
		t.Errorf("previous version = %q, want 1.1", record.PreviousVersion)
	}
}

func TestPendingDedupKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := seedRelease(t, store, "acct-1", "Shadow Realm")

	pending := &PendingUpdate{
		ReleaseID:  release.ID,
		Version:    "2.0",
		Confidence: 0.55,
		Reason:     "dotted version token",
		Method:     MethodPattern,
	}
	if _, err := store.CreatePending(ctx, pending); err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if _, err := store.CreatePending(ctx, pending); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("second create err = %v, want ErrDuplicateKey", err)
	}

	// Same version with a different method is a distinct key.
	assisted := *pending
	assisted.Method = MethodAssisted
	if _, err := store.CreatePending(ctx, &assisted); err != nil {
		t.Fatalf("assisted create: %v", err)
	}
}

func TestDismissedPendingSuppressesKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := seedRelease(t, store, "acct-1", "Shadow Realm")

	created, err := store.CreatePending(ctx, &PendingUpdate{
		ReleaseID:  release.ID,
		Version:    "2.0",
		Confidence: 0.5,
		Method:     MethodPattern,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DismissPending(ctx, created.ID); err != nil {
		t.Fatal(err)
	}

	exists, dismissed, err := store.PendingKeyState(ctx, release.ID, "2.0", MethodPattern)
	if err != nil {
		t.Fatal(err)
	}
	if !exists || !dismissed {
		t.Errorf("key state = exists=%v dismissed=%v, want suppressed", exists, dismissed)
	}

	// Dismissing twice is a NotFound, not a second transition.
	if err := store.DismissPending(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second dismiss err = %v, want ErrNotFound", err)
	}
}

func TestApplyUpdateRemovesPendingOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := seedRelease(t, store, "acct-1", "Shadow Realm")

	created, err := store.CreatePending(ctx, &PendingUpdate{
		ReleaseID:  release.ID,
		Version:    "2.0",
		Confidence: 0.5,
		Method:     MethodPattern,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.ApplyUpdate(ctx, ApplyInput{
		ReleaseID:       release.ID,
		Version:         "2.0",
		Significance:    version.SignificanceMajor,
		RemovePendingID: created.ID,
	}); err != nil {
		t.Fatalf("apply with pending removal: %v", err)
	}

	// The pending row is gone; a second approval attempt must not re-apply.
	if _, err := store.ApplyUpdate(ctx, ApplyInput{
		ReleaseID:       release.ID,
		Version:         "2.0",
		Significance:    version.SignificanceMajor,
		RemovePendingID: created.ID,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second apply err = %v, want ErrNotFound", err)
	}

	history, err := store.ListUpdates(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want exactly 1", len(history))
	}
}

func TestRelationDedupAndDismiss(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := seedRelease(t, store, "acct-1", "Shadow Realm")

	candidate := &RelationCandidate{
		ReleaseID:      release.ID,
		CandidateTitle: "Shadow Realm 2",
		CandidateKey:   "shadow realm 2",
		Similarity:     0.82,
		Kind:           RelationSequel,
	}
	created, err := store.CreateRelation(ctx, candidate)
	if err != nil {
		t.Fatalf("create relation: %v", err)
	}
	if _, err := store.CreateRelation(ctx, candidate); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("duplicate relation err = %v, want ErrDuplicateKey", err)
	}

	if err := store.DismissRelation(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	exists, err := store.RelationExists(ctx, release.ID, "shadow realm 2")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("dismissed relation should still block the dedup key")
	}

	open, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("open relations = %d, want 0 after dismiss", len(open))
	}
}

func TestListAccountCadences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedRelease(t, store, "acct-1", "Fast Game")
	seedRelease(t, store, "acct-1", "Slow Game")
	seedRelease(t, store, "acct-2", "Other Game")

	if _, err := store.InsertRelease(ctx, &TrackedRelease{
		AccountID:      "acct-1",
		Title:          "Tight Game",
		OriginalTitle:  "Tight Game",
		CadenceMinutes: 15,
		Active:         true,
	}); err != nil {
		t.Fatal(err)
	}

	cadences, err := store.ListAccountCadences(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cadences) != 2 {
		t.Fatalf("cadence entries = %d, want 2", len(cadences))
	}
	for _, entry := range cadences {
		if entry.AccountID == "acct-1" && entry.CadenceMinutes != 15 {
			t.Errorf("acct-1 cadence = %d, want minimum 15", entry.CadenceMinutes)
		}
	}
}

func TestTouchLastCheckedAndRewriteTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := seedRelease(t, store, "acct-1", "Shadow Realm v1.0")

	at := time.Now().UTC().Truncate(time.Second)
	if err := store.TouchLastChecked(ctx, release.ID, at); err != nil {
		t.Fatal(err)
	}
	if err := store.RewriteTitle(ctx, release.ID, "Shadow Realm"); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRelease(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastChecked == nil || !got.LastChecked.Equal(at) {
		t.Errorf("lastChecked = %v, want %v", got.LastChecked, at)
	}
	if got.Title != "Shadow Realm" || got.OriginalTitle != "Shadow Realm v1.0" {
		t.Errorf("titles = %q / %q, original must be preserved", got.Title, got.OriginalTitle)
	}
}

func TestCheckHealth(t *testing.T) {
	store := newTestStore(t)
	seedRelease(t, store, "acct-1", "Shadow Realm")

	health := store.CheckHealth(context.Background())
	if health.Error != "" {
		t.Fatalf("health error: %s", health.Error)
	}
	if !health.IntegrityCheck || health.SchemaVersion != schemaVersion {
		t.Errorf("health = %+v", health)
	}
	if health.Releases != 1 || health.ActiveReleases != 1 {
		t.Errorf("release counts = %d/%d, want 1/1", health.Releases, health.ActiveReleases)
	}
}
