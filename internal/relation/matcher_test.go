package relation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"patchwatch/internal/catalog"
	"patchwatch/internal/config"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
)

func newTestMatcher(t *testing.T) (*Matcher, *catalog.Store) {
	t.Helper()
	store, err := catalog.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := config.Default()
	return New(store, &cfg, logging.NewNop()), store
}

func seedRelease(t *testing.T, store *catalog.Store, title string) *catalog.TrackedRelease {
	t.Helper()
	release, err := store.InsertRelease(context.Background(), &catalog.TrackedRelease{
		AccountID:      "acct-1",
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

func TestScanEmitsSequelCandidate(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm 2")

	created, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, []listings.Listing{
		{Title: "Shadow Realm 3 v1.0.1 Build 204881-GROUP", Link: "https://example.test/sr3"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	candidates, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].Kind != catalog.RelationSequel {
		t.Errorf("kind = %s, want potential_sequel", candidates[0].Kind)
	}
	if candidates[0].Similarity < 0.5 {
		t.Errorf("similarity = %v, want >= threshold", candidates[0].Similarity)
	}
}

func TestScanClassifiesEditionAndDLC(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm")

	created, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, []listings.Listing{
		{Title: "Shadow Realm Definitive Edition"},
		{Title: "Shadow Realm Frozen Wastes DLC"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	candidates, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	kinds := map[string]catalog.RelationKind{}
	for _, candidate := range candidates {
		kinds[candidate.CandidateTitle] = candidate.Kind
	}
	if kinds["Shadow Realm Definitive Edition"] != catalog.RelationEdition {
		t.Errorf("edition listing classified as %s", kinds["Shadow Realm Definitive Edition"])
	}
	if kinds["Shadow Realm Frozen Wastes DLC"] != catalog.RelationDLC {
		t.Errorf("dlc listing classified as %s", kinds["Shadow Realm Frozen Wastes DLC"])
	}
}

func TestScanThresholdBoundaryInclusive(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Alpha Beta")

	// "alpha beta" vs "alpha gamma" has cosine similarity exactly 0.5, the
	// default threshold; the boundary is included.
	created, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, []listings.Listing{
		{Title: "Alpha Gamma"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1 at the inclusive boundary", created)
	}
}

func TestScanSkipsDissimilarAndIdentical(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm")

	created, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, []listings.Listing{
		{Title: "Completely Unrelated Farming Sim"},
		{Title: "Shadow Realm v1.2.3"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}
}

func TestScanDeduplicatesPairs(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm 2")
	listing := []listings.Listing{{Title: "Shadow Realm 3"}}

	if _, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, listing); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	created, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, listing)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 on repeat scan", created)
	}
}

func TestResolveDismissSuppressesReemission(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm 2")
	listing := []listings.Listing{{Title: "Shadow Realm 3"}}

	if _, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, listing); err != nil {
		t.Fatalf("scan: %v", err)
	}
	candidates, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if err := matcher.Resolve(ctx, candidates[0].PublicID, ActionDismiss); err != nil {
		t.Fatalf("resolve dismiss: %v", err)
	}

	created, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, listing)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, dismissed pair must stay suppressed", created)
	}
	open, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open candidates = %d, want 0 after dismiss", len(open))
	}
}

func TestResolveTrackSeparateSeedsRelease(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm 2")

	if _, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, []listings.Listing{
		{Title: "Shadow Realm 3 v1.0", RawVersionText: "v1.0", Link: "https://example.test/sr3"},
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	candidates, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if err := matcher.Resolve(ctx, candidates[0].PublicID, ActionTrackSeparate); err != nil {
		t.Fatalf("resolve track_separate: %v", err)
	}

	all, err := store.ListReleases(ctx, "acct-1", true)
	if err != nil {
		t.Fatalf("list releases: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("releases = %d, want 2 after track_separate", len(all))
	}
	var seeded *catalog.TrackedRelease
	for _, r := range all {
		if r.ID != release.ID {
			seeded = r
		}
	}
	if seeded == nil || seeded.Title != "Shadow Realm 3" {
		t.Fatalf("seeded release = %+v, want stripped title Shadow Realm 3", seeded)
	}
	if seeded.CurrentVersion != "1.0" {
		t.Errorf("seeded version = %s, want 1.0", seeded.CurrentVersion)
	}
}

func TestResolveTrackSameMergesHistory(t *testing.T) {
	matcher, store := newTestMatcher(t)
	ctx := context.Background()
	release := seedRelease(t, store, "Shadow Realm")

	if _, err := matcher.Scan(ctx, []*catalog.TrackedRelease{release}, []listings.Listing{
		{Title: "Shadow Realm Definitive Edition v2.0", RawVersionText: "v2.0"},
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	candidates, err := store.ListRelations(ctx, release.ID)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if err := matcher.Resolve(ctx, candidates[0].PublicID, ActionTrackSame); err != nil {
		t.Fatalf("resolve track_same: %v", err)
	}

	records, err := store.ListUpdates(ctx, release.ID)
	if err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(records) != 1 || records[0].Version != "2.0" {
		t.Fatalf("records = %+v, want one record at version 2.0", records)
	}
	if _, err := store.GetRelation(ctx, candidates[0].ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("candidate should be removed after merge, err = %v", err)
	}
}

func TestParseAction(t *testing.T) {
	for _, valid := range []string{"track_same", "TRACK_SEPARATE", " dismiss "} {
		if _, ok := ParseAction(valid); !ok {
			t.Errorf("ParseAction(%q) rejected", valid)
		}
	}
	if _, ok := ParseAction("merge"); ok {
		t.Error("ParseAction should reject unknown actions")
	}
}
