package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"patchwatch/internal/arbiter"
	"patchwatch/internal/catalog"
	"patchwatch/internal/config"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/relation"
	"patchwatch/internal/scheduler"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Aggregator.BaseURL = "http://127.0.0.1:1"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	store, err := catalog.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	client := listings.NewClient(cfg.Aggregator)
	arb := arbiter.New(store, nil, &cfg, logger)
	matcher := relation.New(store, &cfg, logger)
	sched := scheduler.New(&cfg, store, client, arb, matcher, logger)

	d, err := New(&cfg, store, sched, arb, matcher, logger)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("daemon should report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second start on same daemon should fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon should report stopped")
	}
	d.Stop()
}

func TestDaemonInputValidation(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if _, err := d.CheckNow(ctx, "  "); err == nil {
		t.Error("blank account id should be rejected")
	}
	if _, err := d.Approve(ctx, 0, "abc"); err == nil {
		t.Error("zero release id should be rejected")
	}
	if err := d.Reject(ctx, 1, ""); err == nil {
		t.Error("blank pending id should be rejected")
	}
	if _, err := d.AddRelease(ctx, &catalog.TrackedRelease{AccountID: "acct-1"}); err == nil {
		t.Error("release without title should be rejected")
	}
}

func TestDaemonAddReleaseDefaults(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	created, err := d.AddRelease(ctx, &catalog.TrackedRelease{
		AccountID: "acct-1",
		Title:     "Shadow Realm",
	})
	if err != nil {
		t.Fatalf("add release: %v", err)
	}
	if created.CadenceMinutes != d.cfg.Scheduler.DefaultCadenceMinutes {
		t.Errorf("cadence = %d, want default", created.CadenceMinutes)
	}
	if created.OriginalTitle != "Shadow Realm" {
		t.Errorf("original title = %q, want copied from title", created.OriginalTitle)
	}
	if !created.Active {
		t.Error("new releases should be active")
	}
}
