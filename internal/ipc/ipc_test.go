package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"patchwatch/internal/arbiter"
	"patchwatch/internal/catalog"
	"patchwatch/internal/config"
	"patchwatch/internal/daemon"
	"patchwatch/internal/ipc"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/relation"
	"patchwatch/internal/scheduler"
)

func TestIPCServerClient(t *testing.T) {
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

	d, err := daemon.New(&cfg, store, sched, arb, matcher, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(base, "patchwatch.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	rpcClient, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = rpcClient.Close() })

	addResp, err := rpcClient.ReleaseAdd(ipc.ReleaseAddRequest{
		AccountID: "acct-1",
		Title:     "Shadow Realm",
		SourceTag: "aggregator",
	})
	if err != nil {
		t.Fatalf("ReleaseAdd failed: %v", err)
	}
	if addResp.Release.ID == 0 || addResp.Release.Title != "Shadow Realm" {
		t.Fatalf("unexpected release %+v", addResp.Release)
	}

	listResp, err := rpcClient.ReleaseList("acct-1", true)
	if err != nil {
		t.Fatalf("ReleaseList failed: %v", err)
	}
	if len(listResp.Releases) != 1 {
		t.Fatalf("expected 1 release, got %d", len(listResp.Releases))
	}

	status, err := rpcClient.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should not be running yet")
	}
	if status.ScheduledAccounts != 1 {
		t.Fatalf("scheduledAccounts = %d, want 1 after add", status.ScheduledAccounts)
	}
	if !strings.HasSuffix(status.CatalogPath, "catalog.db") {
		t.Fatalf("unexpected catalog path %s", status.CatalogPath)
	}

	pauseResp, err := rpcClient.ReleasePause(addResp.Release.ID, false)
	if err != nil {
		t.Fatalf("ReleasePause failed: %v", err)
	}
	if pauseResp.Active {
		t.Fatal("release should be paused")
	}
	status, err = rpcClient.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.ScheduledAccounts != 0 {
		t.Fatalf("scheduledAccounts = %d, want 0 after pausing the only release", status.ScheduledAccounts)
	}

	pendingResp, err := rpcClient.PendingList(0)
	if err != nil {
		t.Fatalf("PendingList failed: %v", err)
	}
	if len(pendingResp.Pending) != 0 {
		t.Fatalf("expected empty pending list, got %d", len(pendingResp.Pending))
	}

	if _, err := rpcClient.ResolveRelation("some-id", "merge"); err == nil {
		t.Fatal("unknown relation action should be rejected")
	}

	healthResp, err := rpcClient.Health()
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if healthResp.Releases != 1 || !healthResp.IntegrityCheck {
		t.Fatalf("unexpected health response %+v", healthResp)
	}

	removeResp, err := rpcClient.ReleaseRemove(addResp.Release.ID)
	if err != nil {
		t.Fatalf("ReleaseRemove failed: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected removal to be acknowledged")
	}
}
