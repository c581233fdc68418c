// Command patchwatchd runs the background update-detection daemon: the
// scheduler, the IPC control socket, and the catalog store.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"patchwatch/internal/arbiter"
	"patchwatch/internal/catalog"
	"patchwatch/internal/classifier"
	"patchwatch/internal/config"
	"patchwatch/internal/daemon"
	"patchwatch/internal/ipc"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/relation"
	"patchwatch/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/patchwatch/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, loadedFrom, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if exists {
		logger.Info("config loaded", logging.String("path", loadedFrom))
	} else {
		logger.Info("no config file found, using defaults")
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return
	}

	client := listings.NewClient(cfg.Aggregator)
	svc := classifier.New(cfg.Classifier, logger)
	arb := arbiter.New(store, svc, cfg, logger)
	matcher := relation.New(store, cfg, logger)
	sched := scheduler.New(cfg, store, client, arb, matcher, logger)

	d, err := daemon.New(cfg, store, sched, arb, matcher, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("patchwatchd shutting down")
}
