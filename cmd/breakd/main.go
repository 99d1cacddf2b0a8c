// Package main is the entry point for the breakd reminder daemon.
// It loads configuration, wires the engine to the session bus, and runs
// until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"breaktime/internal/alarm"
	"breaktime/internal/auth"
	"breaktime/internal/breaks"
	"breaktime/internal/config"
	"breaktime/internal/engine"
	"breaktime/internal/gate"
	"breaktime/internal/ipc"
	"breaktime/internal/logging"
	"breaktime/internal/metrics"
	"breaktime/internal/notify"
	"breaktime/internal/remote"
	"breaktime/internal/storage"
	cfgsync "breaktime/internal/sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", config.Path(), "path to config.yaml")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("breakd %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "breakd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := storage.New(cfg.GetDataDir())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	sessions := auth.NewFileProvider(cfg.GetDataDir(), logger)
	host := alarm.NewTimerHost(8)
	defer host.Close()
	driver := alarm.NewDriver(host, store, logger)

	var rem cfgsync.Remote
	if cfg.Remote.BaseURL != "" {
		client, err := remote.New(cfg.Remote, logger)
		if err != nil {
			return fmt.Errorf("remote: %w", err)
		}
		rem = client
	} else {
		logger.Info("no remote configured; running offline")
	}

	rec, err := metrics.New()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	prompter := notify.New(logger)
	defer prompter.Close()

	eng := engine.New(engine.Options{
		Config:   cfg,
		Store:    store,
		Alarms:   driver,
		Fired:    host.Events(),
		Gate:     gate.New(sessions, store),
		Sync:     cfgsync.New(store, rem, driver, sessions, logger),
		Breaks:   breaks.New(store, logger),
		Prompter: prompter,
		Sessions: sessions,
		Metrics:  rec,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	srv := ipc.NewServer(ctx, conn, eng, logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Close()
	eng.OnBreakStateChanged(srv.BreakStateChanged)

	logger.Info("breakd started", "version", version, "data_dir", cfg.GetDataDir())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(ctx)
	})
	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return rec.Serve(ctx, cfg.Metrics.ListenAddr, logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
