// Package main runs the in-memory schedule service for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"breaktime/internal/config"
	"breaktime/internal/logging"
	"breaktime/internal/remote/devserver"
	"breaktime/internal/schedule"

	"github.com/gin-gonic/gin"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "listen address")
	tokens := flag.String("tokens", "", "comma-separated bearer tokens to accept (empty accepts any)")
	seedAccount := flag.String("seed-account", "", "seed the default schedule for this account id")
	seedOrg := flag.String("seed-org", "", "seed the default schedule for this organization id")
	debug := flag.Bool("debug", false, "gin debug mode and debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.NewWriter(config.LogConfig{Level: level}, os.Stderr)

	var opts []devserver.Option
	if *tokens != "" {
		opts = append(opts, devserver.WithTokens(strings.Split(*tokens, ",")...))
	}
	srv := devserver.New(opts...)
	if *seedAccount != "" {
		srv.SetSchedule("account", *seedAccount, schedule.Default())
	}
	if *seedOrg != "" {
		srv.SetSchedule("organization", *seedOrg, schedule.Default())
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("devserver listening", "addr", *addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "devserver: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}
	logger.Info("devserver stopped")
}
