package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenantrag/internal/bootstrap"
	"tenantrag/internal/config"
	"tenantrag/internal/pkg/logger"
)

// The agent answers chat turns published to session inboxes. Several agents
// may run; each session is served by the agent that receives its inbox
// messages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg, log.With("process", "agent"))
	if err != nil {
		log.Fatal("bootstrap failed", "error", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close resources failed", "error", err)
		}
	}()
	if err := a.Migrate(ctx); err != nil {
		log.Fatal("migrate failed", "error", err)
	}

	ops := &http.Server{
		Addr:              cfg.OpsAddr(),
		Handler:           a.OpsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", "error", err)
		}
	}()

	// Run returns after accepted turns have finished.
	runErr := a.ChatAgent().Run(ctx)
	if runErr != nil {
		log.Error("chat agent stopped", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ops.Shutdown(shutdownCtx)
	log.Info("agent stopped")
	if runErr != nil {
		_ = a.Close()
		log.Sync()
		os.Exit(1)
	}
}
