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

	a, err := bootstrap.New(ctx, cfg, log)
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

	// Single-binary mode runs the orchestrator and the ingestion consumer in
	// this process; they stop after the HTTP server drains.
	agentDone := make(chan struct{})
	if cfg.App.EmbedAgent {
		agent := a.ChatAgent()
		go func() {
			defer close(agentDone)
			if err := agent.Run(ctx); err != nil {
				log.Error("chat agent stopped", "error", err)
			}
		}()
	} else {
		close(agentDone)
	}
	if cfg.App.EmbedWorker {
		jobWorker := a.DocumentWorker()
		if err := jobWorker.Start(ctx); err != nil {
			log.Fatal("start document worker failed", "error", err)
		}
		defer jobWorker.Close()
	}

	router, release := a.Router()
	defer release()
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", server.Addr, "embed_agent", cfg.App.EmbedAgent, "embed_worker", cfg.App.EmbedWorker)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	waitForShutdown(ctx, server, log)
	<-agentDone
}

func waitForShutdown(ctx context.Context, server *http.Server, log *logger.Logger) {
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Open streams never finish on their own; Close ends them once the
	// grace period is spent.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", "error", err)
		_ = server.Close()
	}
}
