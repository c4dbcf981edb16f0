package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/doxnav/internal/api"
	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/catalog"
	"github.com/dgallion1/doxnav/internal/config"
	"github.com/dgallion1/doxnav/internal/pathstore"
	"github.com/dgallion1/doxnav/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage and clients.
	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		log.Error("open catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	var ps *pathstore.Client
	if cfg.PublishEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
	} else {
		log.Info("pathstore publishing disabled")
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, bundle.NewRegistry(), cat, ps, log)
	n, err := orch.Restore(ctx)
	if err != nil {
		log.Error("restore sites", "error", err)
		os.Exit(1)
	}
	log.Info("restored sites", "count", n)

	preloads, err := cfg.Preloads()
	if err != nil {
		log.Error("invalid preload", "error", err)
		os.Exit(1)
	}
	for id, dir := range preloads {
		site, err := orch.Preload(id, dir)
		if err != nil {
			log.Error("preload failed", "site_id", id, "dir", dir, "error", err)
			continue
		}
		log.Info("preloaded site", "site_id", id, "entries", site.Search.Len(), "warnings", len(site.Warnings))
	}
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting uploads before the queue closes.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		cat.Close()
		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting doxnav", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
