package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"siteaudit/internal/assessment"
	"siteaudit/internal/assessment/assessortest"
	"siteaudit/internal/cache"
	"siteaudit/internal/coordinator"
	"siteaudit/internal/engine"
	"siteaudit/internal/platform/config"
	"siteaudit/internal/platform/httpserver"
	"siteaudit/internal/platform/logger"
	"siteaudit/internal/platform/metrics"
	httptransport "siteaudit/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	strategy, err := cache.ParseStrategy(cfg.Cache.Strategy)
	if err != nil {
		log.Error("invalid cache strategy", "error", err)
		os.Exit(1)
	}
	resultCache, err := cache.New(cache.Config{
		MaxEntries:      cfg.Cache.MaxEntries,
		MaxSizeBytes:    cfg.Cache.MaxSizeBytes,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		Strategy:        strategy,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}, cache.WithLogger(log))
	if err != nil {
		log.Error("cache init failed", "error", err)
		os.Exit(1)
	}
	defer resultCache.Close()

	registry := assessment.NewRegistry()
	if cfg.DevAssessors {
		// Scripted assessors so the surface is exercisable without real
		// upstreams. Production wiring registers the concrete clients here.
		for _, kind := range []assessment.Kind{assessment.KindPerformance, assessment.KindTechnology, assessment.KindInsight} {
			if err := registry.Register(assessortest.NewFake(kind)); err != nil {
				log.Error("assessor registration failed", "kind", kind.String(), "error", err)
				os.Exit(1)
			}
		}
	}

	coord, err := coordinator.New(registry, coordinator.Config{
		MaxConcurrent:         cfg.Coordinator.MaxConcurrent,
		MaxConcurrentSessions: cfg.Coordinator.MaxConcurrentSessions,
	}, coordinator.WithLogger(log), coordinator.WithMetrics(m))
	if err != nil {
		log.Error("coordinator init failed", "error", err)
		os.Exit(1)
	}

	svc, err := engine.New(resultCache, coord, engine.WithLogger(log), engine.WithMetrics(m))
	if err != nil {
		log.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(svc, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting siteaudit", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
