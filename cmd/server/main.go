package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentgate/internal/consent/handler"
	"consentgate/internal/consent/metrics"
	"consentgate/internal/consent/session"
	"consentgate/internal/consent/tracer"
	"consentgate/internal/platform/config"
	"consentgate/internal/platform/health"
	"consentgate/internal/platform/logger"
	"consentgate/internal/platform/middleware"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Consent logic lives in the internal consent packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing consentgate",
		"addr", cfg.Addr,
		"navigation", cfg.Navigation,
		"ignore_urls", len(cfg.IgnoreURLs),
	)

	sessions := session.NewRegistry()
	consentMetrics := metrics.New()
	consentHandler := handler.New(sessions, handler.Config{
		Navigation: cfg.Navigation,
		IgnoreURLs: cfg.IgnoreURLs,
		CookieTTL:  cfg.CookieTTL,
	}, log,
		handler.WithMetrics(consentMetrics),
		handler.WithTracer(tracer.NewOTel()),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(30 * time.Second))
	consentHandler.Register(r)
	health.New().Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
