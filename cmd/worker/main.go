package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-portal/internal/bootstrap"
	"github.com/jwalitptl/clinic-portal/internal/config"
	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	internalworker "github.com/jwalitptl/clinic-portal/internal/worker"
	"github.com/jwalitptl/clinic-portal/pkg/logger"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
	"github.com/jwalitptl/clinic-portal/pkg/security"
	"github.com/jwalitptl/clinic-portal/pkg/worker"
)

const healthPort = 8081

// The worker relays outbox events to Redis and sends the notification emails
// they trigger. It needs the postgres store and a Redis broker; with the
// in-memory backend the API process does this work itself.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	l := bootstrap.SetupLogger(cfg.Log).With("worker")
	if err := bootstrap.CheckWorkerConfig(cfg); err != nil {
		l.Fatal(err, "The worker needs the shared database and a Redis broker")
	}

	flush, err := bootstrap.InitSentry(cfg.Sentry)
	if err != nil {
		l.Warn("Sentry disabled", "error", err.Error())
	}
	defer flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(cfg.Server.MetricsPrefix + "_worker")

	// Seeding is left to the API.
	cfg.Database.Seed = false
	store, err := bootstrap.OpenStore(ctx, cfg, security.NewBcryptHasher(cfg.JWT.BcryptCost), l)
	if err != nil {
		l.Fatal(err, "Failed to open store")
	}
	if store.Close != nil {
		defer store.Close()
	}

	broker, _, err := bootstrap.OpenBroker(ctx, cfg.Redis, m, l)
	if err != nil {
		l.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(store.Outbox, broker, bootstrap.OutboxProcessorConfig(cfg.Outbox), l, m)
	if err != nil {
		l.Fatal(err, "Failed to create outbox processor")
	}
	cleanup := internalworker.NewOutboxCleanupWorker(store.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, l)
	notifier := internalworker.NewNotifier(store.Users, bootstrap.NewSender(cfg.SMTP, l), cfg.Clinic.Name, l)

	srv := setupHealthCheck(store.Ping, l)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); processor.Start(ctx) }()
	go func() { defer wg.Done(); cleanup.Start(ctx) }()
	go func() {
		defer wg.Done()
		if err := notifier.Run(ctx, broker); err != nil && !errors.Is(err, context.Canceled) {
			l.Error(err, "Notifier stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
}

func setupHealthCheck(ready func(context.Context) error, l *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())

	ops := handler.NewHandler(ready, prometheus.DefaultGatherer)
	engine.GET("/health/live", ops.LivenessCheck)
	engine.GET("/health/ready", ops.ReadinessCheck)
	engine.GET("/metrics", ops.MetricsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", healthPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "Health check server failed")
		}
	}()
	return srv
}
