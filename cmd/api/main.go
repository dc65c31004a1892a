package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-portal/internal/bootstrap"
	"github.com/jwalitptl/clinic-portal/internal/config"
	"github.com/jwalitptl/clinic-portal/internal/handler"
	appointmentHandler "github.com/jwalitptl/clinic-portal/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-portal/internal/handler/auth"
	calendarHandler "github.com/jwalitptl/clinic-portal/internal/handler/calendar"
	dashboardHandler "github.com/jwalitptl/clinic-portal/internal/handler/dashboard"
	reportHandler "github.com/jwalitptl/clinic-portal/internal/handler/report"
	userHandler "github.com/jwalitptl/clinic-portal/internal/handler/user"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/router"
	appointmentService "github.com/jwalitptl/clinic-portal/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-portal/internal/service/auth"
	reportService "github.com/jwalitptl/clinic-portal/internal/service/report"
	userService "github.com/jwalitptl/clinic-portal/internal/service/user"
	internalworker "github.com/jwalitptl/clinic-portal/internal/worker"
	"github.com/jwalitptl/clinic-portal/pkg/auth"
	"github.com/jwalitptl/clinic-portal/pkg/event"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
	"github.com/jwalitptl/clinic-portal/pkg/security"
	"github.com/jwalitptl/clinic-portal/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := bootstrap.SetupLogger(cfg.Log)

	flush, err := bootstrap.InitSentry(cfg.Sentry)
	if err != nil {
		logger.Warn("Sentry disabled", "error", err.Error())
	}
	defer flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(cfg.Server.MetricsPrefix)
	hasher := security.NewBcryptHasher(cfg.JWT.BcryptCost)

	store, err := bootstrap.OpenStore(ctx, cfg, hasher, logger)
	if err != nil {
		logger.Fatal(err, "failed to open store")
	}
	if store.Close != nil {
		defer store.Close()
	}

	// Services
	publisher := event.NewOutboxPublisher(store.Outbox)
	loc := cfg.Clinic.Location()

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Now)
	if err != nil {
		logger.Fatal(err, "failed to create token manager")
	}
	userSvc := userService.NewService(store.Users, hasher, userService.WithPublisher(publisher))
	authSvc := authService.NewService(userSvc, tokens, authService.Config{
		TokenTTL: cfg.JWT.Expiry,
		GuestTTL: cfg.JWT.GuestTTL,
	}, time.Now)
	appointmentSvc := appointmentService.NewService(store.Appointments, store.Users,
		appointmentService.WithPublisher(publisher),
		appointmentService.WithMetrics(m),
		appointmentService.WithLocation(loc),
	)
	reportSvc := reportService.NewService(store.Reports, store.Users, store.Appointments,
		reportService.WithPublisher(publisher),
		reportService.WithMetrics(m),
		reportService.WithLimits(reportService.Limits{
			MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			FileURLPrefix:     cfg.Upload.FileURLPrefix,
		}),
	)

	// Event delivery
	broker, remote, err := bootstrap.OpenBroker(ctx, cfg.Redis, m, logger)
	if err != nil {
		logger.Fatal(err, "failed to connect to message broker")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(store.Outbox, broker, bootstrap.OutboxProcessorConfig(cfg.Outbox), logger, m)
	if err != nil {
		logger.Fatal(err, "failed to create outbox processor")
	}
	cleanup := internalworker.NewOutboxCleanupWorker(store.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); processor.Start(ctx) }()
	go func() { defer wg.Done(); cleanup.Start(ctx) }()

	// With an in-process broker nobody else can subscribe, so the notifier
	// runs here. With Redis it is the worker's job.
	if !remote {
		notifier := internalworker.NewNotifier(store.Users, bootstrap.NewSender(cfg.SMTP, logger), cfg.Clinic.Name, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := notifier.Run(ctx, broker); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(err, "notifier stopped")
			}
		}()
	}

	// HTTP
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	routerConfig := router.DefaultRouterConfig()
	routerConfig.CORS.AllowOrigins = cfg.CORS.AllowedOrigins
	routerConfig.Timeout.Duration = cfg.Server.RequestTimeout
	routerConfig.SizeLimit.MaxUploadSize = cfg.Upload.MaxSizeBytes + 1<<20
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = &middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		}
	}

	r := router.NewRouter(
		authMiddleware,
		handler.NewHandler(store.Ping, prometheus.DefaultGatherer),
		m,
		routerConfig,
		authHandler.NewHandler(authSvc),
		userHandler.NewHandler(userSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		reportHandler.NewHandler(reportSvc),
		dashboardHandler.NewHandler(appointmentSvc),
		calendarHandler.NewHandler(time.Now, loc),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "failed to start server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}
	wg.Wait()

	logger.Info("Server exited properly")
}
