// Package bootstrap holds the process wiring shared by the API server and the
// worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-portal/internal/config"
	"github.com/jwalitptl/clinic-portal/internal/email"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	"github.com/jwalitptl/clinic-portal/internal/repository/memory"
	"github.com/jwalitptl/clinic-portal/internal/repository/postgres"
	"github.com/jwalitptl/clinic-portal/internal/repository/seed"
	"github.com/jwalitptl/clinic-portal/pkg/logger"
	"github.com/jwalitptl/clinic-portal/pkg/messaging"
	"github.com/jwalitptl/clinic-portal/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
	"github.com/jwalitptl/clinic-portal/pkg/security"
	"github.com/jwalitptl/clinic-portal/pkg/worker"
)

// SetupLogger builds the application logger and installs it as the global
// zerolog logger used by the HTTP middleware.
func SetupLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Level),
		Output:  os.Stdout,
		Console: cfg.Pretty,
	})
	log.Logger = l.Zerolog()
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Level))
	return l
}

// InitSentry enables panic reporting when a DSN is configured. The returned
// func flushes buffered events and is safe to call either way.
func InitSentry(cfg config.SentryConfig) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return func() {}, fmt.Errorf("failed to initialise sentry: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// OpenStore opens the configured backend and, when enabled, seeds the demo
// data into an empty directory.
func OpenStore(ctx context.Context, cfg *config.Config, hasher security.PasswordHasher, l *logger.Logger) (repository.Store, error) {
	var store repository.Store
	switch strings.ToLower(cfg.Database.Driver) {
	case "postgres":
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return repository.Store{}, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return repository.Store{}, err
		}
		store = postgres.NewStore(db)
	default:
		store = memory.NewStore()
	}

	if !cfg.Database.Seed {
		return store, nil
	}
	existing, err := store.Users.List(ctx, "")
	if err != nil {
		return store, fmt.Errorf("failed to inspect user directory: %w", err)
	}
	if len(existing) > 0 {
		return store, nil
	}

	fixtures, err := seed.Load()
	if err != nil {
		return store, err
	}
	if err := seed.Apply(ctx, store, fixtures, hasher, cfg.Upload.FileURLPrefix); err != nil {
		return store, err
	}
	l.Info("Seeded demo data", "users", len(fixtures.Users), "appointments", len(fixtures.Appointments))
	return store, nil
}

// OpenBroker connects to Redis when a URL is configured. Without one it
// returns an in-process broker; the bool reports which was chosen.
func OpenBroker(ctx context.Context, cfg config.RedisConfig, m *metrics.Metrics, l *logger.Logger) (messaging.Broker, bool, error) {
	if cfg.URL == "" {
		return messaging.NewMemoryBroker(), false, nil
	}
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, m, l.Zerolog())
	if err != nil {
		return nil, false, err
	}
	return broker, true, nil
}

// NewSender delivers through SMTP when a host is configured and otherwise
// only logs outgoing mail.
func NewSender(cfg config.SMTPConfig, l *logger.Logger) email.Sender {
	if cfg.Host == "" {
		return &email.LogSender{Logger: l.Zerolog()}
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

// CheckWorkerConfig rejects settings under which a separate worker process
// would see none of the API's data: it needs the shared postgres store and a
// Redis broker.
func CheckWorkerConfig(cfg *config.Config) error {
	if driver := strings.ToLower(cfg.Database.Driver); driver != "postgres" {
		return fmt.Errorf("worker requires the postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Redis.URL == "" {
		return errors.New("worker requires a Redis url")
	}
	return nil
}

func OutboxProcessorConfig(cfg config.OutboxConfig) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		ClaimTimeout:  cfg.ClaimTimeout,
	}
}
