package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-portal/internal/config"
	"github.com/jwalitptl/clinic-portal/internal/email"
	"github.com/jwalitptl/clinic-portal/pkg/logger"
	"github.com/jwalitptl/clinic-portal/pkg/messaging"
	"github.com/jwalitptl/clinic-portal/pkg/security"
)

func TestOpenStoreSeedsMemoryBackend(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "memory", Seed: true},
		Upload:   config.UploadConfig{FileURLPrefix: "/mock-files"},
	}
	ctx := context.Background()

	store, err := OpenStore(ctx, cfg, security.NewBcryptHasher(bcrypt.MinCost), logger.Nop())
	require.NoError(t, err)

	users, err := store.Users.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 5)

	doctor, err := store.Users.GetByEmail(ctx, "doctor@demo.com")
	require.NoError(t, err)
	assert.True(t, doctor.IsDoctor())
	require.NoError(t, store.Ping(ctx))
}

func TestOpenStoreWithoutSeed(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "memory"}}

	store, err := OpenStore(context.Background(), cfg, security.NewBcryptHasher(bcrypt.MinCost), logger.Nop())
	require.NoError(t, err)

	users, err := store.Users.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestOpenBrokerFallsBackToMemory(t *testing.T) {
	broker, remote, err := OpenBroker(context.Background(), config.RedisConfig{}, nil, logger.Nop())
	require.NoError(t, err)
	defer broker.Close()

	assert.False(t, remote)
	assert.IsType(t, &messaging.MemoryBroker{}, broker)
}

func TestNewSender(t *testing.T) {
	assert.IsType(t, &email.LogSender{}, NewSender(config.SMTPConfig{}, logger.Nop()))
	assert.IsType(t, &email.SMTPSender{}, NewSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, logger.Nop()))
}

func TestOutboxProcessorConfig(t *testing.T) {
	got := OutboxProcessorConfig(config.OutboxConfig{BatchSize: 10, RetryAttempts: 2, ClaimTimeout: time.Minute})
	assert.Equal(t, 10, got.BatchSize)
	assert.Equal(t, 2, got.RetryAttempts)
	assert.Equal(t, time.Minute, got.ClaimTimeout)
}

func TestCheckWorkerConfig(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		redis   string
		wantErr bool
	}{
		{"postgres with redis", "postgres", "redis://localhost:6379/0", false},
		{"memory store", "memory", "redis://localhost:6379/0", true},
		{"empty driver", "", "redis://localhost:6379/0", true},
		{"no redis", "postgres", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Database: config.DatabaseConfig{Driver: tt.driver},
				Redis:    config.RedisConfig{URL: tt.redis},
			}
			err := CheckWorkerConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
