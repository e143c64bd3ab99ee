// Package bootstrap wires the process-level runtime shared by the commands:
// database, Redis, tracing and the guest account.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"echoes/internal/cache"
	"echoes/internal/config"
	"echoes/internal/database"
	"echoes/internal/middleware"
	"echoes/internal/observability"
	"echoes/internal/repository"
	"echoes/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ServiceName identifies this process in traces.
const ServiceName = "echoes-api"

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema connects without running migrations.
	SkipSchema bool
	// SkipGuest leaves the guest account to be created on first guest login.
	SkipGuest bool
}

// Runtime holds the shared connections of a running process.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database and Redis, starts tracing and makes
// sure the configured guest account exists.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    ServiceName,
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.OTELEnabled,
		Exporter:       cfg.OTELExporter,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SamplerRatio:   cfg.OTELSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, !opts.SkipSchema)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client means Redis is unreachable; caching and pub/sub degrade.
	cache.InitRedis(cfg.RedisURL)
	rt := &Runtime{DB: db, Redis: cache.GetClient(), shutdownTracing: shutdownTracing}

	if !opts.SkipGuest && cfg.GuestEnabled() {
		if err := ensureGuest(cfg, db); err != nil {
			_ = rt.Close(context.Background())
			return nil, fmt.Errorf("failed to bootstrap guest account: %w", err)
		}
	}

	return rt, nil
}

func ensureGuest(cfg *config.Config, db *gorm.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := service.NewUserService(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		service.GuestConfig{Email: cfg.GuestEmail, Password: cfg.GuestPassword, Name: cfg.GuestName},
	)
	guest, err := users.EnsureGuest(ctx)
	if err != nil {
		return err
	}
	middleware.Logger.Info("guest account ready", slog.Uint64("user_id", uint64(guest.ID)))
	return nil
}

// Close flushes traces and releases the connections. The server closes
// DB and Redis itself on shutdown, so commands that hand them to a Server
// only call ShutdownTracing.
func (r *Runtime) Close(ctx context.Context) error {
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	return r.ShutdownTracing(ctx)
}

// ShutdownTracing flushes pending spans.
func (r *Runtime) ShutdownTracing(ctx context.Context) error {
	if r.shutdownTracing == nil {
		return nil
	}
	return r.shutdownTracing(ctx)
}
