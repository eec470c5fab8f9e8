package main

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/storage"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/pkg"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds the process wide collaborators built from configuration
type app struct {
	cfg       *config.Config
	logger    utils.Logger
	db        *gorm.DB
	redis     *redis.Client
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	services  services.ServiceManager
}

// loadConfig reads .env and the environment, letting command flags override matching keys
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	v, err := config.NewViper()
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}
	return config.LoadConfig(v)
}

func newLogger(cfg *config.Config) utils.Logger {
	return utils.NewLogger(utils.LogOptions{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
}

// newApp connects storage backends and wires the service layer
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)
	slogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New()}

	if cfg.Database.AutoMigrate {
		if err := pkg.Migrate(db); err != nil {
			a.Close()
			return nil, err
		}
	}

	cacheService := cache.NewNoopCache()
	lease := cache.NewLocalLease()
	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache and sweep lease", "error", err)
		} else {
			a.redis = client
			cacheService = cache.NewRedisCache(client, slogger)
			lease = cache.NewRedisLease(client, cache.SweepLockKey, cfg.Sweep.LockTTL)
		}
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize image storage: %w", err)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	a.publisher = publisher

	a.services = services.NewServiceManager(services.Dependencies{
		Repo:          postgres.NewRepository(db),
		Validator:     validator.New(),
		Publisher:     publisher,
		Cache:         cacheService,
		Images:        images,
		Metrics:       a.metrics,
		Logger:        slogger,
		CacheTTL:      cfg.CacheTTL,
		MaxImageBytes: cfg.Storage.MaxImageBytes,
	}, services.SweeperConfig{
		Interval:  cfg.Sweep.Interval,
		BatchSize: cfg.Sweep.BatchSize,
		Lease:     lease,
	})

	logger.Info("Application initialized",
		"environment", cfg.Environment,
		"database_driver", cfg.Database.Driver,
		"storage_provider", cfg.Storage.Provider,
		"redis", a.redis != nil)

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Failed to close event publisher", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
