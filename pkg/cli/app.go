package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/database"
	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/repositories"
)

// app holds the connections a command opened. Members stay nil for
// features that are disabled in configuration.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *database.DB
	redis *redis.Client
	sink  sink.Sink
}

type features struct {
	runLog bool
	cache  bool
	sink   bool
}

func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, want features) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if want.runLog && cfg.Database.Enabled {
		if err := a.openRunLog(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if want.cache && cfg.Redis.Enabled {
		client, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Address()))
	}

	if want.sink && cfg.Sink.Enabled() {
		s, err := sink.New(ctx, cfg.Sink, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open %s sink: %w", cfg.Sink.Type, err)
		}
		a.sink = s
	}
	return a, nil
}

func (a *app) openRunLog(ctx context.Context) error {
	connStr := a.cfg.Database.ConnectionString()

	if !a.cfg.Database.SkipMigrations {
		sqlDB, err := database.OpenSQL(connStr)
		if err != nil {
			return err
		}
		err = database.RunMigrations(sqlDB, a.logger)
		sqlDB.Close()
		if err != nil {
			return err
		}
	}

	db, err := database.NewConnection(ctx, database.ConfigFrom(&a.cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to connect to run log database %s: %w",
			logging.SanitizeConnectionString(connStr), err)
	}
	a.db = db
	a.logger.Info("Connected to run log database",
		zap.String("host", a.cfg.Database.Host),
		zap.String("database", a.cfg.Database.Database))
	return nil
}

// runs returns the run log repository, or nil when the run log is disabled.
func (a *app) runs() repositories.GenerationRunRepository {
	if a.db == nil {
		return nil
	}
	return repositories.NewGenerationRunRepository(a.db)
}

func (a *app) cache() *cache.DatasetCache {
	return cache.New(a.redis, a.cfg.Redis.TTL, a.logger)
}

func (a *app) Close() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("Failed to close sink", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
