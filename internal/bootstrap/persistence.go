package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/filestore"
	redisadapter "github.com/target/mmk-console/internal/adapters/redis"
	"github.com/target/mmk-console/internal/data"
	httpx "github.com/target/mmk-console/internal/http"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// Infrastructure holds the connections behind session persistence.
type Infrastructure struct {
	DB          *sql.DB
	Redis       redis.UniversalClient
	Persistence ports.SessionPersistence
	// Purger is set when the backend has no native expiry and needs the janitor.
	Purger       service.ExpiredSessionPurger
	HealthChecks []httpx.HealthCheck
}

// OpenInfrastructure connects the session backend selected by cfg.Session.Backend.
func OpenInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	if cfg == nil {
		return nil, errors.New("app config is required")
	}
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}
	infra := &Infrastructure{}

	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client, err := ConnectRedis(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.Redis = client
		infra.Persistence = redisadapter.NewSessionPersistenceWithPrefix(client, cfg.Session.RedisPrefix)
		infra.HealthChecks = append(infra.HealthChecks, redisCheck{client: client})

	case config.SessionBackendPostgres:
		db, err := ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		infra.DB = db
		if cfg.Postgres.RunMigrationsOnStart {
			if err = RunMigrations(ctx, db, logger); err != nil {
				infra.Close(ctx, logger)
				return nil, err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
		repo := data.NewSessionRepo(db)
		infra.Persistence = repo
		infra.Purger = repo
		infra.HealthChecks = append(infra.HealthChecks, dbCheck{db: db})

	case config.SessionBackendFile:
		path := cfg.Session.FilePath
		if path == "" {
			p, err := filestore.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		logger.WarnContext(ctx, "file session backend is single-replica only", "path", path)
		infra.Persistence = filestore.NewSessionFile(path)

	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}

	return infra, nil
}

// Close releases every open connection. It is safe to call on a partially built value.
func (i *Infrastructure) Close(ctx context.Context, logger *slog.Logger) {
	if i == nil {
		return
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", err)
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			logger.ErrorContext(ctx, "close database failed", "error", err)
		}
	}
}

type redisCheck struct{ client redis.UniversalClient }

func (redisCheck) Name() string { return "redis" }

func (c redisCheck) Health(ctx context.Context) error { return c.client.Ping(ctx).Err() }

type dbCheck struct{ db *sql.DB }

func (dbCheck) Name() string { return "postgres" }

func (c dbCheck) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (i *Infrastructure) healthChecks() []httpx.HealthCheck {
	if i == nil {
		return nil
	}
	return i.HealthChecks
}
