package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/marketplace-backend/internal/platform/redis"
	"github.com/yungbote/marketplace-backend/internal/data/db"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
)

type Clients struct {
	Postgres *db.PostgresService
	Redis    *goredis.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	pg, err := db.NewPostgresService(cfg.DB, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}
	if err := db.Migrate(pg.DB()); err != nil {
		_ = pg.Close()
		return Clients{}, fmt.Errorf("migrate: %w", err)
	}

	out := Clients{Postgres: pg}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			if cfg.Ledger.Backend == LedgerRedis {
				_ = pg.Close()
				return Clients{}, err
			}
			log.Warn("Redis unavailable; continuing without it", "error", err)
		} else {
			out.Redis = rdb
		}
	}
	return out, nil
}

func (c Clients) DB() *gorm.DB {
	if c.Postgres == nil {
		return nil
	}
	return c.Postgres.DB()
}

func (c Clients) Close(log *logger.Logger) {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn("Redis close failed", "error", err)
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			log.Warn("Database close failed", "error", err)
		}
	}
}
