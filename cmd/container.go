// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis) and composes the
// bounded-context containers. This is the only place that knows about all
// modules.
package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/veridian-id/veridian/pkg/asyncx"
	"github.com/veridian-id/veridian/pkg/config"
	"github.com/veridian-id/veridian/pkg/iam/iamcontainer"
	"github.com/veridian-id/veridian/pkg/logx"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client

	IAM *iamcontainer.Container

	stopSweeper context.CancelFunc
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()
	c.startSweeper()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, Redis
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("  ✅ Redis connected")

	logx.Info("✅ Infrastructure initialized")
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	iam, err := iamcontainer.New(iamcontainer.Deps{
		DB:    c.DB,
		Redis: c.Redis,
		Cfg:   c.Config,
	})
	if err != nil {
		logx.Fatalf("Failed to initialize identity container: %v", err)
	}
	c.IAM = iam
}

// startSweeper runs the periodic cleanup of expired refresh tokens. The
// ledger only ever grows otherwise; expired rows are dead weight.
func (c *Container) startSweeper() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopSweeper = cancel

	asyncx.DoCtx(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := c.IAM.RefreshService.PurgeExpired(ctx, time.Now().UTC())
				if err != nil {
					logx.Errorf("❌ Refresh token sweep failed: %v", err)
					continue
				}
				if deleted > 0 {
					logx.Infof("🧹 Swept %d expired refresh tokens", deleted)
				}
			}
		}
	})
}

// Cleanup releases all infrastructure resources.
func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.stopSweeper != nil {
		c.stopSweeper()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}

	logx.Info("✅ Cleanup complete")
}
