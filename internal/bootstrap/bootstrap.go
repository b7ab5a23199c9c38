// Package bootstrap assembles runtime dependencies from configuration:
// the status store backend, Redis, the mail sender and the run lock.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/config"
	"github.com/sungwon/scheduled-mailer/internal/dispatch"
	"github.com/sungwon/scheduled-mailer/internal/mailer"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
	"github.com/sungwon/scheduled-mailer/internal/storage"
	"github.com/sungwon/scheduled-mailer/internal/storage/memory"
	"github.com/sungwon/scheduled-mailer/internal/storage/sqlite"
)

// Backend is an opened status store together with its health check and
// shutdown hook.
type Backend struct {
	Store  scheduling.Store
	Driver string

	ping  func(ctx context.Context) error
	close func()
}

// Ping reports whether the backend is reachable. The memory backend is
// always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenStore opens the backend selected by cfg.Driver and applies the schema
// when cfg.AutoMigrate is set (sqlite always applies it).
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := storage.NewDB(ctx, storage.PoolConfig{
			URL:            cfg.URL,
			MinConns:       cfg.PoolMin,
			MaxConns:       cfg.PoolMax,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := storage.Migrate(ctx, db.Pool); err != nil {
				db.Close()
				return nil, err
			}
			log.Info().Msg("database migrations applied")
		}
		return &Backend{
			Store:  storage.NewStore(storage.New(db.Pool)),
			Driver: cfg.Driver,
			ping:   db.Ping,
			close:  db.Close,
		}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Store:  s,
			Driver: cfg.Driver,
			ping:   s.Ping,
			close: func() {
				if err := s.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to close sqlite store")
				}
			},
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; scheduled emails are lost on restart")
		return &Backend{Store: memory.NewStore(), Driver: cfg.Driver}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// NewRedis connects to Redis. It returns a nil client when no address is
// configured.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewSender builds the configured mail sender.
func NewSender(cfg mailer.Config) (mailer.Sender, error) {
	return mailer.New(cfg, mailer.NewHTTPClient(cfg.Timeout))
}

// NewRunLock returns a Redis run lock, or an in-process lock when client is
// nil.
func NewRunLock(client *redis.Client, cfg dispatch.Config, log zerolog.Logger) dispatch.RunLock {
	if client == nil {
		log.Warn().Msg("redis not configured; dispatcher runs are only locked within this process")
		return dispatch.NewLocalLock()
	}
	d := dispatch.DefaultConfig()
	key, ttl := cfg.LockKey, cfg.LockTTL
	if key == "" {
		key = d.LockKey
	}
	if ttl <= 0 {
		ttl = d.LockTTL
	}
	return dispatch.NewRedisLock(client, key, ttl)
}
