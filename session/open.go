package session

import (
	"context"
	"fmt"
	"time"

	"github.com/tbxark/formfiller/internal/log"
)

var logger = log.WithComponent("session")

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSqlite = "sqlite"
	BackendBadger = "badger"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend string `yaml:"backend"`
	// TTL expires idle sessions. Only the redis and badger backends support
	// it; memory and sqlite keep sessions until they are deleted.
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig  `yaml:"redis"`
	Sqlite SqliteConfig `yaml:"sqlite"`
	Badger BadgerConfig `yaml:"badger"`
}

// Open creates the Store named by cfg.Backend. An empty backend means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.TTL > 0 && !supportsTTL(cfg.Backend) {
		logger.Warn().Str("backend", cfg.Backend).Dur("ttl", cfg.TTL).
			Msg("session ttl is not supported by this backend, sessions never expire")
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return OpenRedisStore(ctx, cfg.Redis, cfg.TTL)
	case BackendSqlite:
		return OpenSqliteStore(cfg.Sqlite)
	case BackendBadger:
		return OpenBadgerStore(cfg.Badger, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func supportsTTL(backend string) bool {
	return backend == BackendRedis || backend == BackendBadger
}
