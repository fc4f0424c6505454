package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

const (
	DefaultRedisPrefix    = "formfiller:"
	defaultLockTTL        = 30 * time.Second
	defaultLockRetryDelay = 25 * time.Millisecond
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// RedisStore keeps sessions as sonic encoded strings under <prefix>session:<id>.
// Locks are SET NX PX keys released with a compare-and-delete script, so they
// hold across replicas sharing the same Redis. A held lock is renewed every
// third of its TTL until released, so a slow turn never loses it.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	lockTTL    time.Duration
	retryDelay time.Duration
	logger     zerolog.Logger
}

type RedisOption func(*RedisStore)

// WithRedisPrefix namespaces every key the store writes.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisTTL expires idle sessions. Each Put refreshes the expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisLockTTL bounds how long a crashed holder can block a session. Live
// holders keep renewing it.
func WithRedisLockTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		prefix:     DefaultRedisPrefix,
		lockTTL:    defaultLockTTL,
		retryDelay: defaultLockRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OpenRedisStore dials Redis and fails fast when it is unreachable.
func OpenRedisStore(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisStore(client,
		WithRedisPrefix(cfg.Prefix),
		WithRedisTTL(ttl),
		WithRedisLockTTL(cfg.LockTTL),
	), nil
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisStore) lockKey(id string) string {
	return s.prefix + "lock:" + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*types.SessionState, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("redis get", err)
	}
	return decodeState(data)
}

func (s *RedisStore) Put(ctx context.Context, state *types.SessionState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.sessionKey(state.SessionID), data, s.ttl).Err(); err != nil {
		return unavailable("redis set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return unavailable("redis del", err)
	}
	if n == 0 {
		return types.ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	prefix := s.sessionKey("")
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, unavailable("redis scan", err)
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	key := s.lockKey(id)
	token := uuid.NewString()
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, unavailable("redis lock", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.keepAlive(id, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseLockScript.Run(releaseCtx, s.client, []string{key}, token).Err()
		})
	}, nil
}

func (s *RedisStore) keepAlive(id, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := max(s.lockTTL/3, time.Millisecond)
	ttlMillis := max(s.lockTTL.Milliseconds(), 1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewLockScript.Run(ctx, s.client, []string{key}, token, ttlMillis).Int()
		cancel()
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str(log.FieldSessionID, id).Msg("session lock renewal failed")
		case n == 0:
			s.logger.Error().Str(log.FieldSessionID, id).Msg("session lock lost before release")
			return
		}
	}
}

// Ping reports whether Redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
