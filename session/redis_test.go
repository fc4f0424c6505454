package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formfiller/types"
)

func TestRedisStore_KeyLayout(t *testing.T) {
	mr, store := newMiniRedisStore(t)
	require.NoError(t, store.Put(context.Background(), newState(t, "abc")))
	assert.True(t, mr.Exists("formfiller:session:abc"))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, store := newMiniRedisStore(t, WithRedisTTL(time.Minute), WithRedisPrefix("test:"))
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, newState(t, "abc")))
	assert.Equal(t, time.Minute, mr.TTL("test:session:abc"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestRedisStore_LockReleaseOnlyOwnToken(t *testing.T) {
	mr, store := newMiniRedisStore(t, WithRedisLockTTL(time.Second))
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, mr.Exists("formfiller:lock:abc"))

	// Expired lock taken over by another holder must survive the stale release.
	mr.FastForward(2 * time.Second)
	second, err := store.Lock(ctx, "abc")
	require.NoError(t, err)
	unlock()
	assert.True(t, mr.Exists("formfiller:lock:abc"))

	second()
	assert.False(t, mr.Exists("formfiller:lock:abc"))
}

func TestRedisStore_LockRenewedWhileHeld(t *testing.T) {
	mr, store := newMiniRedisStore(t, WithRedisLockTTL(300*time.Millisecond))
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "s1")
	require.NoError(t, err)

	// Let a turn run for several lock lifetimes; the holder keeps renewing.
	for i := 0; i < 5; i++ {
		mr.FastForward(200 * time.Millisecond)
		time.Sleep(250 * time.Millisecond)
	}
	require.True(t, mr.Exists("formfiller:lock:s1"))

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = store.Lock(waitCtx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("formfiller:lock:s1"))
	next, err := store.Lock(ctx, "s1")
	require.NoError(t, err)
	next()
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, store := newMiniRedisStore(t)
	mr.Close()

	ctx := context.Background()
	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.ErrorIs(t, store.Put(ctx, newState(t, "abc")), types.ErrStoreUnavailable)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	_, err = store.Lock(ctx, "abc")
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr, _ := newMiniRedisStore(t)
	s, err = Open(ctx, Config{Backend: BackendRedis, Redis: RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Backend: BackendBadger, Badger: BadgerConfig{InMemory: true}})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "etcd"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendSqlite})
	assert.Error(t, err)
}

func TestOpen_WarnsWhenTTLUnsupported(t *testing.T) {
	var buf bytes.Buffer
	prev := logger
	logger = zerolog.New(&buf)
	t.Cleanup(func() { logger = prev })

	s, err := Open(context.Background(), Config{Backend: BackendMemory, TTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.Contains(t, buf.String(), "session ttl is not supported")

	buf.Reset()
	s, err = Open(context.Background(), Config{Backend: BackendBadger, TTL: time.Hour, Badger: BadgerConfig{InMemory: true}})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Empty(t, buf.String())
}
