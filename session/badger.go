package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tbxark/formfiller/types"
)

const badgerSessionPrefix = "sess:"

// BadgerConfig selects the on-disk directory, or an in-memory database.
type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// BadgerStore keeps sessions under "sess:<id>" keys with an optional TTL.
// Locks are process local.
type BadgerStore struct {
	db    *badger.DB
	ttl   time.Duration
	locks *keyedLocker
}

func OpenBadgerStore(cfg BadgerConfig, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if cfg.Path == "" {
		return nil, errors.New("badger: path is required")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, ttl: ttl, locks: newKeyedLocker()}, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) (*types.SessionState, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerSessionPrefix + id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("badger get", err)
	}
	return decodeState(data)
}

func (s *BadgerStore) Put(ctx context.Context, state *types.SessionState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(badgerSessionPrefix+state.SessionID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return unavailable("badger set", err)
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	key := []byte(badgerSessionPrefix + id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.ErrSessionNotFound
	}
	if err != nil {
		return unavailable("badger delete", err)
	}
	return nil
}

func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerSessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), badgerSessionPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("badger list", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *BadgerStore) Lock(ctx context.Context, id string) (func(), error) {
	return s.locks.Lock(ctx, id)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
