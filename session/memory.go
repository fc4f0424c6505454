package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tbxark/formfiller/types"
)

// MemoryStore keeps sessions in process. Records are cloned on the way in
// and out so callers never share maps with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.SessionState
	locks    *keyedLocker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.SessionState),
		locks:    newKeyedLocker(),
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*types.SessionState, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	return state.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, state *types.SessionState) error {
	if state == nil || state.SessionID == "" {
		return errors.New("session state must carry an id")
	}
	m.mu.Lock()
	m.sessions[state.SessionID] = state.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return types.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	return m.locks.Lock(ctx, id)
}

func (m *MemoryStore) Close() error {
	return nil
}
