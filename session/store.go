// Package session persists SessionState records between turns.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/tbxark/formfiller/types"
)

// Store is a keyed repository of sessions. Get returns types.ErrSessionNotFound
// for unknown ids; backend failures wrap types.ErrStoreUnavailable.
//
// Lock serialises turns on one session id. The returned function releases the
// lock and is safe to call more than once.
type Store interface {
	Get(ctx context.Context, id string) (*types.SessionState, error)
	Put(ctx context.Context, state *types.SessionState) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Lock(ctx context.Context, id string) (func(), error)
	Close() error
}

func encodeState(state *types.SessionState) ([]byte, error) {
	if state == nil || strings.TrimSpace(state.SessionID) == "" {
		return nil, fmt.Errorf("session state must carry an id")
	}
	return sonic.Marshal(state)
}

func decodeState(data []byte) (*types.SessionState, error) {
	var state types.SessionState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: decode session: %w", types.ErrStoreUnavailable, err)
	}
	if state.Filled == nil {
		state.Filled = map[string]types.FilledValue{}
	}
	return &state, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStoreUnavailable, op, err)
}
