package agent

import (
	"context"
	"errors"
)

type conversationKeyContext struct{}

const defaultConversationKey = "default"

// WithConversationKey routes agent runs on ctx to one conversation.
func WithConversationKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, conversationKeyContext{}, key)
}

func ConversationKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(conversationKeyContext{}).(string)
	return key, ok && key != ""
}

func conversationKeyOrDefault(ctx context.Context) (string, bool) {
	if key, ok := ConversationKeyFromContext(ctx); ok {
		return key, true
	}
	return defaultConversationKey, true
}

var errNoKey = errors.New("conversation key not found")

// Store scopes a Cache to a namespace and to the key carried by the context.
type Store[S any] struct {
	core      Cache[S]
	namespace string
	keyFn     func(ctx context.Context) (string, bool)
}

func NewStore[S any](core Cache[S], namespace string, keyFn func(ctx context.Context) (string, bool)) Store[S] {
	return Store[S]{
		core:      core,
		namespace: namespace,
		keyFn:     keyFn,
	}
}

func (c Store[S]) key(ctx context.Context) (string, bool) {
	key, exist := c.keyFn(ctx)
	if !exist {
		return "", false
	}
	return c.namespace + ":" + key, true
}

func (c Store[S]) Set(ctx context.Context, val S) error {
	key, ok := c.key(ctx)
	if !ok {
		return errNoKey
	}
	return c.core.Set(ctx, key, val)
}

func (c Store[S]) Get(ctx context.Context) (S, bool, error) {
	key, ok := c.key(ctx)
	if !ok {
		var zero S
		return zero, false, errNoKey
	}
	return c.core.Get(ctx, key)
}

func (c Store[S]) Del(ctx context.Context) error {
	key, ok := c.key(ctx)
	if !ok {
		return errNoKey
	}
	return c.core.Del(ctx, key)
}
