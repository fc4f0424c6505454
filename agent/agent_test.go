package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formfiller/extract"
	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/intent"
	"github.com/tbxark/formfiller/session"
	"github.com/tbxark/formfiller/types"
)

var registration = []types.FieldSpec{
	{FieldID: "name", Label: "Name", Required: true},
	{FieldID: "email", Label: "Email", Type: types.FieldEmail, Required: true},
	{FieldID: "phone", Label: "Phone", Type: types.FieldPhone},
}

func newAgent(t *testing.T, opts ...Option) (*Agent, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	controller := flow.NewController(store,
		extract.NewExtractor(extract.NewLocalInferer()),
		nil,
		flow.WithLogger(zerolog.Nop()),
	)
	a, err := NewAgent("Registration", "Collects contact details", registration, controller,
		append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
	require.NoError(t, err)
	return a, store
}

func run(t *testing.T, ctx context.Context, a *Agent, text string) (*adk.AgentEvent, string) {
	t.Helper()
	iter := a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage(text)}})
	event, ok := iter.Next()
	require.True(t, ok)
	require.NoError(t, event.Err)
	msg, err := event.Output.MessageOutput.GetMessage()
	require.NoError(t, err)
	_, more := iter.Next()
	assert.False(t, more)
	return event, msg.Content
}

func TestAgent_Conversation(t *testing.T) {
	a, store := newAgent(t)
	ctx := WithConversationKey(context.Background(), "chat-1")

	event, reply := run(t, ctx, a, "My name is John Smith")
	assert.Equal(t, "What is your email?", reply)
	res, ok := event.Output.CustomizedOutput.(*flow.Result)
	require.True(t, ok)
	assert.Equal(t, types.StatusAwaitingInfo, res.Status)
	firstSession := res.SessionID

	event, reply = run(t, ctx, a, "john@example.com")
	assert.Equal(t, "Thanks, the form is complete.\n- Name: John Smith\n- Email: john@example.com", reply)
	res = event.Output.CustomizedOutput.(*flow.Result)
	assert.Equal(t, firstSession, res.SessionID)
	assert.Equal(t, types.StatusComplete, res.Status)

	// Completed forms are unbound, so the next message opens a new session.
	event, _ = run(t, ctx, a, "hello again")
	res = event.Output.CustomizedOutput.(*flow.Result)
	assert.NotEqual(t, firstSession, res.SessionID)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestAgent_ConversationsAreIsolated(t *testing.T) {
	a, _ := newAgent(t)
	one := WithConversationKey(context.Background(), "one")
	two := WithConversationKey(context.Background(), "two")

	e1, _ := run(t, one, a, "My name is Ada")
	e2, _ := run(t, two, a, "My name is Grace")
	assert.NotEqual(t,
		e1.Output.CustomizedOutput.(*flow.Result).SessionID,
		e2.Output.CustomizedOutput.(*flow.Result).SessionID)

	e1, _ = run(t, one, a, "ada@example.com")
	assert.Equal(t, "Ada", e1.Output.CustomizedOutput.(*flow.Result).Filled["name"])
}

func TestAgent_StaleBindingStartsOver(t *testing.T) {
	a, store := newAgent(t)
	ctx := context.Background()

	event, _ := run(t, ctx, a, "My name is Ada")
	first := event.Output.CustomizedOutput.(*flow.Result).SessionID
	require.NoError(t, store.Delete(ctx, first))

	event, _ = run(t, ctx, a, "My name is Grace")
	res := event.Output.CustomizedOutput.(*flow.Result)
	assert.NotEqual(t, first, res.SessionID)
	assert.Equal(t, "Grace", res.Filled["name"])
}

func TestAgent_RedisBindings(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a, _ := newAgent(t, WithBindingCache(NewRedisCache[string](client, 0)))
	ctx := WithConversationKey(context.Background(), "chat-9")

	event, _ := run(t, ctx, a, "My name is Ada")
	sessionID := event.Output.CustomizedOutput.(*flow.Result).SessionID

	stored, err := mr.Get("formfiller:conversation:chat-9")
	require.NoError(t, err)
	assert.Equal(t, `"`+sessionID+`"`, stored)
}

func TestAgent_Submitter(t *testing.T) {
	var submitted map[string]string
	a, _ := newAgent(t, WithSubmitter(SubmitterFunc(func(ctx context.Context, sessionID string, values map[string]string) error {
		submitted = values
		return nil
	})))
	ctx := WithConversationKey(context.Background(), "submit")

	run(t, ctx, a, "My name is Ada")
	assert.Nil(t, submitted)
	run(t, ctx, a, "ada@example.com")
	assert.Equal(t, map[string]string{"name": "Ada", "email": "ada@example.com"}, submitted)
}

func TestAgent_SubmitterFailure(t *testing.T) {
	a, _ := newAgent(t, WithSubmitter(SubmitterFunc(func(context.Context, string, map[string]string) error {
		return errors.New("crm offline")
	})))
	ctx := WithConversationKey(context.Background(), "submit-fail")

	iter := a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{
		schema.UserMessage("My name is Ada and my email is ada@example.com"),
	}})
	event, ok := iter.Next()
	require.True(t, ok)
	require.Error(t, event.Err)
	assert.Contains(t, event.Err.Error(), "crm offline")
}

func TestAgent_Cancel(t *testing.T) {
	a, store := newAgent(t, WithIntentRecognizer(intent.NewLocalRecognizer()))
	ctx := WithConversationKey(context.Background(), "cancel")

	event, _ := run(t, ctx, a, "My name is Ada")
	first := event.Output.CustomizedOutput.(*flow.Result).SessionID

	event, reply := run(t, ctx, a, "never mind")
	assert.Equal(t, cancelledReply, reply)
	assert.Nil(t, event.Output.CustomizedOutput)
	_, err := store.Get(ctx, first)
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	// "stop" only cancels a form in progress; here it opens a new one
	event, reply = run(t, ctx, a, "stop")
	res := event.Output.CustomizedOutput.(*flow.Result)
	assert.NotEqual(t, first, res.SessionID)
	assert.Equal(t, "Could you tell me your name?", reply)
}

func TestAgent_NoMessages(t *testing.T) {
	a, _ := newAgent(t)
	iter := a.Run(context.Background(), &adk.AgentInput{})
	event, ok := iter.Next()
	require.True(t, ok)
	assert.Error(t, event.Err)
}

func TestNewAgent_InvalidFields(t *testing.T) {
	_, err := NewAgent("x", "y", []types.FieldSpec{{FieldID: ""}}, nil)
	assert.ErrorIs(t, err, types.ErrSchemaInvalid)
}

func TestStore_Namespacing(t *testing.T) {
	core := NewMemoryCache[string]()
	s := NewStore[string](core, "ns", ConversationKeyFromContext)

	assert.Error(t, s.Set(context.Background(), "x"))

	ctx := WithConversationKey(context.Background(), "k")
	require.NoError(t, s.Set(ctx, "v"))
	v, ok, err := core.Get(ctx, "ns:k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Del(ctx))
	_, ok, err = s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
