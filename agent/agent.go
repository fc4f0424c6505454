// Package agent exposes a form as an eino adk.Agent. Each conversation key
// is bound to one form session until the form completes.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/intent"
	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

var _ adk.Agent = (*Agent)(nil)

// Turner is the part of flow.Controller the agent drives.
type Turner interface {
	Start(ctx context.Context, req flow.StartRequest) (*flow.Result, error)
	Continue(ctx context.Context, req flow.ContinueRequest) (*flow.Result, error)
	Get(ctx context.Context, id string) (*types.SessionState, error)
	Delete(ctx context.Context, id string) error
}

const cancelledReply = "Okay, I've cancelled the form. Send a new message whenever you want to start again."

// Submitter receives the values of every completed form.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, values map[string]string) error
}

type SubmitterFunc func(ctx context.Context, sessionID string, values map[string]string) error

func (f SubmitterFunc) Submit(ctx context.Context, sessionID string, values map[string]string) error {
	return f(ctx, sessionID, values)
}

type Agent struct {
	name        string
	description string
	schema      *types.FormSchema
	turner      Turner
	bindings    Store[string]
	submitter   Submitter
	recognizer  intent.Recognizer
	logger      zerolog.Logger
}

type agentOptions struct {
	cache      Cache[string]
	submitter  Submitter
	recognizer intent.Recognizer
	logger     zerolog.Logger
}

type Option func(*agentOptions)

// WithBindingCache keeps conversation to session bindings in cache instead of process memory.
func WithBindingCache(cache Cache[string]) Option {
	return func(o *agentOptions) {
		if cache != nil {
			o.cache = cache
		}
	}
}

// WithSubmitter hands completed forms to s. A failed submission fails the
// turn and the next message starts a new form.
func WithSubmitter(s Submitter) Option {
	return func(o *agentOptions) {
		o.submitter = s
	}
}

// WithIntentRecognizer lets users abandon a form in progress. Without it
// every message is treated as an answer.
func WithIntentRecognizer(r intent.Recognizer) Option {
	return func(o *agentOptions) {
		o.recognizer = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *agentOptions) {
		o.logger = logger
	}
}

func NewAgent(name, description string, fields []types.FieldSpec, turner Turner, opts ...Option) (*Agent, error) {
	schema, err := types.NewFormSchema(fields...)
	if err != nil {
		return nil, err
	}
	o := agentOptions{
		cache:  NewMemoryCache[string](),
		logger: log.WithComponent("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Agent{
		name:        name,
		description: description,
		schema:      schema,
		turner:      turner,
		bindings:    NewStore(o.cache, "formfiller:conversation", conversationKeyOrDefault),
		submitter:   o.submitter,
		recognizer:  o.recognizer,
		logger:      o.logger,
	}, nil
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

// Run answers the last message of input. The event carries the reply text and,
// unless the form was cancelled, the *flow.Result of the turn as customized
// output.
func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 || input.Messages[len(input.Messages)-1] == nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		res, reply, err := a.respond(ctx, input.Messages[len(input.Messages)-1].Content)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("form turn failed: %w", err),
			})
			return
		}
		event := &adk.AgentEvent{
			AgentName: a.name,
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message: &schema.Message{
						Role:    schema.Assistant,
						Content: reply,
					},
					Role: schema.Assistant,
				},
			},
		}
		if res != nil {
			event.Output.CustomizedOutput = res
		}
		gen.Send(event)
	}()
	return iter
}

func (a *Agent) respond(ctx context.Context, text string) (*flow.Result, string, error) {
	sessionID, bound, err := a.bindings.Get(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load conversation binding: %w", err)
	}

	var res *flow.Result
	if bound && a.wantsCancel(ctx, sessionID, text) {
		if err := a.turner.Delete(ctx, sessionID); err != nil && !errors.Is(err, types.ErrSessionNotFound) {
			return nil, "", fmt.Errorf("cancel form: %w", err)
		}
		if err := a.bindings.Del(ctx); err != nil {
			return nil, "", fmt.Errorf("drop conversation binding: %w", err)
		}
		a.logger.Info().Str(log.FieldSessionID, sessionID).Msg("form cancelled")
		return nil, cancelledReply, nil
	}
	if bound {
		res, err = a.turner.Continue(ctx, flow.ContinueRequest{SessionID: sessionID, Utterance: text})
		switch {
		case errors.Is(err, types.ErrSessionNotFound), errors.Is(err, types.ErrSessionComplete):
			a.logger.Debug().Str(log.FieldSessionID, sessionID).Msg("stale binding, starting a new form")
			bound = false
		case err != nil:
			return nil, "", err
		}
	}
	if !bound {
		res, err = a.turner.Start(ctx, flow.StartRequest{Utterance: text, Fields: a.schema.Fields()})
		if err != nil {
			return nil, "", err
		}
	}

	if res.Status == types.StatusComplete {
		if a.submitter != nil {
			if err := a.submitter.Submit(ctx, res.SessionID, res.Filled); err != nil {
				return nil, "", fmt.Errorf("submit form: %w", err)
			}
		}
		if err := a.bindings.Del(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldSessionID, res.SessionID).Msg("failed to drop conversation binding")
		}
		return res, a.summary(res), nil
	}
	if err := a.bindings.Set(ctx, res.SessionID); err != nil {
		return nil, "", fmt.Errorf("save conversation binding: %w", err)
	}
	return res, res.QuestionText, nil
}

func (a *Agent) wantsCancel(ctx context.Context, sessionID, text string) bool {
	if a.recognizer == nil {
		return false
	}
	req := &intent.Request{Utterance: text}
	if state, err := a.turner.Get(ctx, sessionID); err == nil {
		req.LastQuestion = state.LastQuestion()
	}
	in, err := a.recognizer.RecognizeIntent(ctx, req)
	if err != nil {
		a.logger.Warn().Err(err).Str(log.FieldSessionID, sessionID).Msg("intent recognition failed, treating message as an answer")
		return false
	}
	return in == intent.Cancel
}

func (a *Agent) summary(res *flow.Result) string {
	var sb strings.Builder
	sb.WriteString("Thanks, the form is complete.")
	for _, f := range a.schema.Fields() {
		v, ok := res.Filled[f.FieldID]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n- %s: %s", f.DisplayName(), v))
	}
	return sb.String()
}
