package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbxark/formfiller/dialogue"
	"github.com/tbxark/formfiller/extract"
	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/internal/metrics"
	"github.com/tbxark/formfiller/internal/telemetry"
	"github.com/tbxark/formfiller/patch"
	"github.com/tbxark/formfiller/route"
	"github.com/tbxark/formfiller/session"
	"github.com/tbxark/formfiller/types"
)

const (
	opStart    = "start"
	opContinue = "continue"
)

// Controller owns the turn lifecycle. It keeps no session state of its own;
// everything lives in the Store, and turns on one session are serialised
// through Store.Lock.
type Controller struct {
	store     session.Store
	extractor *extract.Extractor
	composer  dialogue.Composer
	fallback  dialogue.Composer
	ids       IDGenerator
	now       func() time.Time
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewController wires the collaborators. A nil composer uses the built-in
// question templates.
func NewController(store session.Store, extractor *extract.Extractor, composer dialogue.Composer, opts ...Option) *Controller {
	o := options{
		logger: log.WithComponent("flow"),
		now:    time.Now,
		ids:    UUIDv7(),
		tracer: telemetry.Tracer("formfiller/flow"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	fallback := &dialogue.LocalComposer{}
	if composer == nil {
		composer = fallback
	}
	return &Controller{
		store:     store,
		extractor: extractor,
		composer:  composer,
		fallback:  fallback,
		ids:       o.ids,
		now:       o.now,
		tracer:    o.tracer,
		logger:    o.logger,
	}
}

// Start validates the form, creates a session and runs its first turn.
// Nothing is stored when the form or the utterance is rejected.
func (c *Controller) Start(ctx context.Context, req StartRequest) (res *Result, err error) {
	begin := time.Now()
	ctx, span := c.tracer.Start(ctx, "flow.Start", trace.WithAttributes(attribute.String(telemetry.OperationKey, opStart)))
	defer func() { c.observe(span, opStart, res, err, begin) }()

	schema, err := types.NewFormSchema(req.Fields...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Utterance) == "" {
		return nil, types.ErrEmptyUtterance
	}
	id, err := c.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	state := types.NewSessionState(id, schema, c.now())
	if len(req.Values) > 0 {
		filled, _, mErr := patch.Merge(schema, state.Filled, req.Values, types.ProvenanceConfirmed)
		if mErr != nil {
			return nil, fmt.Errorf("%w: initial values: %w", types.ErrSchemaInvalid, mErr)
		}
		state.Filled = filled
	}
	return c.runTurn(ctx, state, req.Utterance)
}

// Continue runs one turn on an existing session.
func (c *Controller) Continue(ctx context.Context, req ContinueRequest) (res *Result, err error) {
	begin := time.Now()
	ctx, span := c.tracer.Start(ctx, "flow.Continue", trace.WithAttributes(
		attribute.String(telemetry.OperationKey, opContinue),
		attribute.String(telemetry.SessionIDKey, req.SessionID),
	))
	defer func() { c.observe(span, opContinue, res, err, begin) }()

	if strings.TrimSpace(req.Utterance) == "" {
		return nil, types.ErrEmptyUtterance
	}
	unlock, err := c.store.Lock(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	stored, err := c.store.Get(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, types.ErrSessionNotFound) {
			metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
		}
		return nil, err
	}
	if stored.IsComplete() {
		return nil, types.ErrSessionComplete
	}
	return c.runTurn(ctx, stored.Clone(), req.Utterance)
}

// runTurn mutates state, which must be a private copy, and persists it.
func (c *Controller) runTurn(ctx context.Context, state *types.SessionState, utterance string) (*Result, error) {
	ctx = log.ContextWithSessionID(ctx, state.SessionID)
	logger := log.WithContext(ctx, c.logger)

	prior := state.History
	focus := state.PendingFocus
	state.AppendTurn(types.SpeakerUser, utterance, c.now())

	extractionFailed := false
	candidates, err := c.extractor.Extract(ctx, &types.ExtractRequest{
		Schema:       state.Schema,
		History:      prior,
		Utterance:    utterance,
		PendingFocus: focus,
		Filled:       state.Filled,
	})
	if err != nil {
		extractionFailed = true
		candidates = nil
		metrics.ExtractionFailuresTotal.Inc()
		logger.Warn().Err(err).Str(log.FieldEvent, "extraction_failed").Msg("treating turn as no new information")
	}

	filled, ops, err := patch.Merge(state.Schema, state.Filled, candidates, types.ProvenanceExtracted)
	if err != nil {
		extractionFailed = true
		ops = nil
		logger.Warn().Err(err).Msg("discarding candidates that failed the merge policy")
	} else {
		state.Filled = filled
	}

	decision := route.Route(state.Schema, state.Filled)
	state.Settle(decision.Missing)
	state.Turns++

	question := ""
	if !decision.Complete() {
		question = c.compose(ctx, logger, state, decision)
		state.AppendTurn(types.SpeakerAgent, question, c.now())
	}
	state.UpdatedAt = c.now()

	if err := c.store.Put(ctx, state); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("put").Inc()
		if !errors.Is(err, types.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
		return nil, err
	}

	for _, op := range ops {
		metrics.FieldsFilledTotal.WithLabelValues(op.Op).Inc()
	}
	if decision.Complete() {
		metrics.CompletionsTotal.Inc()
	}
	logger.Info().
		Str(log.FieldStatus, string(state.Status)).
		Str(log.FieldFieldID, state.PendingFocus).
		Int("changes", len(ops)).
		Int("turn", state.Turns).
		Msg("turn processed")

	return &Result{
		SessionID:        state.SessionID,
		Status:           state.Status,
		Filled:           state.Values(),
		MissingRequired:  decision.Missing,
		PendingFocus:     state.PendingFocus,
		QuestionText:     question,
		Changes:          ops,
		ExtractionFailed: extractionFailed,
	}, nil
}

func (c *Controller) compose(ctx context.Context, logger zerolog.Logger, state *types.SessionState, decision route.Decision) string {
	field, _ := state.Schema.Field(decision.Next())
	req := &types.ComposeRequest{
		Schema:  state.Schema,
		Field:   field,
		History: state.History,
		Filled:  state.Filled,
		Missing: state.Schema.FieldsByID(decision.Missing),
	}
	question, err := c.composer.Compose(ctx, req)
	if err == nil && strings.TrimSpace(question) != "" {
		return question
	}
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldFieldID, field.FieldID).Msg("composer failed, using template")
	}
	question, _ = c.fallback.Compose(ctx, req)
	return question
}

func (c *Controller) observe(span trace.Span, op string, res *Result, err error, begin time.Time) {
	defer span.End()
	outcome := "error"
	if err == nil && res != nil {
		outcome = string(res.Status)
		span.SetAttributes(telemetry.TurnAttributes(res.SessionID, outcome, res.PendingFocus,
			len(res.MissingRequired), len(res.Changes), res.ExtractionFailed)...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveTurn(op, outcome, time.Since(begin))
}

// Get returns the stored session, including its full history.
func (c *Controller) Get(ctx context.Context, id string) (*types.SessionState, error) {
	return c.store.Get(ctx, id)
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	unlock, err := c.store.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer unlock()
	return c.store.Delete(ctx, id)
}

func (c *Controller) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}
