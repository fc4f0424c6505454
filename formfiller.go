// Package formfiller assembles the form-filling engine: an extractor, a
// question composer and a session store behind one turn controller.
package formfiller

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"

	"github.com/tbxark/formfiller/dialogue"
	"github.com/tbxark/formfiller/extract"
	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/session"
	"github.com/tbxark/formfiller/types"
)

type Options struct {
	// Lang is the language model-composed questions are written in.
	Lang           string
	ExtractTimeout time.Duration
	// HistoryWindow is how many past turns are shown to the model.
	HistoryWindow int
	// RatePerSecond caps model extraction calls. Zero means unlimited.
	RatePerSecond float64
	Burst         int
	FlowOptions   []flow.Option
}

// Filler runs turns through a flow.Controller and reports each one to the
// eino callback handlers attached to the context.
type Filler struct {
	controller *flow.Controller
}

func New(store session.Store, inferer extract.Inferer, composer dialogue.Composer, opts Options) *Filler {
	var extractOpts []extract.Option
	if opts.ExtractTimeout > 0 {
		extractOpts = append(extractOpts, extract.WithTimeout(opts.ExtractTimeout))
	}
	if opts.RatePerSecond > 0 {
		inferer = extract.NewRateLimitedInferer(inferer, opts.RatePerSecond, opts.Burst)
	}
	return &Filler{
		controller: flow.NewController(store, extract.NewExtractor(inferer, extractOpts...), composer, opts.FlowOptions...),
	}
}

// NewToolBased uses chatModel for both extraction and questions. A failed
// model call falls back to the rule based extractor, and the controller
// falls back to template questions.
func NewToolBased(chatModel model.ToolCallingChatModel, store session.Store, opts Options) (*Filler, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	var (
		inferOpts   []extract.InfererOption
		composeOpts []dialogue.ComposerOption
	)
	if opts.HistoryWindow > 0 {
		inferOpts = append(inferOpts, extract.WithHistoryTrimmer(types.KeepLastNTrimmer{N: opts.HistoryWindow}))
		composeOpts = append(composeOpts, dialogue.WithComposeHistoryTrimmer(types.KeepLastNTrimmer{N: opts.HistoryWindow}))
	}
	if opts.Lang != "" {
		composeOpts = append(composeOpts, dialogue.WithComposeLang(opts.Lang))
	}
	inferer := extract.NewFailbackInferer(
		extract.NewToolBasedInferer(chatModel, inferOpts...),
		extract.NewLocalInferer(),
	)
	composer := dialogue.NewToolBasedComposer(chatModel, composeOpts...)
	return New(store, inferer, composer, opts), nil
}

// NewLocal runs without a model: rule based extraction and template questions.
func NewLocal(store session.Store, opts Options) *Filler {
	opts.RatePerSecond = 0
	return New(store, extract.NewLocalInferer(), &dialogue.LocalComposer{MentionRemaining: true}, opts)
}

func (f *Filler) Controller() *flow.Controller {
	return f.controller
}

func (f *Filler) Start(ctx context.Context, req flow.StartRequest) (*flow.Result, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "FormFiller", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"operation": "start",
		"utterance": req.Utterance,
		"fields":    len(req.Fields),
	})
	res, err := f.controller.Start(ctx, req)
	return f.finish(ctx, res, err)
}

func (f *Filler) Continue(ctx context.Context, req flow.ContinueRequest) (*flow.Result, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "FormFiller", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"operation":  "continue",
		"session_id": req.SessionID,
		"utterance":  req.Utterance,
	})
	res, err := f.controller.Continue(ctx, req)
	return f.finish(ctx, res, err)
}

func (f *Filler) finish(ctx context.Context, res *flow.Result, err error) (*flow.Result, error) {
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}
	callbacks.OnEnd(ctx, map[string]any{
		"session_id": res.SessionID,
		"status":     string(res.Status),
		"completed":  res.Status == types.StatusComplete,
		"result":     res,
	})
	return res, nil
}

func (f *Filler) Get(ctx context.Context, id string) (*types.SessionState, error) {
	return f.controller.Get(ctx, id)
}

func (f *Filler) Delete(ctx context.Context, id string) error {
	return f.controller.Delete(ctx, id)
}

func (f *Filler) List(ctx context.Context) ([]string, error) {
	return f.controller.List(ctx)
}
