package intent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/formfiller/structured"
)

const (
	recognizeIntentToolName        = "recognize_intent"
	recognizeIntentToolDescription = "Decide whether the user wants to abandon the form or keeps filling it."
)

// DefaultIntentSystemPromptTemplate may contain a single "%s" placeholder for the tool name.
const DefaultIntentSystemPromptTemplate = `
You are helping a form-filling assistant understand the user's latest message.

Read the assistant's last question together with the user's answer and choose one intent:
- cancel: the user clearly wants to abandon or stop filling the form ("cancel", "forget it", "I don't want to register anymore"). A plain "no" to a question is not cancel.
- fill: anything else, including answers, corrections, partial answers and small talk.

Call the '%s' tool with the result.
`

type intentOutput struct {
	Intent Intent `json:"intent" jsonschema:"required,enum=cancel,enum=fill,description=The user's intent"`
}

type ToolBasedRecognizer struct {
	chain *structured.Chain[*Request, intentOutput]
}

type recognizerOptions struct {
	systemPromptTemplate string
}

type RecognizerOption func(*recognizerOptions)

func WithIntentSystemPromptTemplate(tpl string) RecognizerOption {
	return func(o *recognizerOptions) {
		o.systemPromptTemplate = tpl
	}
}

func NewToolBasedRecognizer(chatModel model.ToolCallingChatModel, opts ...RecognizerOption) (*ToolBasedRecognizer, error) {
	o := recognizerOptions{systemPromptTemplate: DefaultIntentSystemPromptTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	systemPrompt := fmt.Sprintf(o.systemPromptTemplate, recognizeIntentToolName)
	chain, err := structured.NewChain[*Request, intentOutput](
		chatModel,
		func(ctx context.Context, req *Request) ([]*schema.Message, error) {
			user := fmt.Sprintf("# Latest user message:\n%s", req.Utterance)
			if req.LastQuestion != "" {
				user = fmt.Sprintf("# Assistant asked:\n%s\n\n%s", req.LastQuestion, user)
			}
			return []*schema.Message{
				schema.SystemMessage(systemPrompt),
				schema.UserMessage(user),
			}, nil
		},
		recognizeIntentToolName,
		recognizeIntentToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedRecognizer{chain: chain}, nil
}

func (r *ToolBasedRecognizer) RecognizeIntent(ctx context.Context, req *Request) (Intent, error) {
	result, err := r.chain.Invoke(ctx, req)
	if err != nil {
		return Fill, err
	}
	switch result.Intent {
	case Cancel, Fill:
		return result.Intent, nil
	case "":
		return Fill, fmt.Errorf("empty intent returned by %s", recognizeIntentToolName)
	default:
		return Fill, fmt.Errorf("unknown intent %q returned by %s", result.Intent, recognizeIntentToolName)
	}
}
