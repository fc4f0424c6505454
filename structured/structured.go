// Package structured gets typed output from a chat model by forcing a single tool call.
package structured

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// PromptBuilder renders the messages sent to the model for one input.
type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

// Chain turns a TInput into a TOutput with one forced call of ToolInfo.
type Chain[TInput, TOutput any] struct {
	PromptBuilder PromptBuilder[TInput]
	ChatModel     model.ToolCallingChatModel
	ToolInfo      *schema.ToolInfo
	// Codec decodes the tool arguments. Defaults to sonic.ConfigDefault.
	Codec sonic.API
}

// NewChain derives the tool parameters from the TOutput struct.
func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
) (*Chain[TInput, TOutput], error) {
	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("reflect %s parameters: %w", toolName, err)
	}
	return NewChainWithToolInfo[TInput, TOutput](chatModel, promptBuilder, toolInfo)
}

// NewChainWithToolInfo uses a tool description built by the caller, for
// parameters that are only known at runtime.
func NewChainWithToolInfo[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolInfo *schema.ToolInfo,
) (*Chain[TInput, TOutput], error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	if toolInfo == nil || toolInfo.Name == "" {
		return nil, errors.New("tool info must have a name")
	}
	return &Chain[TInput, TOutput]{
		PromptBuilder: promptBuilder,
		ChatModel:     chatModel,
		ToolInfo:      toolInfo,
		Codec:         sonic.ConfigDefault,
	}, nil
}

// ErrNoToolCall is returned when the model answered without calling the bound tool.
var ErrNoToolCall = errors.New("model response carries no tool call")

func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	response, err := s.ChatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	codec := s.Codec
	if codec == nil {
		codec = sonic.ConfigDefault
	}
	return decodeToolCall[TOutput](codec, response, s.ToolInfo.Name)
}

func decodeToolCall[TOutput any](codec sonic.API, msg *schema.Message, toolName string) (*TOutput, error) {
	if msg == nil {
		return nil, ErrNoToolCall
	}
	if len(msg.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoToolCall, msg.Content)
	}
	call := msg.ToolCalls[0]
	if name := call.Function.Name; name != "" && name != toolName {
		return nil, fmt.Errorf("model called %q, want %q", name, toolName)
	}
	out := new(TOutput)
	if err := codec.UnmarshalFromString(call.Function.Arguments, out); err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", toolName, err)
	}
	return out, nil
}

func (s *Chain[TInput, TOutput]) GetToolInfo() *schema.ToolInfo {
	return s.ToolInfo
}
