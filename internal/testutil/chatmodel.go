// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is a scripted model.ToolCallingChatModel. Each Generate call pops
// the next reply; Calls records the prompts it received.
type ChatModel struct {
	mu      sync.Mutex
	replies []Reply
	Calls   [][]*schema.Message
}

// Reply is either a message or an error.
type Reply struct {
	Message *schema.Message
	Err     error
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)

func NewChatModel(replies ...Reply) *ChatModel {
	return &ChatModel{replies: replies}
}

// ToolCallReply answers with a single call of tool carrying args.
func ToolCallReply(tool, args string) Reply {
	return Reply{Message: &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: schema.FunctionCall{Name: tool, Arguments: args},
		}},
	}}
}

// TextReply answers with plain assistant text.
func TextReply(text string) Reply {
	return Reply{Message: schema.AssistantMessage(text, nil)}
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, input)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.Message, r.Err
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
