package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formfiller/internal/testutil"
	"github.com/tbxark/formfiller/types"
)

func TestToolBasedInferer_Infer(t *testing.T) {
	chatModel := testutil.NewChatModel(
		testutil.ToolCallReply(fillFieldsToolName, `{"name":"John Smith","email":"john@example.com","phone":null}`),
	)
	inferer := NewToolBasedInferer(chatModel)

	got, err := inferer.Infer(context.Background(), &types.ExtractRequest{
		Schema:    contactSchema(t),
		Utterance: "My name is John Smith and my email is john@example.com",
		History: []types.Turn{
			{Speaker: types.SpeakerAgent, Text: "What is your name?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "John Smith", "email": "john@example.com"}, got)

	require.Equal(t, 1, chatModel.CallCount())
	prompt := chatModel.Calls[0]
	require.Len(t, prompt, 2)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, fillFieldsToolName)
	assert.Contains(t, prompt[1].Content, "My name is John Smith")
	assert.Contains(t, prompt[1].Content, "What is your name?")
}

func TestToolBasedInferer_NonStringValues(t *testing.T) {
	s, err := types.NewFormSchema(
		types.FieldSpec{FieldID: "seats", Type: types.FieldNumber},
		types.FieldSpec{FieldID: "newsletter", Type: types.FieldCheckbox, Options: []string{"news", "offers"}},
		types.FieldSpec{FieldID: "agree"},
	)
	require.NoError(t, err)
	chatModel := testutil.NewChatModel(
		testutil.ToolCallReply(fillFieldsToolName, `{"seats":12,"newsletter":["news","offers"],"agree":true}`),
	)

	got, err := NewToolBasedInferer(chatModel).Infer(context.Background(), &types.ExtractRequest{
		Schema:    s,
		Utterance: "12 seats, both newsletters, and I agree",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"seats": "12", "newsletter": "news, offers", "agree": "true"}, got)
}

func TestToolBasedInferer_KeepsNumberDigits(t *testing.T) {
	s, err := types.NewFormSchema(
		types.FieldSpec{FieldID: "phone", Type: types.FieldPhone},
		types.FieldSpec{FieldID: "amount", Type: types.FieldNumber},
	)
	require.NoError(t, err)
	chatModel := testutil.NewChatModel(
		testutil.ToolCallReply(fillFieldsToolName, `{"phone":12345678901234567890,"amount":19.90}`),
	)

	got, err := NewToolBasedInferer(chatModel).Infer(context.Background(), &types.ExtractRequest{
		Schema:    s,
		Utterance: "call me on 12345678901234567890, it was 19.90",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"phone": "12345678901234567890", "amount": "19.90"}, got)
}

func TestToolBasedInferer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		reply testutil.Reply
	}{
		{name: "model error", reply: testutil.Reply{Err: errors.New("rate limited")}},
		{name: "no tool call", reply: testutil.TextReply("I could not find anything")},
		{name: "malformed arguments", reply: testutil.ToolCallReply(fillFieldsToolName, `{"name":`)},
		{name: "object value", reply: testutil.ToolCallReply(fillFieldsToolName, `{"name":{"first":"John"}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inferer := NewToolBasedInferer(testutil.NewChatModel(tt.reply))
			_, err := inferer.Infer(context.Background(), &types.ExtractRequest{
				Schema:    contactSchema(t),
				Utterance: "hi",
			})
			assert.Error(t, err)
		})
	}
}

func TestBuildToolInfo(t *testing.T) {
	s, err := types.NewFormSchema(
		types.FieldSpec{FieldID: "plan", Label: "Plan", Type: types.FieldSelect, Options: []string{"Basic", "Pro"}, Description: "Billing plan"},
		types.FieldSpec{FieldID: "email", Type: types.FieldEmail},
	)
	require.NoError(t, err)

	info := BuildToolInfo(s)
	assert.Equal(t, fillFieldsToolName, info.Name)
	assert.NotNil(t, info.ParamsOneOf)

	params := fieldParams(s)
	require.Len(t, params, 2)
	assert.Equal(t, schema.String, params["plan"].Type)
	assert.True(t, strings.Contains(params["plan"].Desc, "Billing plan"))
	assert.Equal(t, []string{"Basic", "Pro"}, params["plan"].Enum)
	assert.Empty(t, params["email"].Enum)
	assert.Contains(t, params["email"].Desc, "type: email")
}

func TestWithExtractSystemPromptTemplate(t *testing.T) {
	inferer := NewToolBasedInferer(testutil.NewChatModel(), WithExtractSystemPromptTemplate("call %s now"))
	assert.Equal(t, "call "+fillFieldsToolName+" now", inferer.systemPrompt)
}
