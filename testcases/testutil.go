// Package testcases runs whole conversations against a real chat model.
// They are skipped unless FORMFILLER_RUN_LIVE_TESTS=1 and an API key is set
// through FORMFILLER_LLM_API_KEY or OPENAI_API_KEY.
package testcases

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/rs/zerolog"

	"github.com/tbxark/formfiller"
	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/session"
	"github.com/tbxark/formfiller/types"
)

var registrationFields = []types.FieldSpec{
	{FieldID: "name", Label: "Name", Required: true},
	{FieldID: "email", Label: "Email", Type: types.FieldEmail, Required: true},
	{FieldID: "phone", Label: "Phone", Type: types.FieldPhone},
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func InitChatModel(t *testing.T) *openai.ChatModel {
	t.Helper()
	if os.Getenv("FORMFILLER_RUN_LIVE_TESTS") != "1" {
		t.Skip("set FORMFILLER_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}
	apiKey := firstEnv("FORMFILLER_LLM_API_KEY", "OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("FORMFILLER_LLM_API_KEY is empty")
		return nil
	}
	model := firstEnv("FORMFILLER_LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: firstEnv("FORMFILLER_LLM_BASE_URL", "OPENAI_BASE_URL"),
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}

// NewTestFiller builds a model-backed filler over an in-memory store, or
// skips the test when live tests are off.
func NewTestFiller(t *testing.T) *formfiller.Filler {
	t.Helper()
	chatModel := InitChatModel(t)
	filler, err := formfiller.NewToolBased(chatModel, session.NewMemoryStore(), formfiller.Options{
		FlowOptions: []flow.Option{flow.WithLogger(zerolog.Nop())},
	})
	if err != nil {
		t.Fatalf("failed to build filler: %v", err)
	}
	return filler
}
