package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/formfiller/types"
)

// DefaultComposeSystemPromptTemplate is the default system prompt template used by
// ToolBasedComposer. The template may contain a single "%s" placeholder for the language.
const DefaultComposeSystemPromptTemplate = `You are a friendly form assistant helping a user fill in a form through conversation.

Write the next message to the user:
- Ask for exactly one piece of information: the field described under "Field to ask about".
- Keep it to one or two short sentences, like chatting with a friend.
- Briefly acknowledge what the user just told you when it helps the conversation flow.
- If the field has options, mention them naturally.
- Never ask again for fields that are already filled.
- Reply in %s.
`

type composerOptions struct {
	lang                 string
	systemPrompt         string
	systemPromptTemplate string
	trimmer              types.Trimmer
}

type ComposerOption func(*composerOptions)

// WithComposeLang sets the language used by the default system prompt template.
func WithComposeLang(lang string) ComposerOption {
	return func(o *composerOptions) {
		o.lang = lang
	}
}

// WithComposeSystemPrompt overrides the system prompt used by ToolBasedComposer.
func WithComposeSystemPrompt(systemPrompt string) ComposerOption {
	return func(o *composerOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithComposeSystemPromptTemplate overrides the system prompt template used by ToolBasedComposer.
// If the template contains "%s", it will be formatted with the language.
func WithComposeSystemPromptTemplate(systemPromptTemplate string) ComposerOption {
	return func(o *composerOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

// WithComposeHistoryTrimmer limits how much conversation is sent with each call.
func WithComposeHistoryTrimmer(trimmer types.Trimmer) ComposerOption {
	return func(o *composerOptions) {
		o.trimmer = trimmer
	}
}

// ToolBasedComposer asks a chat model to phrase the question.
type ToolBasedComposer struct {
	Lang         string
	systemPrompt string
	trimmer      types.Trimmer
	chatModel    model.ToolCallingChatModel
}

func NewToolBasedComposer(chatModel model.ToolCallingChatModel, opts ...ComposerOption) *ToolBasedComposer {
	options := composerOptions{
		lang:                 "English",
		systemPromptTemplate: DefaultComposeSystemPromptTemplate,
		trimmer:              types.KeepLastNTrimmer{N: 10},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.lang == "" {
		options.lang = "English"
	}

	systemPrompt := options.systemPrompt
	if systemPrompt == "" {
		tpl := options.systemPromptTemplate
		if tpl == "" {
			tpl = DefaultComposeSystemPromptTemplate
		}
		if strings.Contains(tpl, "%s") {
			systemPrompt = fmt.Sprintf(tpl, options.lang)
		} else {
			systemPrompt = tpl
		}
	}

	return &ToolBasedComposer{
		Lang:         options.lang,
		systemPrompt: systemPrompt,
		trimmer:      options.trimmer,
		chatModel:    chatModel,
	}
}

func (c *ToolBasedComposer) Compose(ctx context.Context, req *types.ComposeRequest) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(c.systemPrompt),
		schema.UserMessage(types.FormatComposeRequest(req, c.trimmer)),
	}
	response, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", errors.New("LLM returned an empty question")
	}
	return strings.TrimSpace(response.Content), nil
}
