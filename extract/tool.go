package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/formfiller/structured"
	"github.com/tbxark/formfiller/types"
)

const (
	fillFieldsToolName        = "fill_form_fields"
	fillFieldsToolDescription = "Record the form field values the user explicitly provided. Omit every field the user did not mention."
)

// DefaultExtractSystemPromptTemplate is the default system prompt of
// ToolBasedInferer. It may contain a single "%s" placeholder for the tool name.
const DefaultExtractSystemPromptTemplate = `You are a form-filling assistant. Read the latest user message in the context of the conversation and extract values for the form fields listed.

Rules:
- Only use information the user stated explicitly. Never guess.
- Leave out fields the user did not mention, and fields whose value is already filled and unchanged.
- If the user corrects an earlier answer, return the corrected value.
- If the message is a short direct answer to the last question, assign it to that field.
- Normalise values to the field type: email addresses, phone numbers, dates as YYYY-MM-DD, plain numbers.
- For fields with options, answer with one of the listed options.

Call the '%s' tool with the result.`

type infererOptions struct {
	systemPromptTemplate string
	trimmer              types.Trimmer
}

type InfererOption func(*infererOptions)

// WithExtractSystemPromptTemplate overrides the system prompt template.
func WithExtractSystemPromptTemplate(tpl string) InfererOption {
	return func(o *infererOptions) {
		o.systemPromptTemplate = tpl
	}
}

// WithHistoryTrimmer limits how much conversation is sent with each call.
func WithHistoryTrimmer(trimmer types.Trimmer) InfererOption {
	return func(o *infererOptions) {
		o.trimmer = trimmer
	}
}

// argsCodec keeps numeric arguments as json.Number so long digit strings
// such as phone numbers survive decoding unchanged.
var argsCodec = sonic.Config{UseNumber: true}.Froze()

// ToolBasedInferer asks a tool calling chat model to fill a tool whose
// parameters are the fields of the form.
type ToolBasedInferer struct {
	chatModel    model.ToolCallingChatModel
	systemPrompt string
	trimmer      types.Trimmer
}

func NewToolBasedInferer(chatModel model.ToolCallingChatModel, opts ...InfererOption) *ToolBasedInferer {
	o := infererOptions{
		systemPromptTemplate: DefaultExtractSystemPromptTemplate,
		trimmer:              types.KeepLastNTrimmer{N: 20},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	systemPrompt := o.systemPromptTemplate
	if strings.Contains(systemPrompt, "%s") {
		systemPrompt = fmt.Sprintf(systemPrompt, fillFieldsToolName)
	}
	return &ToolBasedInferer{
		chatModel:    chatModel,
		systemPrompt: systemPrompt,
		trimmer:      o.trimmer,
	}
}

func (i *ToolBasedInferer) Infer(ctx context.Context, req *types.ExtractRequest) (map[string]string, error) {
	chain, err := structured.NewChainWithToolInfo[*types.ExtractRequest, map[string]any](
		i.chatModel,
		i.buildPrompt,
		BuildToolInfo(req.Schema),
	)
	if err != nil {
		return nil, err
	}
	chain.Codec = argsCodec
	result, err := chain.Invoke(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	if result == nil {
		return map[string]string{}, nil
	}
	return normalizeValues(*result)
}

func (i *ToolBasedInferer) buildPrompt(ctx context.Context, req *types.ExtractRequest) ([]*schema.Message, error) {
	return []*schema.Message{
		schema.SystemMessage(i.systemPrompt),
		schema.UserMessage(types.FormatExtractRequest(req, i.trimmer)),
	}, nil
}

// BuildToolInfo describes the form as tool parameters, one optional string per field.
func BuildToolInfo(form *types.FormSchema) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        fillFieldsToolName,
		Desc:        fillFieldsToolDescription,
		ParamsOneOf: schema.NewParamsOneOfByParams(fieldParams(form)),
	}
}

func fieldParams(form *types.FormSchema) map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo, form.Len())
	for _, f := range form.Fields() {
		desc := fmt.Sprintf("%s (type: %s)", f.DisplayName(), f.Type)
		if f.Description != "" {
			desc += ". " + f.Description
		}
		p := &schema.ParameterInfo{
			Type: schema.String,
			Desc: desc,
		}
		// checkbox answers may name several options
		if len(f.Options) > 0 && f.Type != types.FieldCheckbox {
			p.Enum = append([]string(nil), f.Options...)
		}
		params[f.FieldID] = p
	}
	return params
}

func normalizeValues(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for id, v := range raw {
		s, err := stringify(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", id, err)
		}
		if s != "" {
			out[id] = s
		}
	}
	return out, nil
}

func stringify(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, err := stringify(item)
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), nil
	case map[string]any:
		return "", fmt.Errorf("unexpected object value")
	default:
		b, err := sonic.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("unsupported value %T", v)
		}
		return string(b), nil
	}
}
