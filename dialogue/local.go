package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

// LocalComposer words questions from per-type templates.
type LocalComposer struct {
	// MentionRemaining appends the other missing required fields to the question.
	MentionRemaining bool
}

func (c *LocalComposer) Compose(ctx context.Context, req *types.ComposeRequest) (string, error) {
	return c.question(req), nil
}

func (c *LocalComposer) question(req *types.ComposeRequest) string {
	f := req.Field
	name := phrase(f.DisplayName())
	options := strings.Join(f.Options, ", ")

	var q string
	switch {
	case f.Type == types.FieldCheckbox && options != "":
		q = fmt.Sprintf("Which %s apply? You can pick several of: %s.", name, options)
	case f.Type.HasOptions() && options != "":
		q = fmt.Sprintf("Which %s would you like? The options are: %s.", name, options)
	case f.Type == types.FieldDate:
		q = fmt.Sprintf("What is the %s? Please use the format YYYY-MM-DD.", name)
	case f.Type == types.FieldEmail:
		q = fmt.Sprintf("What is your %s?", name)
	case f.Type == types.FieldPhone:
		q = fmt.Sprintf("What %s can we reach you on?", name)
	case f.Type == types.FieldNumber:
		q = fmt.Sprintf("What is the %s? A number is fine.", name)
	default:
		q = fmt.Sprintf("Could you tell me your %s?", name)
	}
	if f.Description != "" {
		q += " (" + f.Description + ")"
	}

	if c.MentionRemaining {
		var rest []string
		for _, m := range req.Missing {
			if m.FieldID != f.FieldID {
				rest = append(rest, phrase(m.DisplayName()))
			}
		}
		if len(rest) > 0 {
			q += " After that I still need: " + strings.Join(rest, ", ") + "."
		}
	}
	return q
}

// phrase lowercases a label for use mid-sentence unless it starts with an acronym.
func phrase(label string) string {
	runes := []rune(label)
	if len(runes) == 0 {
		return label
	}
	if len(runes) > 1 && unicode.IsUpper(runes[0]) && unicode.IsUpper(runes[1]) {
		return label
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// FailbackComposer tries each composer in turn and returns the first success.
type FailbackComposer struct {
	composers []Composer
	logger    zerolog.Logger
}

func NewFailbackComposer(composers ...Composer) *FailbackComposer {
	return &FailbackComposer{
		composers: composers,
		logger:    log.WithComponent("dialogue"),
	}
}

func (c *FailbackComposer) Compose(ctx context.Context, req *types.ComposeRequest) (string, error) {
	var lastErr error
	for _, composer := range c.composers {
		q, err := composer.Compose(ctx, req)
		if err == nil {
			return q, nil
		}
		c.logger.Warn().Err(err).Str(log.FieldFieldID, req.Field.FieldID).Msg("composer failed, trying next")
		lastErr = err
	}
	if lastErr == nil {
		return "", errors.New("no composer configured")
	}
	return "", fmt.Errorf("all composers failed: %w", lastErr)
}
