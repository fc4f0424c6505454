package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
	datePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

const maxLocalValueLen = 256

// LocalInferer recognises values with rules and needs no model. It handles
// "<label> is <value>" phrases, unambiguous emails, phones and dates, and
// option fields whose option is named exactly once.
type LocalInferer struct{}

func NewLocalInferer() *LocalInferer {
	return &LocalInferer{}
}

func (l *LocalInferer) Infer(ctx context.Context, req *types.ExtractRequest) (map[string]string, error) {
	text := req.Utterance
	fields := req.Schema.Fields()

	perType := make(map[types.FieldType]int, len(fields))
	for _, f := range fields {
		perType[f.Type]++
	}

	out := make(map[string]string)
	for _, f := range fields {
		if v, ok := matchLabelled(f, text); ok {
			out[f.FieldID] = v
			continue
		}
		if f.Type.HasOptions() {
			if opt, ok := matchOption(f.Options, text); ok {
				out[f.FieldID] = opt
			}
			continue
		}
		// Bare numbers are too common to attribute without a label.
		if perType[f.Type] != 1 || f.Type == types.FieldNumber {
			continue
		}
		if v, ok := matchTyped(f.Type, text); ok {
			out[f.FieldID] = v
		}
	}
	return out, nil
}

func matchLabelled(f types.FieldSpec, text string) (string, bool) {
	for _, name := range labelCandidates(f) {
		re, err := regexp.Compile(`(?i)\b(?:my\s+|the\s+|our\s+)?` + regexp.QuoteMeta(name) +
			`\s*(?:(?:is|are|was)\b|[:=])\s*(.+?)(?:\s+and\s+|[,;!?]|\.(?:\s|$)|$)`)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if typed, ok := matchTyped(f.Type, value); ok {
			value = typed
		}
		if f.Type.HasOptions() {
			if opt, ok := matchOption(f.Options, value); ok {
				value = opt
			}
		}
		if value == "" || len(value) > maxLocalValueLen {
			continue
		}
		return value, true
	}
	return "", false
}

func labelCandidates(f types.FieldSpec) []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	add(f.Label)
	add(strings.NewReplacer("_", " ", "-", " ").Replace(f.FieldID))
	return out
}

func matchTyped(t types.FieldType, text string) (string, bool) {
	switch t {
	case types.FieldEmail:
		if m := emailPattern.FindString(text); m != "" {
			return m, true
		}
	case types.FieldPhone:
		for _, m := range phonePattern.FindAllString(text, -1) {
			if datePattern.MatchString(m) {
				continue
			}
			if countDigits(m) >= 7 {
				return strings.TrimSpace(m), true
			}
		}
	case types.FieldDate:
		if m := datePattern.FindString(text); m != "" {
			return m, true
		}
	case types.FieldNumber:
		if m := numberPattern.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

func matchOption(options []string, text string) (string, bool) {
	found := ""
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(opt) + `\b`)
		if err != nil || !re.MatchString(text) {
			continue
		}
		if found != "" {
			return "", false
		}
		found = opt
	}
	return found, found != ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// FailbackInferer tries each inferer in turn and returns the first success.
type FailbackInferer struct {
	inferers []Inferer
	logger   zerolog.Logger
}

func NewFailbackInferer(inferers ...Inferer) *FailbackInferer {
	return &FailbackInferer{
		inferers: inferers,
		logger:   log.WithComponent("extract"),
	}
}

func (f *FailbackInferer) Infer(ctx context.Context, req *types.ExtractRequest) (map[string]string, error) {
	var errs []error
	for _, inferer := range f.inferers {
		out, err := inferer.Infer(ctx, req)
		if err == nil {
			return out, nil
		}
		f.logger.Warn().Err(err).Msg("inferer failed, trying next")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no inferer configured")
	}
	return nil, errors.Join(errs...)
}
