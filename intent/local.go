package intent

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// LocalRecognizer matches whole messages against cancel keywords.
type LocalRecognizer struct {
	CancelKeywords []string
}

func NewLocalRecognizer() *LocalRecognizer {
	return &LocalRecognizer{
		CancelKeywords: []string{"cancel", "quit", "exit", "stop", "abort", "never mind", "nevermind", "forget it"},
	}
}

func (r *LocalRecognizer) RecognizeIntent(ctx context.Context, req *Request) (Intent, error) {
	normalized := strings.ToLower(strings.TrimFunc(req.Utterance, func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c)
	}))
	for _, keyword := range r.CancelKeywords {
		if normalized == keyword {
			return Cancel, nil
		}
	}
	return Fill, nil
}

// FailbackRecognizer asks each recognizer in turn until one answers.
type FailbackRecognizer struct {
	recognizers []Recognizer
}

func NewFailbackRecognizer(recognizers ...Recognizer) *FailbackRecognizer {
	return &FailbackRecognizer{recognizers: recognizers}
}

func (r *FailbackRecognizer) RecognizeIntent(ctx context.Context, req *Request) (Intent, error) {
	var errs []error
	for _, recognizer := range r.recognizers {
		in, err := recognizer.RecognizeIntent(ctx, req)
		if err == nil {
			return in, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Fill, errors.New("no recognizer configured")
	}
	return Fill, errors.Join(errs...)
}
