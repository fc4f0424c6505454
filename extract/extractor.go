package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	unorm "golang.org/x/text/unicode/norm"

	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

const DefaultTimeout = 30 * time.Second

type options struct {
	timeout time.Duration
	logger  zerolog.Logger
}

type Option func(*options)

// WithTimeout bounds one inference call. Zero disables the extra deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Extractor applies the acceptance policy on top of an Inferer: results are
// limited to schema fields with non-blank values, and a lone answer to the
// last question is assigned to the focused field.
type Extractor struct {
	inferer Inferer
	timeout time.Duration
	logger  zerolog.Logger
}

func NewExtractor(inferer Inferer, opts ...Option) *Extractor {
	o := options{
		timeout: DefaultTimeout,
		logger:  log.WithComponent("extract"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Extractor{
		inferer: inferer,
		timeout: o.timeout,
		logger:  o.logger,
	}
}

// Extract returns the accepted candidates for req. Any failure of the
// underlying call, including a deadline overrun, wraps types.ErrExtractionFailure.
func (e *Extractor) Extract(ctx context.Context, req *types.ExtractRequest) (map[string]string, error) {
	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		return nil, types.ErrEmptyUtterance
	}

	raw, err := e.infer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrExtractionFailure, err)
	}

	out := make(map[string]string, len(raw))
	for id, value := range raw {
		if !req.Schema.Has(id) {
			e.logger.Debug().Str(log.FieldFieldID, id).Msg("dropping value for unknown field")
			continue
		}
		value = normalize(value)
		if value == "" {
			continue
		}
		out[id] = value
	}

	if len(out) == 0 && req.PendingFocus != "" && req.Schema.Has(req.PendingFocus) {
		out[req.PendingFocus] = normalize(utterance)
	}
	return out, nil
}

// normalize trims value and puts it in NFC so that composed and decomposed
// spellings of the same text merge as equal.
func normalize(value string) string {
	return strings.TrimSpace(unorm.NFC.String(value))
}

func (e *Extractor) infer(ctx context.Context, req *types.ExtractRequest) (raw map[string]string, err error) {
	if e.inferer == nil {
		return nil, fmt.Errorf("no inferer configured")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recover from panic: %v", r)
		}
	}()

	raw, err = e.inferer.Infer(ctx, req)
	if err != nil {
		return nil, err
	}
	if cErr := ctx.Err(); cErr != nil {
		return nil, cErr
	}
	return raw, nil
}
