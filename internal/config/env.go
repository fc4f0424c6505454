package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// env reads FORMFILLER_* variables and logs where each override came from.
type env struct {
	logger zerolog.Logger
	errs   []string
}

func (e *env) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "key") || strings.Contains(lower, "password") {
		e.logger.Debug().Str("key", key).Bool("sensitive", true).Msg("using environment variable")
	} else {
		e.logger.Debug().Str("key", key).Str("value", value).Msg("using environment variable")
	}
	return value, true
}

func (e *env) String(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *env) Int(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, key+": not an integer")
		return
	}
	*dst = n
}

func (e *env) Float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, key+": not a number")
		return
	}
	*dst = f
}

func (e *env) Bool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, key+": not a boolean")
		return
	}
	*dst = b
}

func (e *env) Duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, key+": not a duration")
		return
	}
	*dst = d
}
