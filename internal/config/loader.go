package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/internal/telemetry"
	"github.com/tbxark/formfiller/session"
)

// Load applies defaults, the YAML file at path (optional) and environment
// overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := mergeEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes YAML strictly: unknown keys are errors.
func loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

func mergeEnv(cfg *Config) error {
	e := &env{logger: log.WithComponent("config")}

	e.String("FORMFILLER_ADDR", &cfg.Server.Addr)
	e.Int("FORMFILLER_RATE_LIMIT", &cfg.Server.RateLimit)
	e.Duration("FORMFILLER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	e.String("FORMFILLER_LLM_PROVIDER", &cfg.LLM.Provider)
	e.String("FORMFILLER_LLM_API_KEY", &cfg.LLM.APIKey)
	e.String("FORMFILLER_LLM_BASE_URL", &cfg.LLM.BaseURL)
	e.String("FORMFILLER_LLM_MODEL", &cfg.LLM.Model)
	e.String("FORMFILLER_LLM_LANG", &cfg.LLM.Lang)
	e.Float("FORMFILLER_LLM_RATE_PER_SECOND", &cfg.LLM.RatePerSecond)

	e.String("FORMFILLER_STORE_BACKEND", &cfg.Store.Backend)
	e.Duration("FORMFILLER_STORE_TTL", &cfg.Store.TTL)
	e.String("FORMFILLER_REDIS_ADDR", &cfg.Store.Redis.Addr)
	e.String("FORMFILLER_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	e.Int("FORMFILLER_REDIS_DB", &cfg.Store.Redis.DB)
	e.String("FORMFILLER_SQLITE_PATH", &cfg.Store.Sqlite.Path)
	e.String("FORMFILLER_BADGER_PATH", &cfg.Store.Badger.Path)

	e.Duration("FORMFILLER_EXTRACT_TIMEOUT", &cfg.Flow.ExtractTimeout)
	e.Int("FORMFILLER_HISTORY_WINDOW", &cfg.Flow.HistoryWindow)

	e.Bool("FORMFILLER_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	e.String("FORMFILLER_TELEMETRY_EXPORTER", &cfg.Telemetry.ExporterType)
	e.String("FORMFILLER_TELEMETRY_ENDPOINT", &cfg.Telemetry.Endpoint)
	e.Float("FORMFILLER_TELEMETRY_SAMPLING_RATE", &cfg.Telemetry.SamplingRate)

	e.String("LOG_LEVEL", &cfg.Log.Level)
	e.Bool("FORMFILLER_LOG_PRETTY", &cfg.Log.Pretty)

	if len(e.errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(e.errs, "; "))
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func Validate(cfg Config) error {
	var errs []error
	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	switch cfg.LLM.Provider {
	case ProviderLocal:
	case ProviderOpenAI:
		if cfg.LLM.Model == "" {
			errs = append(errs, errors.New("llm.model is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of openai, local", cfg.LLM.Provider))
	}
	switch cfg.Store.Backend {
	case "", session.BackendMemory, session.BackendBadger:
	case session.BackendRedis:
		if cfg.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required"))
		}
	case session.BackendSqlite:
		if cfg.Store.Sqlite.Path == "" {
			errs = append(errs, errors.New("store.sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, redis, sqlite, badger", cfg.Store.Backend))
	}
	if cfg.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}
	if cfg.Flow.ExtractTimeout < 0 {
		errs = append(errs, errors.New("flow.extract_timeout must not be negative"))
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case telemetry.ExporterGRPC, telemetry.ExporterHTTP:
		default:
			errs = append(errs, fmt.Errorf("telemetry.exporter %q is not one of grpc, http", cfg.Telemetry.ExporterType))
		}
		if cfg.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
	}
	return errors.Join(errs...)
}
