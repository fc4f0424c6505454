// Package config loads service configuration: defaults, then a YAML file,
// then FORMFILLER_* environment variables.
package config

import (
	"time"

	"github.com/tbxark/formfiller/internal/telemetry"
	"github.com/tbxark/formfiller/session"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	LLM       LLMConfig        `yaml:"llm"`
	Store     session.Config   `yaml:"store"`
	Flow      FlowConfig       `yaml:"flow"`
	Log       LogConfig        `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RateLimit is the number of requests per minute allowed per client IP. Zero disables it.
	RateLimit    int   `yaml:"rate_limit"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

type LLMConfig struct {
	// Provider is "openai" for any OpenAI compatible endpoint or "local" for rule based extraction.
	Provider      string  `yaml:"provider"`
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Lang          string  `yaml:"lang"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type FlowConfig struct {
	ExtractTimeout time.Duration `yaml:"extract_timeout"`
	HistoryWindow  int           `yaml:"history_window"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
			MaxBodyBytes:    1 << 20,
		},
		LLM: LLMConfig{
			Provider: ProviderLocal,
			Model:    "gpt-4o-mini",
			Lang:     "English",
			Burst:    1,
		},
		Store: session.Config{
			Backend: session.BackendMemory,
			Redis:   session.RedisConfig{Addr: "127.0.0.1:6379", Prefix: session.DefaultRedisPrefix},
			Sqlite:  session.SqliteConfig{Path: "formfiller.db", BusyTimeout: 5 * time.Second},
			Badger:  session.BadgerConfig{Path: "formfiller-badger"},
		},
		Flow: FlowConfig{
			ExtractTimeout: 30 * time.Second,
			HistoryWindow:  20,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: telemetry.Config{
			ServiceName:  "formfiller",
			ExporterType: telemetry.ExporterHTTP,
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
		},
	}
}
