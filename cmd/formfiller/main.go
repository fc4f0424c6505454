package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/tbxark/formfiller"
	"github.com/tbxark/formfiller/internal/api"
	"github.com/tbxark/formfiller/internal/config"
	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/internal/telemetry"
	"github.com/tbxark/formfiller/session"
)

func main() {
	confPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *confPath != "" {
		go watchConfig(ctx, *confPath)
	}
	if err := run(ctx, cfg); err != nil {
		logger := log.WithComponent("main")
		logger.Fatal().Err(err).Msg("formfiller stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("main")

	tracing, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("flush traces")
		}
	}()

	store, err := session.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close session store")
		}
	}()

	filler, err := newFiller(ctx, cfg, store)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Controller:   filler,
		RateLimit:    cfg.Server.RateLimit,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if p, ok := store.(api.Pinger); ok {
		deps.Health = p
	}
	srv := &http.Server{
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("provider", cfg.LLM.Provider).
		Msg("formfiller starting")
	return api.Serve(ctx, srv, ln, cfg.Server.ShutdownTimeout)
}

func newFiller(ctx context.Context, cfg config.Config, store session.Store) (*formfiller.Filler, error) {
	opts := formfiller.Options{
		Lang:           cfg.LLM.Lang,
		ExtractTimeout: cfg.Flow.ExtractTimeout,
		HistoryWindow:  cfg.Flow.HistoryWindow,
		RatePerSecond:  cfg.LLM.RatePerSecond,
		Burst:          cfg.LLM.Burst,
	}
	if cfg.LLM.Provider != config.ProviderOpenAI {
		return formfiller.NewLocal(store, opts), nil
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return formfiller.NewToolBased(cm, store, opts)
}

// watchConfig applies log level edits without a restart. Other settings
// need one.
func watchConfig(ctx context.Context, path string) {
	logger := log.WithComponent("main")
	err := config.Watch(ctx, path, func(cfg config.Config) {
		if err := log.SetLevel(cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Str("level", cfg.Log.Level).Msg("ignoring invalid log level")
		}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher stopped")
	}
}
