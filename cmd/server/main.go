package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/moriwaka/gemini-podcat-generator/internal/config"
	"github.com/moriwaka/gemini-podcat-generator/internal/generation"
	"github.com/moriwaka/gemini-podcat-generator/internal/metrics"
	"github.com/moriwaka/gemini-podcat-generator/internal/pipeline"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
	"github.com/moriwaka/gemini-podcat-generator/internal/server"
	"github.com/moriwaka/gemini-podcat-generator/internal/store"
	"github.com/moriwaka/gemini-podcat-generator/internal/studio"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "gemini-podcat-generator"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional env file with API keys")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.LoadCredentials(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credentials: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("text_provider", cfg.Generation.TextProvider),
		slog.String("text_model", cfg.Generation.TextModel),
		slog.String("tts_model", cfg.Generation.TTSModel),
		slog.Int("chunk_turns", cfg.Generation.ChunkTurns),
		slog.Int("max_retries", cfg.Generation.MaxRetries),
		slog.String("store_path", cfg.Store.Path),
		slog.String("log_level", cfg.Logging.Level),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	genClient, err := newGenerationClient(ctx, cfg, logger, appMetrics)
	if err != nil {
		return err
	}

	sessions := store.New(cfg.Store.Path, logger, appMetrics)
	if err := sessions.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer sessions.Close()

	audioPipeline := pipeline.New(genClient, cfg.Generation.ChunkTurns, logger, appMetrics)

	studios := studio.NewManager(logger, cfg.Studio.GetIdleTimeoutDuration(), studio.Dependencies{
		Generator: genClient,
		Audio:     audioPipeline,
		Store:     sessions,
	}, appMetrics)
	logger.Info("Studio manager initialized",
		slog.Duration("idle_timeout", cfg.Studio.GetIdleTimeoutDuration()),
	)

	httpServer := server.NewHTTPServer(cfg.HTTP, logger, server.Options{
		Studios:  studios,
		Sessions: sessions,
		Topics:   genClient,
		Metrics:  appMetrics,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.ListenAndServe)
	g.Go(func() error { return studios.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		return nil
	})

	logger.Info("Service started successfully, waiting for signals...")
	return g.Wait()
}

// newGenerationClient wires the text and speech backends. Speech always uses
// Gemini; text uses Gemini or an OpenAI-compatible server.
func newGenerationClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*generation.Client, error) {
	gen := cfg.Generation

	gemini, err := generation.NewGeminiBackend(ctx, generation.GeminiConfig{
		APIKey:    cfg.Credentials.GeminiAPIKey,
		TextModel: gen.TextModel,
		TTSModel:  gen.TTSModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini backend: %w", err)
	}

	var text generation.TextModel = gemini
	if gen.TextProvider == config.ProviderOpenAI {
		openai, err := generation.NewOpenAIBackend(generation.OpenAIConfig{
			APIKey:  cfg.Credentials.OpenAIAPIKey,
			BaseURL: gen.OpenAIBaseURL,
			Model:   gen.TextModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI backend: %w", err)
		}
		text = openai
	}

	voices := make(map[podcast.Speaker]string, len(gen.Voices))
	for name, voice := range gen.Voices {
		sp, err := podcast.ParseSpeaker(name)
		if err != nil {
			return nil, fmt.Errorf("invalid voice mapping: %w", err)
		}
		voices[sp] = voice
	}

	client, err := generation.NewClient(text, gemini, generation.Config{
		OutlinePoints: gen.OutlinePoints,
		ExtendPoints:  gen.ExtendPoints,
		GenreTopics:   gen.GenreTopics,
		Retry: generation.RetryPolicy{
			MaxRetries:     gen.MaxRetries,
			InitialBackoff: gen.GetInitialBackoff(),
		},
		RequestTimeout: gen.GetRequestTimeoutDuration(),
		Voices:         voices,
	}, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	logger.Info("Generation client initialized",
		slog.String("text_provider", gen.TextProvider),
		slog.String("text_model", gen.TextModel),
		slog.String("tts_model", gen.TTSModel),
	)
	return client, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
