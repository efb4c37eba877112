package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the provider credential is absent from the environment.
var ErrMissingAPIKey = errors.New("missing API key")

// Environment variables holding provider credentials.
const (
	EnvAPIKey       = "API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Text generation backends.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config represents the complete service configuration
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	Studio     StudioConfig     `yaml:"studio"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Credentials are read from the environment, never from the file.
	Credentials Credentials `yaml:"-"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// GenerationConfig contains generative model and audio pipeline parameters
type GenerationConfig struct {
	TextProvider     string            `yaml:"text_provider"`
	TextModel        string            `yaml:"text_model"`
	TTSModel         string            `yaml:"tts_model"`
	OpenAIBaseURL    string            `yaml:"openai_base_url"`
	OutlinePoints    int               `yaml:"outline_points"`
	ExtendPoints     int               `yaml:"extend_points"`
	GenreTopics      int               `yaml:"genre_topics"`
	ChunkTurns       int               `yaml:"chunk_turns"`
	MaxRetries       int               `yaml:"max_retries"`
	InitialBackoffMS int               `yaml:"initial_backoff_ms"`
	RequestTimeout   int               `yaml:"request_timeout"` // seconds
	Voices           map[string]string `yaml:"voices"`
}

// StoreConfig contains session store configuration
type StoreConfig struct {
	Path string `yaml:"path"`
}

// StudioConfig contains studio lifecycle configuration
type StudioConfig struct {
	IdleTimeout int `yaml:"idle_timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Credentials holds provider API keys
type Credentials struct {
	GeminiAPIKey string
	OpenAIAPIKey string
}

// Default returns a configuration with every field set to its default value
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         8080,
			Address:      "0.0.0.0",
			ReadTimeout:  10,
			WriteTimeout: 300,
		},
		Generation: GenerationConfig{
			TextProvider:     ProviderGemini,
			TextModel:        "gemini-3-pro-preview",
			TTSModel:         "gemini-2.5-flash-preview-tts",
			OutlinePoints:    6,
			ExtendPoints:     5,
			GenreTopics:      6,
			ChunkTurns:       12,
			MaxRetries:       2,
			InitialBackoffMS: 2000,
			RequestTimeout:   180,
			Voices: map[string]string{
				"Joe":  "Puck",
				"Jane": "Kore",
			},
		},
		Store: StoreConfig{
			Path: "data/podcast_studio.db",
		},
		Studio: StudioConfig{
			IdleTimeout: 3600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadCredentials reads API keys from the environment, loading envFiles first
// when they exist. The key required by the configured text provider must be set.
func (c *Config) LoadCredentials(envFiles ...string) error {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", f, err)
			}
		}
	}

	creds := Credentials{
		GeminiAPIKey: firstEnv(EnvAPIKey, EnvGeminiAPIKey),
		OpenAIAPIKey: firstEnv(EnvOpenAIAPIKey),
	}

	// speech synthesis always goes through Gemini
	if creds.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set %s or %s", ErrMissingAPIKey, EnvAPIKey, EnvGeminiAPIKey)
	}
	if c.Generation.TextProvider == ProviderOpenAI && creds.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set %s for the openai text provider", ErrMissingAPIKey, EnvOpenAIAPIKey)
	}

	c.Credentials = creds
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Studio.Validate(); err != nil {
		return fmt.Errorf("studio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	return nil
}

// Validate validates generation configuration
func (g *GenerationConfig) Validate() error {
	if g.TextProvider != ProviderGemini && g.TextProvider != ProviderOpenAI {
		return fmt.Errorf("text_provider must be '%s' or '%s', got '%s'", ProviderGemini, ProviderOpenAI, g.TextProvider)
	}

	if g.TextModel == "" {
		return fmt.Errorf("text_model cannot be empty")
	}

	if g.TTSModel == "" {
		return fmt.Errorf("tts_model cannot be empty")
	}

	if g.OutlinePoints < 1 {
		return fmt.Errorf("outline_points must be at least 1, got %d", g.OutlinePoints)
	}

	if g.ExtendPoints < 1 {
		return fmt.Errorf("extend_points must be at least 1, got %d", g.ExtendPoints)
	}

	if g.GenreTopics < 1 {
		return fmt.Errorf("genre_topics must be at least 1, got %d", g.GenreTopics)
	}

	if g.ChunkTurns < 5 || g.ChunkTurns > 12 {
		return fmt.Errorf("chunk_turns must be between 5 and 12, got %d", g.ChunkTurns)
	}

	if g.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", g.MaxRetries)
	}

	if g.InitialBackoffMS < 1 {
		return fmt.Errorf("initial_backoff_ms must be positive, got %d", g.InitialBackoffMS)
	}

	if g.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", g.RequestTimeout)
	}

	for _, speaker := range []string{"Joe", "Jane"} {
		if g.Voices[speaker] == "" {
			return fmt.Errorf("voices must assign a voice to %s", speaker)
		}
	}
	if g.Voices["Joe"] == g.Voices["Jane"] {
		return fmt.Errorf("voices must differ between speakers, both are '%s'", g.Voices["Joe"])
	}

	return nil
}

// Validate validates store configuration
func (s *StoreConfig) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Validate validates studio configuration
func (s *StudioConfig) Validate() error {
	if s.IdleTimeout < 60 {
		return fmt.Errorf("idle_timeout must be at least 60 seconds, got %d", s.IdleTimeout)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeoutDuration returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetInitialBackoff returns the first retry delay as a time.Duration
func (g *GenerationConfig) GetInitialBackoff() time.Duration {
	return time.Duration(g.InitialBackoffMS) * time.Millisecond
}

// GetRequestTimeoutDuration returns the per-request timeout as a time.Duration
func (g *GenerationConfig) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(g.RequestTimeout) * time.Second
}

// GetIdleTimeoutDuration returns the studio idle timeout as a time.Duration
func (s *StudioConfig) GetIdleTimeoutDuration() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}
