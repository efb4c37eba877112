package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "http port must be between 1 and 65535",
		},
		{
			name:        "unknown text provider",
			mutate:      func(c *Config) { c.Generation.TextProvider = "bard" },
			expectError: true,
			errorMsg:    "text_provider must be",
		},
		{
			name:        "chunk too small",
			mutate:      func(c *Config) { c.Generation.ChunkTurns = 4 },
			expectError: true,
			errorMsg:    "chunk_turns must be between 5 and 12",
		},
		{
			name:        "chunk too large",
			mutate:      func(c *Config) { c.Generation.ChunkTurns = 13 },
			expectError: true,
			errorMsg:    "chunk_turns must be between 5 and 12",
		},
		{
			name:        "missing voice",
			mutate:      func(c *Config) { delete(c.Generation.Voices, "Jane") },
			expectError: true,
			errorMsg:    "voices must assign a voice to Jane",
		},
		{
			name: "same voice for both speakers",
			mutate: func(c *Config) {
				c.Generation.Voices = map[string]string{"Joe": "Kore", "Jane": "Kore"}
			},
			expectError: true,
			errorMsg:    "voices must differ",
		},
		{
			name:        "empty store path",
			mutate:      func(c *Config) { c.Store.Path = "" },
			expectError: true,
			errorMsg:    "store config: path cannot be empty",
		},
		{
			name:        "idle timeout too short",
			mutate:      func(c *Config) { c.Studio.IdleTimeout = 5 },
			expectError: true,
			errorMsg:    "idle_timeout must be at least 60 seconds",
		},
		{
			name:        "negative retries",
			mutate:      func(c *Config) { c.Generation.MaxRetries = -1 },
			expectError: true,
			errorMsg:    "max_retries cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(&config)

			err := config.Validate()

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
http:
  port: 9090
  address: "127.0.0.1"
generation:
  text_provider: "openai"
  text_model: "gpt-4o"
  chunk_turns: 8
  voices:
    Joe: "Charon"
    Jane: "Aoede"
store:
  path: "/tmp/sessions.db"
logging:
  level: "debug"
  format: "json"
`,
			expectError: false,
		},
		{
			name:        "empty file keeps defaults",
			configYAML:  "",
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
http:
  port: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "blank required field",
			configYAML: `
http:
  address: ""
`,
			expectError: true,
			errorMsg:    "http address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadOverridesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  port: 9090
generation:
  chunk_turns: 6
`
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.HTTP.Port)
	}
	if config.Generation.ChunkTurns != 6 {
		t.Errorf("Expected chunk_turns 6, got %d", config.Generation.ChunkTurns)
	}
	// untouched fields keep their defaults
	if config.HTTP.Address != "0.0.0.0" {
		t.Errorf("Expected default address, got %s", config.HTTP.Address)
	}
	if config.Generation.MaxRetries != 2 || config.Generation.InitialBackoffMS != 2000 {
		t.Errorf("Expected default retry policy, got %d retries / %dms",
			config.Generation.MaxRetries, config.Generation.InitialBackoffMS)
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatalf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Run("missing gemini key", func(t *testing.T) {
		clearEnv(t, EnvAPIKey, EnvGeminiAPIKey, EnvOpenAIAPIKey)
		config := Default()
		err := config.LoadCredentials()
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("Expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("API_KEY takes precedence", func(t *testing.T) {
		clearEnv(t, EnvAPIKey, EnvGeminiAPIKey, EnvOpenAIAPIKey)
		t.Setenv(EnvAPIKey, "primary")
		t.Setenv(EnvGeminiAPIKey, "secondary")

		config := Default()
		if err := config.LoadCredentials(); err != nil {
			t.Fatalf("LoadCredentials failed: %v", err)
		}
		if config.Credentials.GeminiAPIKey != "primary" {
			t.Errorf("Expected primary key, got %s", config.Credentials.GeminiAPIKey)
		}
	})

	t.Run("openai provider requires openai key", func(t *testing.T) {
		clearEnv(t, EnvAPIKey, EnvGeminiAPIKey, EnvOpenAIAPIKey)
		t.Setenv(EnvGeminiAPIKey, "gemini")

		config := Default()
		config.Generation.TextProvider = ProviderOpenAI
		err := config.LoadCredentials()
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("Expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("env file", func(t *testing.T) {
		clearEnv(t, EnvAPIKey, EnvGeminiAPIKey, EnvOpenAIAPIKey)
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("GEMINI_API_KEY=from-file\nOPENAI_API_KEY=sk-test\n"), 0600); err != nil {
			t.Fatalf("Failed to write env file: %v", err)
		}

		config := Default()
		if err := config.LoadCredentials(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("LoadCredentials failed: %v", err)
		}
		if config.Credentials.GeminiAPIKey != "from-file" {
			t.Errorf("Expected key from env file, got %q", config.Credentials.GeminiAPIKey)
		}
		if config.Credentials.OpenAIAPIKey != "sk-test" {
			t.Errorf("Expected openai key from env file, got %q", config.Credentials.OpenAIAPIKey)
		}
	})
}

func TestDurationHelpers(t *testing.T) {
	config := Default()

	if config.HTTP.GetReadTimeoutDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", config.HTTP.GetReadTimeoutDuration())
	}

	if config.Generation.GetInitialBackoff() != 2*time.Second {
		t.Errorf("Expected 2 seconds, got %v", config.Generation.GetInitialBackoff())
	}

	if config.Generation.GetRequestTimeoutDuration() != 180*time.Second {
		t.Errorf("Expected 180 seconds, got %v", config.Generation.GetRequestTimeoutDuration())
	}

	if config.Studio.GetIdleTimeoutDuration() != time.Hour {
		t.Errorf("Expected 1 hour, got %v", config.Studio.GetIdleTimeoutDuration())
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name:   "valid json to stdout",
			config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			valid:  true,
		},
		{
			name:   "valid text to stderr",
			config: LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			valid:  true,
		},
		{
			name:   "invalid log level",
			config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"},
			valid:  false,
		},
		{
			name:   "invalid format",
			config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}
