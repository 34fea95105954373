package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() Config {
	return Config{
		Server:      ServerConfig{Port: "5000"},
		Database:    DatabaseConfig{Path: "data/test.db"},
		Worker:      WorkerConfig{PollInterval: 5, MaxRetryAttempts: 3, RetryDelay: 30},
		Transcriber: TranscriberConfig{MaxAudioBytes: 1024, ChunkSeconds: 600},
		Summarizer:  SummarizerConfig{Provider: ProviderOpenAI, MaxChars: 100000},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "zero retry delay allowed", mutate: func(c *Config) { c.Worker.RetryDelay = 0 }},
		{name: "gemini provider", mutate: func(c *Config) { c.Summarizer.Provider = ProviderGemini }},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Worker.PollInterval = 0 }, wantErr: true},
		{name: "zero ceiling", mutate: func(c *Config) { c.Worker.MaxRetryAttempts = 0 }, wantErr: true},
		{name: "negative retry delay", mutate: func(c *Config) { c.Worker.RetryDelay = -1 }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Summarizer.Provider = "claude" }, wantErr: true},
		{name: "zero budget", mutate: func(c *Config) { c.Summarizer.MaxChars = 0 }, wantErr: true},
		{name: "zero chunk seconds", mutate: func(c *Config) { c.Transcriber.ChunkSeconds = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := Load()
	if cfg.Worker.PollIntervalDuration() != 5*time.Second {
		t.Errorf("poll interval = %v, want 5s", cfg.Worker.PollIntervalDuration())
	}
	if cfg.Worker.MaxRetryAttempts != 3 {
		t.Errorf("max retry attempts = %d, want 3", cfg.Worker.MaxRetryAttempts)
	}
	if cfg.Worker.RetryDelayDuration() != 30*time.Second {
		t.Errorf("retry delay = %v, want 30s", cfg.Worker.RetryDelayDuration())
	}
	if cfg.Transcriber.MaxAudioBytes != 25*1024*1024 {
		t.Errorf("max audio bytes = %d", cfg.Transcriber.MaxAudioBytes)
	}
	if cfg.Summarizer.MaxChars != 100000 {
		t.Errorf("max chars = %d", cfg.Summarizer.MaxChars)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("WORKER_POLL_INTERVAL", "7")
	t.Setenv("MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY_SECONDS", "0")
	t.Setenv("GEMINI_API_KEYS", "k1,k2")

	cfg := Load()
	if cfg.Worker.PollInterval != 7 {
		t.Errorf("poll interval = %d, want 7", cfg.Worker.PollInterval)
	}
	if cfg.Worker.MaxRetryAttempts != 5 {
		t.Errorf("max retry attempts = %d, want 5", cfg.Worker.MaxRetryAttempts)
	}
	if cfg.Worker.RetryDelay != 0 {
		t.Errorf("retry delay = %d, want 0", cfg.Worker.RetryDelay)
	}
	if len(cfg.Gemini.APIKeys) != 2 || cfg.Gemini.APIKeys[1] != "k2" {
		t.Errorf("gemini keys = %v", cfg.Gemini.APIKeys)
	}
}

func TestLoadConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "8088"
worker:
  poll_interval: 2
  max_retry_attempts: 4
summarizer:
  provider: gemini
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)

	cfg := Load()
	if cfg.Server.Port != "8088" {
		t.Errorf("port = %q, want 8088", cfg.Server.Port)
	}
	if cfg.Worker.PollInterval != 2 || cfg.Worker.MaxRetryAttempts != 4 {
		t.Errorf("worker = %+v", cfg.Worker)
	}
	if cfg.Summarizer.Provider != ProviderGemini {
		t.Errorf("provider = %q", cfg.Summarizer.Provider)
	}
	// 未配置的字段仍使用默认值
	if cfg.Worker.RetryDelay != 30 {
		t.Errorf("retry delay = %d, want default 30", cfg.Worker.RetryDelay)
	}
}
