package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PipelineConfig holds the analysis constants used by the orchestrator.
type PipelineConfig struct {
	MaxContextChars     int     `yaml:"max_context_chars"`
	TextSliceChars      int     `yaml:"text_slice_chars"`
	EntityLimit         int     `yaml:"entity_limit"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SimilarityTopN      int     `yaml:"similarity_top_n"`
	SummarySentences    int     `yaml:"summary_sentences"`
}

// CaptureConfig configures page capture and fetching.
type CaptureConfig struct {
	MaxChars    int    `yaml:"max_chars"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	UserAgent   string `yaml:"user_agent"`
}

// OpenAISummarizerConfig holds configuration for the OpenAI-compatible summarizer.
type OpenAISummarizerConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects the external summarizer, if any.
type SummarizerConfig struct {
	Type   string                  `yaml:"type"`
	OpenAI *OpenAISummarizerConfig `yaml:"openai,omitempty"`
}

// RedisConfig contains connection details for the Redis bus.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// BusConfig selects the notification bus implementation.
type BusConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Database     string           `yaml:"database"`
	FallbackFile string           `yaml:"fallback_file"`
	LogMode      string           `yaml:"log_mode"`
	Pipeline     PipelineConfig   `yaml:"pipeline"`
	Capture      CaptureConfig    `yaml:"capture"`
	Summarizer   SummarizerConfig `yaml:"summarizer"`
	Bus          BusConfig        `yaml:"bus"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./keeper.yaml first, then ~/.config/memorypal/config.yaml.
// If neither exists, defaults are returned with an empty path; nothing is written.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "keeper.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	applyEnv(cfg)
	return cfg, "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserConfigPath is ~/.config/memorypal/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "memorypal", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		LogMode:    "dev",
		Summarizer: SummarizerConfig{Type: "local"},
		Bus:        BusConfig{Type: "local"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LogMode == "" {
		cfg.LogMode = "dev"
	}
	p := &cfg.Pipeline
	if p.MaxContextChars == 0 {
		p.MaxContextChars = 6500
	}
	if p.TextSliceChars == 0 {
		p.TextSliceChars = 15000
	}
	if p.EntityLimit == 0 {
		p.EntityLimit = 24
	}
	if p.SimilarityThreshold == 0 {
		p.SimilarityThreshold = 0.18
	}
	if p.SimilarityTopN == 0 {
		p.SimilarityTopN = 12
	}
	if p.SummarySentences == 0 {
		p.SummarySentences = 3
	}

	c := &cfg.Capture
	if c.MaxChars == 0 {
		c.MaxChars = 60000
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "memorypal-keeper/1.0"
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "local"
	}
	if cfg.Summarizer.Type == "openai" {
		if cfg.Summarizer.OpenAI == nil {
			cfg.Summarizer.OpenAI = &OpenAISummarizerConfig{}
		}
		o := cfg.Summarizer.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}

	if cfg.Bus.Type == "" {
		cfg.Bus.Type = "local"
	}
	if cfg.Bus.Type == "redis" {
		if cfg.Bus.Redis == nil {
			cfg.Bus.Redis = &RedisConfig{}
		}
		if cfg.Bus.Redis.Addr == "" {
			cfg.Bus.Redis.Addr = "localhost:6379"
		}
		if cfg.Bus.Redis.ChannelPrefix == "" {
			cfg.Bus.Redis.ChannelPrefix = "memorypal:"
		}
	}
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("MEMORYPAL_DB"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("MEMORYPAL_LOG"); v != "" {
		cfg.LogMode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Bus.Type = "redis"
		if cfg.Bus.Redis == nil {
			cfg.Bus.Redis = &RedisConfig{}
		}
		cfg.Bus.Redis.Addr = v
		applyConfigDefaults(cfg)
	}
}

// APIKey resolves the OpenAI key from the configured environment variable.
func (c *OpenAISummarizerConfig) APIKey() string {
	if c == nil {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
