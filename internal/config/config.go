package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all VentureLens configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Tool provider configuration
	Providers []ProviderConfig `yaml:"providers"`

	// Research pipeline tuning
	Research ResearchConfig `yaml:"research"`

	// Run history storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the language model used for extraction and synthesis.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// ProviderConfig configures a single MCP tool provider.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	Protocol string `yaml:"protocol"` // stdio, http
	Command  string `yaml:"command,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Timeout  string `yaml:"timeout"`
}

// ResearchConfig tunes the research pipeline.
type ResearchConfig struct {
	// Results requested per market research query
	MarketResults int `yaml:"market_results"`

	// Results requested per competitor query
	CompetitorResults int `yaml:"competitor_results"`

	// Hard cap on competitors collected across all queries
	MaxCompetitors int `yaml:"max_competitors"`
}

// StorageConfig configures run history persistence.
type StorageConfig struct {
	// SQLite database path. Empty disables persistence.
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "venturelens",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "120s",
		},

		Providers: []ProviderConfig{
			{
				Name:     "serp",
				Enabled:  true,
				Protocol: "stdio",
				Command:  "python3 server/serp_server.py",
				Timeout:  "30s",
			},
			{
				Name:     "market_data",
				Enabled:  true,
				Protocol: "stdio",
				Command:  "python3 server/market_data_server.py",
				Timeout:  "30s",
			},
			{
				Name:     "social_trends",
				Enabled:  true,
				Protocol: "stdio",
				Command:  "python3 server/social_trends_server.py",
				Timeout:  "30s",
			},
		},

		Research: ResearchConfig{
			MarketResults:     3,
			CompetitorResults: 5,
			MaxCompetitors:    5,
		},

		Storage: StorageConfig{
			DatabasePath: "data/venturelens.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (check in priority order)
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if model := os.Getenv("VENTURELENS_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Database path from environment
	if path := os.Getenv("VENTURELENS_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Provider returns the configuration for a named provider, if present.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// GetTimeout returns the provider timeout as a duration.
func (p ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
