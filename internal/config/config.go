// Package config loads the application's YAML configuration. Environment
// references like ${ANTHROPIC_API_KEY} are expanded before decoding, and
// unknown keys are rejected so typos fail at startup rather than silently.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	LLM       LLMConfig       `yaml:"llm"`
	Providers ProvidersConfig `yaml:"providers"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig configures bearer-token auth. An empty secret disables auth
// and every request runs as the local principal.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// LLMConfig selects and configures the model backend.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ProvidersConfig points at the tool-provider registry document.
type ProvidersConfig struct {
	ConfigPath  string        `yaml:"config_path"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// SecretsConfig holds the per-user secrets store settings. The encryption
// key itself comes from SECRETS_ENCRYPTION_KEY, never from this file.
type SecretsConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig mirrors observability.LogConfig.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Auth: AuthConfig{
			TokenExpiry: 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider: "anthropic",
		},
		Providers: ProvidersConfig{
			ConfigPath:  "mcp-config.json",
			CallTimeout: 30 * time.Second,
		},
		Secrets: SecretsConfig{
			DBPath: "deskpilot.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and decodes the config file at path, layered over Default.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Providers.ConfigPath == "" {
		return fmt.Errorf("providers.config_path is required")
	}
	return nil
}
