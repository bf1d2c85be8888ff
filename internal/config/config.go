// Package config holds the process configuration: a YAML file for server and
// provider settings, and the environment for API keys. Adapters never read
// the environment themselves; credentials are resolved once at startup and
// passed in explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/knight1008610000/codegen-server/internal/catalog"
)

const (
	defaultPort          = 8000
	defaultChatTimeout   = 30 * time.Second
	defaultFIMTimeout    = 10 * time.Second
	defaultFIMProvider   = "deepseek"
	defaultFIMMaxTokens  = 100
	defaultChatProvider  = "zhipu"
	defaultChatMaxTokens = 1000
)

// Config is the application configuration parsed from YAML. Every field has
// a default, so an absent file still yields a runnable server.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	FIM       FIMConfig                 `yaml:"fim"`
	Chat      ChatConfig                `yaml:"chat"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ProviderConfig overrides upstream endpoints and timeouts, mainly for tests
// and self-hosted gateways.
type ProviderConfig struct {
	BaseURL     string   `yaml:"base_url"`
	ChatTimeout Duration `yaml:"chat_timeout"`
	FIMTimeout  Duration `yaml:"fim_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// FIMConfig selects the fill-in-middle upstream.
type FIMConfig struct {
	Provider  string `yaml:"provider"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ChatConfig selects the default chat upstream.
type ChatConfig struct {
	Provider  string `yaml:"provider"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: defaultPort},
		FIM:    FIMConfig{Provider: defaultFIMProvider, MaxTokens: defaultFIMMaxTokens},
		Chat:   ChatConfig{Provider: defaultChatProvider, MaxTokens: defaultChatMaxTokens},
	}
}

// Load reads YAML configuration from disk, fills defaults, and validates the
// result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.FIM.Provider == "" {
		c.FIM.Provider = defaultFIMProvider
	}
	if c.FIM.MaxTokens == 0 {
		c.FIM.MaxTokens = defaultFIMMaxTokens
	}
	if c.Chat.Provider == "" {
		c.Chat.Provider = defaultChatProvider
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = defaultChatMaxTokens
	}
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if _, err := catalog.DefaultModel(c.FIM.Provider); err != nil {
		return fmt.Errorf("fim.provider: %w", err)
	}
	if _, err := catalog.DefaultModel(c.Chat.Provider); err != nil {
		return fmt.Errorf("chat.provider: %w", err)
	}
	if c.FIM.MaxTokens <= 0 {
		return fmt.Errorf("fim.max_tokens must be positive, got %d", c.FIM.MaxTokens)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("chat.max_tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	for name, pc := range c.Providers {
		if _, err := catalog.DefaultModel(name); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
		if pc.ChatTimeout < 0 || pc.FIMTimeout < 0 {
			return fmt.Errorf("providers.%s: timeouts must not be negative", name)
		}
	}
	return nil
}

// Provider returns the override block for a provider, zero-valued when the
// file did not mention it.
func (c Config) Provider(name string) ProviderConfig {
	return c.Providers[name]
}

// ChatTimeoutOr returns the configured chat timeout or the default.
func (p ProviderConfig) ChatTimeoutOr() time.Duration {
	if p.ChatTimeout > 0 {
		return time.Duration(p.ChatTimeout)
	}
	return defaultChatTimeout
}

// FIMTimeoutOr returns the configured fill-in-middle timeout or the default.
func (p ProviderConfig) FIMTimeoutOr() time.Duration {
	if p.FIMTimeout > 0 {
		return time.Duration(p.FIMTimeout)
	}
	return defaultFIMTimeout
}

// Credentials holds the per-provider API keys. A missing key is not a startup
// error; it surfaces as ErrMissingCredential when the provider is first used.
type Credentials struct {
	DeepSeek  string
	OpenAI    string
	Anthropic string
	Zhipu     string
}

// LoadCredentials reads API keys from the environment after a best-effort
// .env load.
func LoadCredentials() Credentials {
	_ = godotenv.Load()

	return Credentials{
		DeepSeek:  os.Getenv("DEEPSEEK_API_KEY"),
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		Zhipu:     os.Getenv("ZHIPU_API_KEY"),
	}
}
