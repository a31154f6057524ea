// Package config provides centralized configuration management using Viper.
//
// Precedence (highest first): bound CLI flags, AGENTLAUNCHER_* environment
// variables, the config file, defaults. Nested keys map to environment
// variables with "." replaced by "_" (session.driver -> AGENTLAUNCHER_SESSION_DRIVER).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/logging"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "AGENTLAUNCHER"

// FileName is the config file name searched for without an explicit path.
const FileName = "agentlauncher.yaml"

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Session drivers.
const (
	SessionMemory = "memory"
	SessionSQLite = "sqlite"
)

// Config holds all configuration values for agentlauncher.
type Config struct {
	Provider      string  `mapstructure:"provider" yaml:"provider"`
	Model         string  `mapstructure:"model" yaml:"model"`
	SubAgentModel string  `mapstructure:"sub_agent_model" yaml:"sub_agent_model"`
	APIKey        string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL       string  `mapstructure:"base_url" yaml:"base_url"`
	Temperature   float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Stream        bool    `mapstructure:"stream" yaml:"stream"`
	SystemPrompt  string  `mapstructure:"system_prompt" yaml:"system_prompt"`
	Verbosity     string  `mapstructure:"verbosity" yaml:"verbosity"`

	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	MaxParallelTools int           `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools"`
	// MaxConversation trims agent conversations to this many messages (0 = off).
	MaxConversation  int           `mapstructure:"max_conversation" yaml:"max_conversation"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	NATS    NATSConfig    `mapstructure:"nats" yaml:"nats"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// LogConfig selects the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// NATSConfig configures the event bridge.
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	URL           string `mapstructure:"url" yaml:"url"`
	Embedded      bool   `mapstructure:"embedded" yaml:"embedded"`
	StoreDir      string `mapstructure:"store_dir" yaml:"store_dir"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	Persist       bool   `mapstructure:"persist" yaml:"persist"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

var defaults = map[string]any{
	"provider":            ProviderMock,
	"model":               "",
	"sub_agent_model":     "",
	"api_key":             "",
	"base_url":            "",
	"temperature":         0.7,
	"max_tokens":          4096,
	"stream":              false,
	"system_prompt":       "",
	"verbosity":           "silent",
	"timeout":             "5m",
	"max_retries":         5,
	"max_parallel_tools":  0,
	"max_conversation":    0,
	"log.level":           "info",
	"log.format":          "text",
	"session.driver":      SessionMemory,
	"session.path":        filepath.Join(".agentlauncher", "sessions.db"),
	"nats.enabled":        false,
	"nats.url":            "",
	"nats.embedded":       true,
	"nats.store_dir":      filepath.Join(".agentlauncher", "nats"),
	"nats.subject_prefix": "agentlauncher",
	"nats.persist":        false,
	"server.addr":         ":8080",
}

// Options controls how Load finds its inputs.
type Options struct {
	// File is an explicit config file. When empty, FileName is searched in
	// the working directory and $HOME/.agentlauncher.
	File string
	// Flags are bound by name; flag "max-retries" binds key "max_retries".
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to keys where the name does not translate.
	FlagKeys map[string]string
}

// Load reads the configuration.
func Load(optFns ...func(o *Options)) (*Config, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".agentlauncher"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if _, known := defaults[key]; !known {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	switch c.Session.Driver {
	case SessionMemory, SessionSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown session driver %q", c.Session.Driver))
	}
	if _, err := eventbus.ParseVerbosity(c.Verbosity); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Logger builds the structured logger described by c.Log.
func (c *Config) Logger() logging.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    c.Log.Format,
		Output:    os.Stderr,
		Component: "agentlauncher",
	})
}

// WriteDefault writes a config file holding every default to path. It
// refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
