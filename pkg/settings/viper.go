package settings

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/converse/pkg/markdown"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	AppName   = "converse"
	EnvPrefix = "CONVERSE"

	DefaultTimeout          = 2 * time.Minute
	DefaultClaudeMaxTokens  = 1024
	DefaultAnthropicVersion = "2023-06-01"
)

// SetDefaults registers every known key so that environment overrides such as
// CONVERSE_GEMINI_API are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gemini.api", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.use_model", 1)
	v.SetDefault("gemini.base_url", "")

	v.SetDefault("cohere.api", "")
	v.SetDefault("cohere.model", "")
	v.SetDefault("cohere.use_model", 0)
	v.SetDefault("cohere.web_search", true)
	v.SetDefault("cohere.base_url", "")

	v.SetDefault("claude.api", "")
	v.SetDefault("claude.model", "claude-3-haiku-20240307")
	v.SetDefault("claude.use_model", 0)
	v.SetDefault("claude.max_tokens", DefaultClaudeMaxTokens)
	v.SetDefault("claude.anthropic_version", DefaultAnthropicVersion)
	v.SetDefault("claude.base_url", "")

	v.SetDefault("openai.api", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.use_model", 0)
	v.SetDefault("openai.base_url", "")

	v.SetDefault("general.timeout", DefaultTimeout)
	v.SetDefault("general.cache_dir", "")

	theme := markdown.DefaultTheme()
	v.SetDefault("theme.quote_indicator", theme.QuoteIndicator)
	v.SetDefault("theme.quote_foreground", theme.QuoteForeground)
	v.SetDefault("theme.code_foreground", theme.CodeForeground)
	v.SetDefault("theme.code_background", theme.CodeBackground)
}

// DefaultConfigDirectory is $XDG_CONFIG_HOME/converse.
func DefaultConfigDirectory() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine config directory")
	}
	return filepath.Join(dir, AppName), nil
}

// NewViper builds a viper instance with defaults, environment overrides and the
// config file. An empty configFile looks for config.{toml,yaml,json} in the
// default config directory and tolerates its absence.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", configFile)
		}
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config")
		return v, nil
	}

	dir, err := DefaultConfigDirectory()
	if err != nil {
		return nil, err
	}
	v.SetConfigName("config")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "could not read config file")
		}
		log.Debug().Str("dir", dir).Msg("No config file found, using defaults")
		return v, nil
	}
	log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config")
	return v, nil
}

// LoadConfig decodes the viper state into a Config.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}
	if cfg.General.Timeout <= 0 {
		cfg.General.Timeout = DefaultTimeout
	}
	if cfg.Claude.MaxTokens <= 0 {
		cfg.Claude.MaxTokens = DefaultClaudeMaxTokens
	}
	if cfg.Claude.AnthropicVersion == "" {
		cfg.Claude.AnthropicVersion = DefaultAnthropicVersion
	}
	return cfg, nil
}
