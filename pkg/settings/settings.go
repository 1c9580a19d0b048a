package settings

import (
	"sort"
	"time"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/markdown"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// ProviderSettings is the resolved configuration of one backend.
type ProviderSettings struct {
	API string `yaml:"api,omitempty" mapstructure:"api"`
	// Model is the backend model identifier, e.g. "gemini-1.5-flash".
	Model string `yaml:"model,omitempty" mapstructure:"model"`
	// UseModel orders providers when presenting a choice. 0 disables the provider.
	UseModel int `yaml:"use_model" mapstructure:"use_model"`
	// ConversationInput is replayed before the session history on every request.
	// It is never written to the session file.
	ConversationInput []conversation.Turn `yaml:"conversation_input,omitempty" mapstructure:"conversation_input"`

	MaxTokens        int    `yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	AnthropicVersion string `yaml:"anthropic_version,omitempty" mapstructure:"anthropic_version"`
	WebSearch        bool   `yaml:"web_search,omitempty" mapstructure:"web_search"`
	BaseURL          string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

func (s *ProviderSettings) Clone() *ProviderSettings {
	return clone.Clone(s).(*ProviderSettings)
}

func (s *ProviderSettings) Enabled() bool {
	return s != nil && s.UseModel != 0
}

type GeneralSettings struct {
	// Timeout bounds a single exchange, network call included.
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheDir string        `yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`
}

type Config struct {
	Gemini  ProviderSettings `yaml:"gemini" mapstructure:"gemini"`
	Cohere  ProviderSettings `yaml:"cohere" mapstructure:"cohere"`
	Claude  ProviderSettings `yaml:"claude" mapstructure:"claude"`
	OpenAI  ProviderSettings `yaml:"openai" mapstructure:"openai"`
	General GeneralSettings  `yaml:"general" mapstructure:"general"`
	Theme   markdown.Theme   `yaml:"theme" mapstructure:"theme"`
}

func (c *Config) Clone() *Config {
	return clone.Clone(c).(*Config)
}

// For returns a copy of the settings of the given provider.
func (c *Config) For(name types.ProviderName) (*ProviderSettings, error) {
	var s *ProviderSettings
	switch name {
	case types.ProviderGemini:
		s = &c.Gemini
	case types.ProviderCohere:
		s = &c.Cohere
	case types.ProviderClaude:
		s = &c.Claude
	case types.ProviderOpenAI:
		s = &c.OpenAI
	default:
		return nil, errors.Wrapf(types.ErrUnknownProvider, "%q", name)
	}
	return s.Clone(), nil
}

// EnabledProviders returns the providers with a non-zero use_model, highest first.
// Providers with equal priority keep their canonical order.
func (c *Config) EnabledProviders() []types.ProviderName {
	type entry struct {
		name     types.ProviderName
		priority int
	}
	entries := []entry{}
	for _, name := range types.AllProviders() {
		s, err := c.For(name)
		if err != nil || !s.Enabled() {
			continue
		}
		entries = append(entries, entry{name: name, priority: s.UseModel})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority > entries[j].priority
	})

	ret := make([]types.ProviderName, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.name)
	}
	return ret
}
