package factory

import (
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/providers/claude"
	"github.com/go-go-golems/converse/pkg/providers/cohere"
	"github.com/go-go-golems/converse/pkg/providers/gemini"
	"github.com/go-go-golems/converse/pkg/providers/openai"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/pkg/errors"
)

// AdapterFactory resolves a provider name to the adapter speaking its wire format.
type AdapterFactory interface {
	NewAdapter(name types.ProviderName) (providers.Adapter, error)
	SupportedProviders() []types.ProviderName
}

// StandardAdapterFactory knows the four built-in backends.
type StandardAdapterFactory struct{}

func NewStandardAdapterFactory() *StandardAdapterFactory {
	return &StandardAdapterFactory{}
}

func (f *StandardAdapterFactory) NewAdapter(name types.ProviderName) (providers.Adapter, error) {
	switch name {
	case types.ProviderGemini:
		return gemini.New(), nil
	case types.ProviderCohere:
		return cohere.New(), nil
	case types.ProviderClaude:
		return claude.New(), nil
	case types.ProviderOpenAI:
		return openai.New(), nil
	default:
		return nil, errors.Wrapf(types.ErrUnknownProvider, "%q", name)
	}
}

func (f *StandardAdapterFactory) SupportedProviders() []types.ProviderName {
	return types.AllProviders()
}

var _ AdapterFactory = (*StandardAdapterFactory)(nil)
