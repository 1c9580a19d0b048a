package types

import (
	"strings"

	"github.com/pkg/errors"
)

// ProviderName identifies one of the supported chat backends.
type ProviderName string

const (
	ProviderGemini ProviderName = "Gemini"
	ProviderCohere ProviderName = "Cohere"
	ProviderClaude ProviderName = "Claude"
	ProviderOpenAI ProviderName = "OpenAI"
)

var ErrUnknownProvider = errors.New("unknown provider")

// AllProviders lists the providers in their canonical order.
func AllProviders() []ProviderName {
	return []ProviderName{ProviderGemini, ProviderCohere, ProviderClaude, ProviderOpenAI}
}

// ParseProviderName matches s case-insensitively against the known providers.
func ParseProviderName(s string) (ProviderName, error) {
	for _, p := range AllProviders() {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownProvider, "%q", s)
}

// IsValid reports whether p is exactly one of the canonical names. Use
// ParseProviderName for user input.
func (p ProviderName) IsValid() bool {
	for _, known := range AllProviders() {
		if p == known {
			return true
		}
	}
	return false
}

// Slug is the lowercase form used for config sections and env variables.
func (p ProviderName) Slug() string {
	return strings.ToLower(string(p))
}

func (p ProviderName) String() string {
	return string(p)
}
