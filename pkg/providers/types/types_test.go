package types

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderName(t *testing.T) {
	cases := []struct {
		in       string
		expected ProviderName
	}{
		{"Gemini", ProviderGemini},
		{"cohere", ProviderCohere},
		{" CLAUDE ", ProviderClaude},
		{"openai", ProviderOpenAI},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			p, err := ParseProviderName(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p)
		})
	}
}

func TestParseProviderNameUnknown(t *testing.T) {
	_, err := ParseProviderName("mistral")
	require.Error(t, err)
	assert.Equal(t, ErrUnknownProvider, errors.Cause(err))
	assert.False(t, ProviderName("mistral").IsValid())
}

func TestIsValidRequiresCanonicalName(t *testing.T) {
	for _, p := range AllProviders() {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, ProviderName("gemini").IsValid())
	assert.False(t, ProviderName(" OpenAI").IsValid())
	assert.False(t, ProviderName("").IsValid())
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "openai", ProviderOpenAI.Slug())
	assert.Equal(t, "gemini", ProviderGemini.Slug())
}
