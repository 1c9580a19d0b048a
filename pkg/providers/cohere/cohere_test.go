package cohere

import (
	"testing"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestFlattensHistory(t *testing.T) {
	s := &settings.ProviderSettings{
		API:               "key",
		WebSearch:         true,
		ConversationInput: []conversation.Turn{conversation.NewUserTurn("seed")},
	}
	history := []conversation.Turn{
		conversation.NewUserTurn("q1"),
		conversation.NewModelTurn("a1"),
	}
	body, err := New().BuildRequest(s, history, "q2")
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"message": "q2",
		"chat_history": [
			{"role":"user","message":"seed"},
			{"role":"user","message":"q1"},
			{"role":"model","message":"a1"}
		],
		"connectors": [{"id":"web-search"}]
	}`, string(body))
}

func TestBuildRequestWithoutWebSearch(t *testing.T) {
	body, err := New().BuildRequest(&settings.ProviderSettings{Model: "command-r"}, nil, "hi")
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"command-r","message":"hi","chat_history":[]}`, string(body))
}

func TestEndpointAndHeaders(t *testing.T) {
	a := New()
	s := &settings.ProviderSettings{API: "test-api-key"}

	endpoint, err := a.Endpoint(s)
	require.NoError(t, err)
	assert.Equal(t, "https://api.cohere.ai/v1/chat", endpoint)

	h := a.Headers(s)
	assert.Equal(t, "Bearer test-api-key", h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}

func TestExtractAnswer(t *testing.T) {
	answer, err := New().ExtractAnswer([]byte(`{"response_id":"x","text":"hello there","generation_id":"y"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello there", answer)

	answer, err = New().ExtractAnswer([]byte(`{"message":"invalid api token"}`))
	assert.Equal(t, "", answer)
	assert.Equal(t, providers.ErrMalformedResponse, errors.Cause(err))

	_, err = New().ExtractAnswer([]byte(`<html>`))
	assert.Equal(t, providers.ErrMalformedResponse, errors.Cause(err))
}
