package gemini

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestEmptyHistory(t *testing.T) {
	body, err := New().BuildRequest(&settings.ProviderSettings{Model: "m"}, nil, "hi")
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "user", req.Contents[0].Role)
	require.Len(t, req.Contents[0].Parts, 1)
	assert.Equal(t, "hi", req.Contents[0].Parts[0].Text)
}

func TestBuildRequestReplayOrderKeepsNativeRoles(t *testing.T) {
	s := &settings.ProviderSettings{
		ConversationInput: []conversation.Turn{
			conversation.NewUserTurn("seed q"),
			conversation.NewModelTurn("seed a"),
		},
	}
	history := []conversation.Turn{
		conversation.NewUserTurn("q1"),
		conversation.NewModelTurn("a1"),
	}
	body, err := New().BuildRequest(s, history, "q2")
	require.NoError(t, err)

	assert.JSONEq(t, `{"contents":[
		{"role":"user","parts":[{"text":"seed q"}]},
		{"role":"model","parts":[{"text":"seed a"}]},
		{"role":"user","parts":[{"text":"q1"}]},
		{"role":"model","parts":[{"text":"a1"}]},
		{"role":"user","parts":[{"text":"q2"}]}
	]}`, string(body))
}

func TestEndpointCarriesKeyAsQueryParameter(t *testing.T) {
	a := New()
	endpoint, err := a.Endpoint(&settings.ProviderSettings{API: "secret&key", Model: "gemini-pro"})
	require.NoError(t, err)

	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	assert.Equal(t, "generativelanguage.googleapis.com", u.Host)
	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", u.Path)
	assert.Equal(t, "secret&key", u.Query().Get("key"))

	assert.Equal(t, "application/json", a.Headers(nil).Get("Content-Type"))
	assert.Empty(t, a.Headers(nil).Get("Authorization"))

	_, err = a.Endpoint(&settings.ProviderSettings{API: "k"})
	assert.Error(t, err)
}

func TestEndpointBaseURLOverride(t *testing.T) {
	endpoint, err := New().Endpoint(&settings.ProviderSettings{API: "k", Model: "m", BaseURL: "http://127.0.0.1:9999/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/v1/models/m:generateContent?key=k", endpoint)
}

func TestExtractAnswer(t *testing.T) {
	answer, err := New().ExtractAnswer([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello"},{"text":"ignored"}],"role":"model"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", answer)
}

func TestExtractAnswerMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"candidates":[{"content":{"parts":[]}}]}`} {
		answer, err := New().ExtractAnswer([]byte(body))
		assert.Equal(t, "", answer)
		assert.Equal(t, providers.ErrMalformedResponse, errors.Cause(err), body)
	}
}
