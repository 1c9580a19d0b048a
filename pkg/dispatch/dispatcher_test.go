package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/events"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/go-go-golems/converse/pkg/security"
	"github.com/go-go-golems/converse/pkg/sessions"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*events.ExchangeEvent
}

func (r *recordingSink) PublishEvent(_ context.Context, e *events.ExchangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := []events.EventType{}
	for _, e := range r.events {
		ret = append(ret, e.Type)
	}
	return ret
}

type fixture struct {
	store      *sessions.Store
	dispatcher *Dispatcher
	sink       *recordingSink
	path       string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := sessions.NewStore(sessions.WithDirectory(t.TempDir()))
	require.NoError(t, err)
	sink := &recordingSink{}
	opts = append([]Option{
		WithOutboundURLOptions(security.LocalTestingOptions()),
		WithEventSink(sink),
	}, opts...)
	return &fixture{
		store:      store,
		dispatcher: New(store, opts...),
		sink:       sink,
		path:       store.NewSessionPath(time.Now()),
	}
}

func openAIServer(t *testing.T, status int, body string, seen chan<- []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen <- b
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func openAISettings(url string) *settings.ProviderSettings {
	return &settings.ProviderSettings{API: "sk-test", Model: "gpt-test", UseModel: 1, BaseURL: url}
}

func TestSendSuccessPersistsExchange(t *testing.T) {
	f := newFixture(t)
	server := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`, nil)

	result, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "hi", f.path, openAISettings(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Answer)
	assert.Equal(t, 200, result.StatusCode)
	assert.False(t, result.Degraded)
	assert.Equal(t, "hello", Describe(result, err))

	doc := f.store.Read(f.path)
	assert.Equal(t, "OpenAI", doc.Model)
	assert.Equal(t, []conversation.Turn{
		conversation.NewUserTurn("hi"),
		conversation.NewModelTurn("hello"),
	}, doc.Chat)

	assert.Equal(t, []events.EventType{events.EventTypeExchangeStarted, events.EventTypeExchangeCompleted}, f.sink.types())
	assert.Equal(t, f.sink.events[0].CorrelationID, f.sink.events[1].CorrelationID)
}

func TestSendReplaysHistoryWithoutStoringSeed(t *testing.T) {
	f := newFixture(t)
	seen := make(chan []byte, 2)
	server := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"a"}}]}`, seen)

	ps := openAISettings(server.URL)
	ps.ConversationInput = []conversation.Turn{{Role: "system", Text: "seed"}}

	_, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "q1", f.path, ps)
	require.NoError(t, err)
	<-seen
	_, err = f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "q2", f.path, ps)
	require.NoError(t, err)

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(<-seen, &req))
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "seed", req.Messages[0].Content)
	assert.Equal(t, "q1", req.Messages[1].Content)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "q2", req.Messages[3].Content)

	doc := f.store.Read(f.path)
	require.Len(t, doc.Chat, 4)
	for _, turn := range doc.Chat {
		assert.NotEqual(t, "seed", turn.Text)
	}
}

func TestSendErrorStatusDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	server := openAIServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, nil)

	result, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "hi", f.path, openAISettings(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 429, result.StatusCode)
	assert.Equal(t, "", result.Answer)
	assert.Equal(t, "429 Too Many Requests", Describe(result, err))

	_, statErr := os.Stat(f.path)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, []events.EventType{events.EventTypeExchangeStarted, events.EventTypeExchangeFailed}, f.sink.types())
}

func TestSendTransportFailure(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	result, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "hi", f.path, openAISettings(url))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsTransportFailure(err))
	assert.Equal(t, ConnectionFailedText, Describe(result, err))

	_, statErr := os.Stat(f.path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSendMalformedBodyIsDegraded(t *testing.T) {
	f := newFixture(t)
	server := openAIServer(t, http.StatusOK, `<html>gateway</html>`, nil)

	result, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "hi", f.path, openAISettings(server.URL))
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, "", result.Answer)
	assert.Equal(t, int64(1), f.dispatcher.MalformedResponses())

	doc := f.store.Read(f.path)
	require.Len(t, doc.Chat, 2)
	assert.Equal(t, "", doc.Chat[1].Text)
}

func TestSendRefusesOtherProviderOnBoundSession(t *testing.T) {
	f := newFixture(t)
	openai := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"a"}}]}`, nil)
	cohereHits := 0
	cohere := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cohereHits++
		_, _ = w.Write([]byte(`{"text":"b"}`))
	}))
	defer cohere.Close()

	_, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "q1", f.path, openAISettings(openai.URL))
	require.NoError(t, err)

	result, err := f.dispatcher.Send(context.Background(), types.ProviderCohere, "q2", f.path,
		&settings.ProviderSettings{API: "k", UseModel: 1, BaseURL: cohere.URL})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, ErrProviderMismatch, errors.Cause(err))
	assert.Equal(t, 0, cohereHits)

	doc := f.store.Read(f.path)
	assert.Equal(t, "OpenAI", doc.Model)
	assert.Len(t, doc.Chat, 2)

	_, err = f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "q3", f.path, openAISettings(openai.URL))
	require.NoError(t, err)
	assert.Len(t, f.store.Read(f.path).Chat, 4)
	assert.Equal(t, events.EventTypeExchangeFailed, f.sink.types()[3])
}

func TestSendRefusesUnknownBinding(t *testing.T) {
	f := newFixture(t)
	openai := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"a"}}]}`, nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.path), 0o755))
	require.NoError(t, os.WriteFile(f.path, []byte(`{"model":"Mistral","chat":[]}`), 0o600))

	_, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "q", f.path, openAISettings(openai.URL))
	assert.Equal(t, ErrProviderMismatch, errors.Cause(err))
}

func TestSendGeminiRequestBody(t *testing.T) {
	f := newFixture(t)
	var gotPath, gotKey string
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hey"}]}}]}`))
	}))
	defer server.Close()

	ps := &settings.ProviderSettings{API: "g-key", Model: "gemini-test", UseModel: 1, BaseURL: server.URL}
	result, err := f.dispatcher.Send(context.Background(), types.ProviderGemini, "hi", f.path, ps)
	require.NoError(t, err)
	assert.Equal(t, "hey", result.Answer)
	assert.Equal(t, "/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "g-key", gotKey)
	assert.Equal(t, map[string]interface{}{
		"contents": []interface{}{
			map[string]interface{}{
				"role":  "user",
				"parts": []interface{}{map[string]interface{}{"text": "hi"}},
			},
		},
	}, got)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := newFixture(t, WithTimeout(50*time.Millisecond))
	_, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "hi", f.path, openAISettings(server.URL))
	require.Error(t, err)
	assert.True(t, IsTransportFailure(err))
}

func TestSendRejectsDisallowedEndpoint(t *testing.T) {
	store, err := sessions.NewStore(sessions.WithDirectory(t.TempDir()))
	require.NoError(t, err)
	d := New(store)

	_, err = d.Send(context.Background(), types.ProviderOpenAI, "hi", filepath.Join(store.Directory(), "1-history.json"),
		openAISettings("http://127.0.0.1:1/v1/chat/completions"))
	require.Error(t, err)
	assert.Equal(t, security.ErrDisallowedEndpoint, errors.Cause(err))
	assert.False(t, IsTransportFailure(err))
}

func TestSendUnknownProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatcher.Send(context.Background(), types.ProviderName("Mistral"), "hi", f.path, &settings.ProviderSettings{})
	assert.Equal(t, types.ErrUnknownProvider, errors.Cause(err))

	_, err = f.dispatcher.Send(context.Background(), types.ProviderName("gemini"), "hi", f.path, &settings.ProviderSettings{})
	assert.Equal(t, types.ErrUnknownProvider, errors.Cause(err))
}

func TestSendPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	server := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"a"}}]}`, nil)
	require.NoError(t, os.MkdirAll(f.path, 0o755))

	result, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "hi", f.path, openAISettings(server.URL))
	require.Error(t, err)
	assert.Equal(t, sessions.ErrPersistence, errors.Cause(err))
	assert.Equal(t, "a", result.Answer)
}

func TestSendSerializesPerSession(t *testing.T) {
	f := newFixture(t)
	server := openAIServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"a"}}]}`, nil)
	ps := openAISettings(server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.dispatcher.Send(context.Background(), types.ProviderOpenAI, "q", f.path, ps)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.Read(f.path).Chat, 16)
}
