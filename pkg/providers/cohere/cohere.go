package cohere

import (
	"encoding/json"
	"net/http"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/settings"
)

const DefaultURL = "https://api.cohere.ai/v1/chat"

// WebSearchConnector is the connector id enabling Cohere's web grounding.
const WebSearchConnector = "web-search"

// ChatMessage is one entry of chat_history. Roles are passed through unchanged.
type ChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type Connector struct {
	ID string `json:"id"`
}

// ChatRequest represents the request body of the v1 chat API
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Message     string        `json:"message"`
	ChatHistory []ChatMessage `json:"chat_history"`
	Connectors  []Connector   `json:"connectors,omitempty"`
}

// ChatResponse only decodes the fields the adapter reads
type ChatResponse struct {
	Text *string `json:"text"`
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Endpoint(s *settings.ProviderSettings) (string, error) {
	if s.BaseURL != "" {
		return s.BaseURL, nil
	}
	return DefaultURL, nil
}

func (a *Adapter) Headers(s *settings.ProviderSettings) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.API)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

// BuildRequest flattens seed and session turns into chat_history and carries the
// query in message.
func (a *Adapter) BuildRequest(s *settings.ProviderSettings, history []conversation.Turn, query string) ([]byte, error) {
	req := ChatRequest{
		Model:       s.Model,
		Message:     query,
		ChatHistory: []ChatMessage{},
	}
	for _, t := range providers.ReplayHistory(s, history) {
		req.ChatHistory = append(req.ChatHistory, ChatMessage{Role: string(t.Role), Message: t.Text})
	}
	if s.WebSearch {
		req.Connectors = []Connector{{ID: WebSearchConnector}}
	}
	return json.Marshal(req)
}

func (a *Adapter) ExtractAnswer(body []byte) (string, error) {
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.Malformed("cohere: %v", err)
	}
	if resp.Text == nil {
		return "", providers.Malformed("cohere: no text field")
	}
	return *resp.Text, nil
}

var _ providers.Adapter = (*Adapter)(nil)

func (a *Adapter) DescribeError(body []byte) string {
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Message
}

var _ providers.ErrorDescriber = (*Adapter)(nil)
