package claude

import (
	"encoding/json"
	"net/http"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/settings"
)

const DefaultURL = "https://api.anthropic.com/v1/messages"

const (
	defaultAPIVersion = settings.DefaultAnthropicVersion
	defaultMaxTokens  = settings.DefaultClaudeMaxTokens
)

// Message is one entry of the messages array.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the messages API request payload.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

// ContentBlock is one block of the response content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response represents the API's successful response.
type Response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
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
	version := s.AnthropicVersion
	if version == "" {
		version = defaultAPIVersion
	}
	h := http.Header{}
	h.Set("x-api-key", s.API)
	h.Set("anthropic-version", version)
	h.Set("Content-Type", "application/json")
	return h
}

func (a *Adapter) BuildRequest(s *settings.ProviderSettings, history []conversation.Turn, query string) ([]byte, error) {
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	req := Request{
		Model:     s.Model,
		MaxTokens: maxTokens,
		Messages:  []Message{},
	}
	for _, t := range providers.ReplayHistory(s, history) {
		req.Messages = append(req.Messages, Message{Role: providers.AssistantRole(t.Role), Content: t.Text})
	}
	req.Messages = append(req.Messages, Message{Role: string(conversation.RoleUser), Content: query})
	return json.Marshal(req)
}

func (a *Adapter) ExtractAnswer(body []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.Malformed("claude: %v", err)
	}
	if len(resp.Content) == 0 {
		return "", providers.Malformed("claude: no content[0]")
	}
	return resp.Content[0].Text, nil
}

func (a *Adapter) DescribeError(body []byte) string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Message
}

var _ providers.Adapter = (*Adapter)(nil)
var _ providers.ErrorDescriber = (*Adapter)(nil)
