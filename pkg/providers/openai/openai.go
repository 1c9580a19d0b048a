package openai

import (
	"encoding/json"
	"net/http"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/settings"
	go_openai "github.com/sashabaranov/go-openai"
)

const DefaultURL = "https://api.openai.com/v1/chat/completions"

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
	return h
}

func (a *Adapter) BuildRequest(s *settings.ProviderSettings, history []conversation.Turn, query string) ([]byte, error) {
	var msgs_ []go_openai.ChatCompletionMessage
	for _, t := range providers.ReplayHistory(s, history) {
		msgs_ = append(msgs_, go_openai.ChatCompletionMessage{
			Role:    providers.AssistantRole(t.Role),
			Content: t.Text,
		})
	}
	msgs_ = append(msgs_, go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleUser,
		Content: query,
	})

	req := go_openai.ChatCompletionRequest{
		Model:    s.Model,
		Messages: msgs_,
	}
	if s.MaxTokens > 0 {
		req.MaxTokens = s.MaxTokens
	}
	return json.Marshal(req)
}

func (a *Adapter) ExtractAnswer(body []byte) (string, error) {
	var resp go_openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.Malformed("openai: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", providers.Malformed("openai: no choices[0]")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Adapter) DescribeError(body []byte) string {
	var resp go_openai.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == nil {
		return ""
	}
	return resp.Error.Message
}

var _ providers.Adapter = (*Adapter)(nil)
var _ providers.ErrorDescriber = (*Adapter)(nil)
