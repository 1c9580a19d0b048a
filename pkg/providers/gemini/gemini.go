package gemini

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Request struct {
	Contents []Content `json:"contents"`
}

type Candidate struct {
	Content struct {
		Parts []Part `json:"parts"`
	} `json:"content"`
}

type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Adapter talks to the generateContent endpoint. The API key travels as the
// key query parameter, so the endpoint URL must never be logged.
type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Endpoint(s *settings.ProviderSettings) (string, error) {
	if s.Model == "" {
		return "", errors.New("gemini: no model configured")
	}
	base := DefaultBaseURL
	if s.BaseURL != "" {
		base = strings.TrimRight(s.BaseURL, "/")
	}
	u, err := url.Parse(base + "/models/" + url.PathEscape(s.Model) + ":generateContent")
	if err != nil {
		return "", errors.Wrap(err, "gemini: invalid endpoint")
	}
	q := u.Query()
	q.Set("key", s.API)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Adapter) Headers(_ *settings.ProviderSettings) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

func (a *Adapter) BuildRequest(s *settings.ProviderSettings, history []conversation.Turn, query string) ([]byte, error) {
	req := Request{Contents: []Content{}}
	for _, t := range providers.ReplayHistory(s, history) {
		req.Contents = append(req.Contents, Content{Role: string(t.Role), Parts: []Part{{Text: t.Text}}})
	}
	req.Contents = append(req.Contents, Content{
		Role:  string(conversation.RoleUser),
		Parts: []Part{{Text: query}},
	})
	return json.Marshal(req)
}

func (a *Adapter) ExtractAnswer(body []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.Malformed("gemini: %v", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", providers.Malformed("gemini: no candidates[0].content.parts[0]")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

var _ providers.Adapter = (*Adapter)(nil)

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (a *Adapter) DescribeError(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Message
}

var _ providers.ErrorDescriber = (*Adapter)(nil)
