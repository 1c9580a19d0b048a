package conversation

import (
	"fmt"
	"net/http"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a session. Turns are never edited after they are appended.
type Turn struct {
	Role Role   `json:"role" yaml:"role" mapstructure:"role"`
	Text string `json:"text" yaml:"text" mapstructure:"text"`
}

func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func NewModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Text: text}
}

// Document is the on-disk representation of a session.
//
// Model holds the provider the session is bound to. It is written once, on the
// first successful exchange, and never overwritten afterwards.
type Document struct {
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	Chat  []Turn `json:"chat" yaml:"chat"`
}

func NewDocument() *Document {
	return &Document{Chat: []Turn{}}
}

func (d *Document) IsBound() bool {
	return d != nil && d.Model != ""
}

// AppendExchange binds the provider if the document is not bound yet and appends
// the question/answer pair.
func (d *Document) AppendExchange(result *ExchangeResult, provider string) {
	if d.Model == "" {
		d.Model = provider
	}
	d.Chat = append(d.Chat, NewUserTurn(result.Question), NewModelTurn(result.Answer))
}

// ExchangeResult is the provider independent outcome of one dispatch.
type ExchangeResult struct {
	Question   string `json:"question" yaml:"question"`
	Answer     string `json:"answer" yaml:"answer"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Provider   string `json:"provider,omitempty" yaml:"provider,omitempty"`
	// Degraded is set when the backend answered with a success status but the
	// answer could not be extracted from the body.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

func (r *ExchangeResult) Succeeded() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusText renders the status the way net/http prints it, e.g. "429 Too Many Requests".
func (r *ExchangeResult) StatusText() string {
	if r == nil {
		return ""
	}
	text := http.StatusText(r.StatusCode)
	if text == "" {
		return fmt.Sprintf("%d", r.StatusCode)
	}
	return fmt.Sprintf("%d %s", r.StatusCode, text)
}
