// Package providers defines the capability set every chat backend implements.
// The concrete adapters live in the gemini, cohere, claude and openai
// subpackages; factory maps a ProviderName to its adapter.
package providers

import (
	"net/http"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/pkg/errors"
)

// ErrMalformedResponse is returned by ExtractAnswer when the body is not JSON or
// the answer is missing at the expected path.
var ErrMalformedResponse = errors.New("malformed provider response")

// Adapter translates between the normalized conversation model and one backend's wire schema.
type Adapter interface {
	// Endpoint is the URL the request is POSTed to.
	Endpoint(s *settings.ProviderSettings) (string, error)
	// Headers holds authentication and content type headers.
	Headers(s *settings.ProviderSettings) http.Header
	// BuildRequest serializes the seed conversation from s, then history, then query.
	BuildRequest(s *settings.ProviderSettings, history []conversation.Turn, query string) ([]byte, error)
	// ExtractAnswer returns the answer text of a success response.
	ExtractAnswer(body []byte) (string, error)
}

// ErrorDescriber is implemented by adapters that can pull the provider's error
// message out of a non-success body. The message is only logged.
type ErrorDescriber interface {
	DescribeError(body []byte) string
}

// ReplayHistory returns the seed turns followed by the session turns.
func ReplayHistory(s *settings.ProviderSettings, history []conversation.Turn) []conversation.Turn {
	ret := make([]conversation.Turn, 0, len(s.ConversationInput)+len(history))
	ret = append(ret, s.ConversationInput...)
	ret = append(ret, history...)
	return ret
}

// AssistantRole maps the stored "model" role to the "assistant" vocabulary used
// by Claude and OpenAI. Other roles pass through.
func AssistantRole(r conversation.Role) string {
	if r == conversation.RoleModel {
		return "assistant"
	}
	return string(r)
}

// Malformed wraps ErrMalformedResponse with detail.
func Malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedResponse, format, args...)
}
