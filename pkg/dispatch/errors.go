package dispatch

import (
	"fmt"
	"net/url"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/pkg/errors"
)

// ConnectionFailedText is shown instead of an answer when no response arrived.
const ConnectionFailedText = "Could not connect to a server."

// ErrProviderMismatch is returned when a session is already bound to another
// provider. Nothing is sent and nothing is written.
var ErrProviderMismatch = errors.New("session is bound to another provider")

// TransportError is returned when the request could not be sent or the
// response could not be read. Nothing was written to the session.
type TransportError struct {
	Provider types.ProviderName
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: could not reach provider: %v", e.Provider, e.Err)
}

func (e *TransportError) Cause() error {
	return e.Err
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Describe is the text a front-end shows for a finished exchange: the answer
// on success, the HTTP status otherwise.
func Describe(result *conversation.ExchangeResult, err error) string {
	if IsTransportFailure(err) {
		return ConnectionFailedText
	}
	if result == nil {
		if err != nil {
			return err.Error()
		}
		return ""
	}
	if result.Succeeded() {
		return result.Answer
	}
	return result.StatusText()
}

// stripURL drops the request URL from net/http errors, it may carry an API key.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return errors.Wrap(uerr.Err, uerr.Op)
	}
	return err
}
