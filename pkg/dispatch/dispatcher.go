// Package dispatch sends one question to a provider, normalizes the reply and
// records successful exchanges in the session store.
package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/events"
	"github.com/go-go-golems/converse/pkg/helpers"
	"github.com/go-go-golems/converse/pkg/helpers/httpclient"
	"github.com/go-go-golems/converse/pkg/providers"
	"github.com/go-go-golems/converse/pkg/providers/factory"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/go-go-golems/converse/pkg/security"
	"github.com/go-go-golems/converse/pkg/sessions"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 32 << 20

type Dispatcher struct {
	store      *sessions.Store
	client     *http.Client
	factory    factory.AdapterFactory
	sink       events.EventSink
	timeout    time.Duration
	urlOptions security.OutboundURLOptions

	// held for a whole exchange, separate from the store's own write lock
	locks     *helpers.KeyedMutex
	malformed atomic.Int64
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithTimeout bounds a single exchange. Zero or negative keeps the default.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithEventSink(sink events.EventSink) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sink = sink
		}
	}
}

func WithOutboundURLOptions(opts security.OutboundURLOptions) Option {
	return func(d *Dispatcher) {
		d.urlOptions = opts
	}
}

func WithAdapterFactory(f factory.AdapterFactory) Option {
	return func(d *Dispatcher) {
		if f != nil {
			d.factory = f
		}
	}
}

func New(store *sessions.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		client:  httpclient.New(),
		factory: factory.NewStandardAdapterFactory(),
		sink:    events.NullSink{},
		timeout: settings.DefaultTimeout,
		locks:   helpers.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Store() *sessions.Store {
	return d.store
}

// MalformedResponses counts success responses whose answer could not be extracted.
func (d *Dispatcher) MalformedResponses() int64 {
	return d.malformed.Load()
}

// Send asks provider the query in the context of the session stored at
// sessionPath.
//
// A non-2xx status is not an error: the result carries the status code and an
// empty answer, and the session is left untouched. Transport failures return a
// *TransportError. A session bound to another provider is refused with
// ErrProviderMismatch before anything is sent. Only 2xx exchanges are
// appended to the session, including degraded ones whose body could not be
// parsed.
func (d *Dispatcher) Send(
	ctx context.Context,
	provider types.ProviderName,
	query string,
	sessionPath string,
	ps *settings.ProviderSettings,
) (*conversation.ExchangeResult, error) {
	if !provider.IsValid() {
		return nil, errors.Wrapf(types.ErrUnknownProvider, "%q", provider)
	}
	if ps == nil {
		return nil, errors.Errorf("no settings for provider %s", provider)
	}
	adapter, err := d.factory.NewAdapter(provider)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.Lock(sessionPath)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	correlationID := uuid.NewString()
	ctx = helpers.ContextWithCorrelationID(ctx, correlationID)
	logger := log.With().
		Str("provider", provider.String()).
		Str("session", sessionPath).
		Str("correlation_id", correlationID).
		Logger()

	d.publish(ctx, events.EventTypeExchangeStarted, correlationID, sessionPath, provider, func(e *events.ExchangeEvent) {
		e.Question = query
	})

	doc := d.store.Read(sessionPath)
	if doc.IsBound() {
		bound, err := types.ParseProviderName(doc.Model)
		if err != nil || bound != provider {
			return nil, d.fail(ctx, correlationID, sessionPath, provider,
				errors.Wrapf(ErrProviderMismatch, "bound to %s, asked %s", doc.Model, provider))
		}
	}

	endpoint, err := adapter.Endpoint(ps)
	if err != nil {
		return nil, d.fail(ctx, correlationID, sessionPath, provider, err)
	}
	if err := security.ValidateOutboundURL(endpoint, d.urlOptions); err != nil {
		return nil, d.fail(ctx, correlationID, sessionPath, provider, err)
	}
	body, err := adapter.BuildRequest(ps, doc.Chat, query)
	if err != nil {
		return nil, d.fail(ctx, correlationID, sessionPath, provider, errors.Wrap(err, "could not build request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, d.fail(ctx, correlationID, sessionPath, provider, errors.Wrap(err, "could not create request"))
	}
	for k, vs := range adapter.Headers(ps) {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	// the endpoint is not logged, gemini carries the key in the query string
	logger.Debug().Int("history", len(doc.Chat)).Int("body_bytes", len(body)).Msg("Sending exchange")
	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.fail(ctx, correlationID, sessionPath, provider, &TransportError{Provider: provider, Err: stripURL(err)})
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, d.fail(ctx, correlationID, sessionPath, provider, &TransportError{Provider: provider, Err: stripURL(err)})
	}

	result := &conversation.ExchangeResult{
		Question:   query,
		StatusCode: resp.StatusCode,
		Provider:   provider.String(),
	}
	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Provider responded")

	if !result.Succeeded() {
		ev := logger.Warn().Int("status", resp.StatusCode)
		if describer, ok := adapter.(providers.ErrorDescriber); ok {
			if msg := describer.DescribeError(respBody); msg != "" {
				ev = ev.Str("provider_error", msg)
			}
		}
		ev.Msg("Provider returned an error status")
		d.publish(ctx, events.EventTypeExchangeFailed, correlationID, sessionPath, provider, func(e *events.ExchangeEvent) {
			e.StatusCode = result.StatusCode
			e.Error = result.StatusText()
		})
		return result, nil
	}

	answer, err := adapter.ExtractAnswer(respBody)
	if err != nil {
		d.malformed.Add(1)
		result.Degraded = true
		logger.Warn().Err(err).Int("body_bytes", len(respBody)).Msg("Could not extract answer, storing empty answer")
	} else {
		result.Answer = answer
	}

	if err := d.store.AppendExchange(sessionPath, result, provider); err != nil {
		logger.Error().Err(err).Msg("Could not persist exchange")
		d.publish(ctx, events.EventTypeExchangeFailed, correlationID, sessionPath, provider, func(e *events.ExchangeEvent) {
			e.StatusCode = result.StatusCode
			e.Error = err.Error()
		})
		return result, err
	}

	d.publish(ctx, events.EventTypeExchangeCompleted, correlationID, sessionPath, provider, func(e *events.ExchangeEvent) {
		e.Question = result.Question
		e.Answer = result.Answer
		e.StatusCode = result.StatusCode
		e.Degraded = result.Degraded
	})
	return result, nil
}

func (d *Dispatcher) fail(
	ctx context.Context,
	correlationID, sessionPath string,
	provider types.ProviderName,
	err error,
) error {
	log.Warn().Err(err).
		Str("provider", provider.String()).
		Str("session", sessionPath).
		Str("correlation_id", correlationID).
		Msg("Exchange failed")
	d.publish(ctx, events.EventTypeExchangeFailed, correlationID, sessionPath, provider, func(e *events.ExchangeEvent) {
		if IsTransportFailure(err) {
			e.Error = ConnectionFailedText
		} else {
			e.Error = err.Error()
		}
	})
	return err
}

func (d *Dispatcher) publish(
	ctx context.Context,
	t events.EventType,
	correlationID, sessionPath string,
	provider types.ProviderName,
	fill func(e *events.ExchangeEvent),
) {
	e := events.NewExchangeEvent(t, correlationID, sessionPath, provider)
	if fill != nil {
		fill(e)
	}
	// a cancelled exchange still reports how it ended
	if err := d.sink.PublishEvent(context.WithoutCancel(ctx), e); err != nil {
		log.Debug().Err(err).Str("event_type", string(t)).Msg("Could not publish exchange event")
	}
}
