package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WatermillZerologAdapter routes watermill's internal logging through zerolog,
// tagged with component=watermill.
type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

func NewWatermill(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{
		logger: logger.With().Str("component", "watermill").Logger(),
	}
}

// watermill.LogFields is a named map type, zerolog only accepts the plain one.
func (w *WatermillZerologAdapter) write(e *zerolog.Event, msg string, fields watermill.LogFields) {
	e.Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.write(w.logger.Error().Err(err), msg, fields)
}

// Info is logged at debug, watermill reports every subscription at info.
func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.write(w.logger.Debug(), msg, fields)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.write(w.logger.Debug(), msg, fields)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.write(w.logger.Trace(), msg, fields)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillZerologAdapter{logger: w.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}

// CorrelationIDMetadataKey is the message metadata key that ties every event of
// one exchange together.
const CorrelationIDMetadataKey = "correlation_id"

type correlationIDKeyType string

const correlationIDKey correlationIDKeyType = "correlation_id"

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext returns the id stored by ContextWithCorrelationID,
// or a generated one prefixed with "gen_" when there is none.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v
	}
	log.Ctx(ctx).Trace().Msg("No correlation ID in context, generating one")
	return "gen_" + shortuuid.New()
}

// CorrelationPublisherDecorator stamps outgoing messages with the correlation
// id of their context unless one is already set.
type CorrelationPublisherDecorator struct {
	message.Publisher
}

// CorrelationMiddleware puts the correlation id of an incoming message back
// into its context, so handlers see the id of the exchange that produced it.
func CorrelationMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if id := msg.Metadata.Get(CorrelationIDMetadataKey); id != "" {
			msg.SetContext(ContextWithCorrelationID(msg.Context(), id))
		}
		return h(msg)
	}
}

func (c CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		if messages[i].Metadata.Get(CorrelationIDMetadataKey) != "" {
			continue
		}
		messages[i].Metadata.Set(CorrelationIDMetadataKey, CorrelationIDFromContext(messages[i].Context()))
	}
	return c.Publisher.Publish(topic, messages...)
}
