package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// EventSink receives exchange events. Publishing failures are reported but
// callers treat them as non-fatal.
type EventSink interface {
	PublishEvent(ctx context.Context, event *ExchangeEvent) error
}

// WatermillSink publishes events as JSON messages on a watermill publisher.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(ctx context.Context, event *ExchangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published event to watermill")
	return nil
}

// NullSink drops every event.
type NullSink struct{}

func (NullSink) PublishEvent(context.Context, *ExchangeEvent) error {
	return nil
}

var _ EventSink = (*WatermillSink)(nil)
var _ EventSink = NullSink{}
