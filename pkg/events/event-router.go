package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/converse/pkg/helpers"
)

// ExchangeEventHandler receives parsed exchange events.
type ExchangeEventHandler func(ctx context.Context, e *ExchangeEvent) error

// EventRouter is an in-process pub/sub bus for exchange events.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = helpers.CorrelationPublisherDecorator{Publisher: goPubSub}
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(helpers.CorrelationMiddleware)
	ret.router = router

	return ret, nil
}

// Sink returns an EventSink publishing on TopicExchanges.
func (e *EventRouter) Sink() *WatermillSink {
	return NewWatermillSink(e.Publisher, TopicExchanges)
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}

	log.Debug().Msg("Closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	log.Debug().Msg("Router closed")

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// AddExchangeHandler registers h for every event on TopicExchanges. Messages
// that cannot be parsed are logged and acked.
func (e *EventRouter) AddExchangeHandler(name string, h ExchangeEventHandler) {
	e.AddHandler(name, TopicExchanges, func(msg *message.Message) error {
		ev, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping unparseable exchange event")
			return nil
		}
		return h(msg.Context(), ev)
	})
}

// PrintEvents returns a handler that writes every message to w as JSON.
// Question and answer text is only included in verbose mode.
func (e *EventRouter) PrintEvents(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		var s map[string]interface{}
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			return err
		}
		s["message_id"] = msg.UUID
		if !e.verbose {
			delete(s, "question")
			delete(s, "answer")
		}
		s_, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(s_))
		return err
	}
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
