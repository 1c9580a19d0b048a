package events

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/pkg/errors"
)

type EventType string

const (
	EventTypeExchangeStarted   EventType = "exchange-started"
	EventTypeExchangeCompleted EventType = "exchange-completed"
	EventTypeExchangeFailed    EventType = "exchange-failed"
)

// TopicExchanges is the topic every exchange event is published on.
const TopicExchanges = "exchanges"

// ExchangeEvent reports the progress of a single question/answer exchange.
// Events never carry credentials or endpoints.
type ExchangeEvent struct {
	Type          EventType          `json:"type"`
	CorrelationID string             `json:"correlation_id"`
	SessionPath   string             `json:"session_path"`
	Provider      types.ProviderName `json:"provider"`
	Question      string             `json:"question,omitempty"`
	Answer        string             `json:"answer,omitempty"`
	StatusCode    int                `json:"status_code,omitempty"`
	Degraded      bool               `json:"degraded,omitempty"`
	Error         string             `json:"error,omitempty"`
	Time          time.Time          `json:"time"`
}

func NewExchangeEvent(t EventType, correlationID, sessionPath string, provider types.ProviderName) *ExchangeEvent {
	return &ExchangeEvent{
		Type:          t,
		CorrelationID: correlationID,
		SessionPath:   sessionPath,
		Provider:      provider,
		Time:          time.Now(),
	}
}

func NewEventFromJson(b []byte) (*ExchangeEvent, error) {
	var e ExchangeEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not parse exchange event")
	}
	switch e.Type {
	case EventTypeExchangeStarted, EventTypeExchangeCompleted, EventTypeExchangeFailed:
		return &e, nil
	default:
		return nil, errors.Errorf("unknown event type %q", e.Type)
	}
}
