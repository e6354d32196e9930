package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised by an accepted return transition
type Event struct {
	ID            string            `json:"id"`
	Type          Type              `json:"type"`
	CaseID        int64             `json:"case_id"`
	ReturnNumber  string            `json:"return_number"`
	Payload       map[string]string `json:"payload"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID
func NewEvent(eventType Type, caseID int64, returnNumber string, payload map[string]string, at time.Time) *Event {
	return NewEventWithCorrelation(eventType, caseID, returnNumber, payload, at, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain.
// Events raised by the same transition share one correlation id.
func NewEventWithCorrelation(eventType Type, caseID int64, returnNumber string, payload map[string]string, at time.Time, correlationID string) *Event {
	copied := make(map[string]string, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		CaseID:        caseID,
		ReturnNumber:  returnNumber,
		Payload:       copied,
		Timestamp:     at,
		CorrelationID: correlationID,
	}
}

// IdempotencyKey identifies one logical delivery of this event on a channel.
// Retries of the same emission reuse it so receivers can deduplicate.
func (e *Event) IdempotencyKey(channel string) string {
	return IdempotencyKey(e.Type, e.CaseID, channel)
}

// IdempotencyKey builds the (event code, case id, channel) key
func IdempotencyKey(eventType Type, caseID int64, channel string) string {
	return fmt.Sprintf("%s:%d:%s", eventType, caseID, channel)
}
