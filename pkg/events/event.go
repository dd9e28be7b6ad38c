package events

import "time"

const (
	TypeDecisionsSubmitted = "DECISIONS_SUBMITTED"
	TypeSessionClosed      = "SESSION_CLOSED"
)

// Event is anything published on the review bus.
type Event interface {
	// EventType is the subject suffix, e.g. "DECISIONS_SUBMITTED".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// DecisionsSubmitted announces one decision batch. Tools and decisions are
// index-aligned with the request's actions.
func DecisionsSubmitted(sessionID string, tools []string, decisions []string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeDecisionsSubmitted,
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"tools":        tools,
			"decisions":    decisions,
			"submitted_at": at.UTC().Format(time.RFC3339Nano),
		},
		OccurredAt: at,
	}
}

func SessionClosed(sessionID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionClosed,
		Data:       map[string]interface{}{"session_id": sessionID},
		OccurredAt: at,
	}
}
