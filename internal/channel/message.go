package channel

import (
	"encoding/json"
	"errors"
)

// Inbound event types sent by the analysis backend.
const (
	EventConnected         = "connected"
	EventAnalysisStarted   = "analysis_started"
	EventAgentMessage      = "agent_message"
	EventApprovalRequired  = "approval_required"
	EventApprovalProcessed = "approval_processed"
	EventAnalysisComplete  = "analysis_complete"
	EventError             = "error"
)

// Local events raised by the manager itself.
const (
	EventConnectionState  = "connection_state"
	EventConnectionFailed = "connection_failed"
)

// Outbound frame types.
const (
	TypeStartAnalysis    = "start_analysis"
	TypeApprovalDecision = "approval_decision"
	TypePing             = "ping"
)

var errMissingType = errors.New("frame has no type")

// Message is one inbound frame. Payload holds the whole frame untouched;
// consumers decode the fields they care about.
type Message struct {
	Type    string
	Payload json.RawMessage
}

func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

func parseFrame(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Message{}, err
	}
	if head.Type == "" {
		return Message{}, errMissingType
	}

	payload := make(json.RawMessage, len(data))
	copy(payload, data)
	return Message{Type: head.Type, Payload: payload}, nil
}

func localMessage(eventType string, fields map[string]interface{}) Message {
	frame := map[string]interface{}{"type": eventType}
	for k, v := range fields {
		frame[k] = v
	}
	data, _ := json.Marshal(frame)
	return Message{Type: eventType, Payload: data}
}

// StatePayload is the body of a connection_state event.
type StatePayload struct {
	State State `json:"state"`
}

// FailedPayload is the body of a connection_failed event.
type FailedPayload struct {
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}
