package service

import (
	"encoding/json"

	"legal-review-client/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// StateChanged is the payload of a state topic message.
type StateChanged struct {
	Event string `json:"event"`
}

// PublisherService turns session notifications into state topic messages.
// It satisfies session.Notifier.
type PublisherService struct {
	topicName string
	publisher message.Publisher
	logger    logger.ILogger
}

func NewPublisherService(topicName string, publisher message.Publisher, log logger.ILogger) *PublisherService {
	return &PublisherService{topicName: topicName, publisher: publisher, logger: log}
}

func (p *PublisherService) Notify(event string) {
	payload, err := json.Marshal(StateChanged{Event: event})
	if err != nil {
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(p.topicName, msg); err != nil {
		p.logger.Warn("PublisherService", "Failed to publish state change", map[string]interface{}{"event": event, "error": err.Error()})
	}
}
