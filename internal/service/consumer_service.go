package service

import (
	"context"
	"encoding/json"

	"legal-review-client/internal/pkg/logger"
	"legal-review-client/internal/session"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// SnapshotSource is satisfied by *session.Client.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// Broadcaster is satisfied by *websocket.Hub.
type Broadcaster interface {
	Broadcast(frameType string, data interface{})
}

// SnapshotPrinter is satisfied by *console.Printer.
type SnapshotPrinter interface {
	Print(s session.Snapshot)
}

// consumerService renders a fresh snapshot for every state change and fans
// it out to the bridge clients and the console.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	source     SnapshotSource
	hub        Broadcaster
	printer    SnapshotPrinter
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	source SnapshotSource,
	hub Broadcaster,
	printer SnapshotPrinter,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		source:     source,
		hub:        hub,
		printer:    printer,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var payload StateChanged
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal state change", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	snap := cs.source.Snapshot()
	if cs.hub != nil {
		cs.hub.Broadcast("state", snap)
	}
	if cs.printer != nil {
		cs.printer.Print(snap)
	}

	cs.logger.Debug("ConsumerService", "State pushed", map[string]interface{}{"event": payload.Event})
	msg.Ack()
}
