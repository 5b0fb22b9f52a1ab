package service

import (
	"context"
	"encoding/json"

	"content-pipeline-be/internal/model"
	"content-pipeline-be/internal/pkg/logger"
	"content-pipeline-be/internal/websocket"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IEventBridgeService forwards pipeline bus events to websocket clients.
type IEventBridgeService interface {
	Consume(ctx context.Context) error
}

type eventBridgeService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	hub       *websocket.Hub
	logger    logger.ILogger
}

func NewEventBridgeService(
	pubSub *gochannel.GoChannel,
	topicName string,
	hub *websocket.Hub,
	log logger.ILogger,
) IEventBridgeService {
	return &eventBridgeService{
		pubSub:    pubSub,
		topicName: topicName,
		hub:       hub,
		logger:    log,
	}
}

func (s *eventBridgeService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(msg)
		}
	}()

	return nil
}

func (s *eventBridgeService) processMessage(msg *message.Message) {
	var event model.PipelineEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Ack malformed messages to prevent infinite redelivery
		s.logger.Error("EventBridge", "Failed to unmarshal pipeline event", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	s.hub.Broadcast(event)
	msg.Ack()
}
