package notify

import (
	"context"

	"codearena/internal/common/mq"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Broadcaster is the hub surface the consumer needs.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// StatusConsumer subscribes to the judging status topic and relays every
// event to the websocket hub verbatim.
type StatusConsumer struct {
	consumer mq.Consumer
	topic    string
	group    string
	hub      Broadcaster
}

// NewStatusConsumer creates a consumer bridging the queue to the hub.
func NewStatusConsumer(consumer mq.Consumer, topic, group string, hub Broadcaster) *StatusConsumer {
	return &StatusConsumer{consumer: consumer, topic: topic, group: group, hub: hub}
}

// Start registers the subscription. The queue's own Start activates it.
func (s *StatusConsumer) Start(ctx context.Context) error {
	return s.consumer.Subscribe(ctx, s.topic, s.handle, &mq.SubscribeOptions{
		ConsumerGroup: s.group,
	})
}

func (s *StatusConsumer) handle(ctx context.Context, message *mq.Message) error {
	if message == nil || len(message.Body) == 0 {
		return nil
	}
	logger.Debug(ctx, "relaying status event",
		zap.String("submission_id", message.ID),
	)
	s.hub.Broadcast(message.Body)
	return nil
}
