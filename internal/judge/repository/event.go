package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"codearena/internal/common/mq"
	"codearena/internal/judge/model"
	appErr "codearena/pkg/errors"
)

// EventPublisher publishes the single final status event of a judging run.
type EventPublisher interface {
	PublishStatus(ctx context.Context, event model.StatusEvent) error
}

// MQEventPublisher publishes status events to the message queue, keyed by
// submission id so events for one submission stay ordered.
type MQEventPublisher struct {
	queue mq.Producer
	topic string
}

// NewMQEventPublisher creates a queue-backed event publisher.
func NewMQEventPublisher(queue mq.Producer, topic string) *MQEventPublisher {
	return &MQEventPublisher{queue: queue, topic: topic}
}

// PublishStatus publishes one status event.
func (p *MQEventPublisher) PublishStatus(ctx context.Context, event model.StatusEvent) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("event publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("status topic is required")
	}
	if event.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = event.SubmissionID
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish status event failed")
	}
	return nil
}
