// Package mq abstracts the message broker used for status events.
package mq

import (
	"context"
	"time"
)

// Message is one broker message.
type Message struct {
	// ID keys the message for partitioning; judging uses the submission id.
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`
}

// HandlerFunc processes one consumed message. A non-nil error leaves the
// message uncommitted so the broker redelivers it.
type HandlerFunc func(ctx context.Context, message *Message) error

// Producer publishes messages.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer subscribes to topics. Subscriptions registered before Start are
// activated by Start; Stop drains in-flight handlers.
type Consumer interface {
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error
	Start() error
	Stop() error
}

// MessageQueue is the full broker interface.
type MessageQueue interface {
	Producer
	Consumer

	Ping(ctx context.Context) error
	Close() error
}

// SubscribeOptions tunes one subscription.
type SubscribeOptions struct {
	ConsumerGroup string
	Concurrency   int
	RetryDelay    time.Duration
}

// SetDefaults fills zero-valued options.
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency == 0 {
		o.Concurrency = 1
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a message with the given body.
func NewMessage(body []byte) *Message {
	return &Message{
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value.
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}
