package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"codearena/internal/common/mq"
	"codearena/internal/judge/model"
	"codearena/internal/judge/repository"
	appErr "codearena/pkg/errors"
)

type fakeProducer struct {
	topic    string
	messages []*mq.Message
	err      error
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	if f.err != nil {
		return f.err
	}
	f.topic = topic
	f.messages = append(f.messages, message)
	return nil
}

func TestPublishStatus(t *testing.T) {
	t.Parallel()

	producer := &fakeProducer{}
	publisher := repository.NewMQEventPublisher(producer, "judge.status")

	event := model.StatusEvent{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		ProblemID:    "prob-1",
		Status:       model.StatusPassed,
		TotalCases:   3,
		PassedCases:  3,
	}
	if err := publisher.PublishStatus(context.Background(), event); err != nil {
		t.Fatalf("PublishStatus: %v", err)
	}

	if producer.topic != "judge.status" {
		t.Fatalf("topic = %q", producer.topic)
	}
	if len(producer.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.ID != "sub-1" {
		t.Fatalf("message keyed by %q, want submission id", msg.ID)
	}
	var decoded model.StatusEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if decoded.Status != model.StatusPassed || decoded.PassedCases != 3 {
		t.Fatalf("decoded %+v", decoded)
	}
}

func TestPublishStatusBrokerError(t *testing.T) {
	t.Parallel()

	publisher := repository.NewMQEventPublisher(&fakeProducer{err: errors.New("broker down")}, "judge.status")
	err := publisher.PublishStatus(context.Background(), model.StatusEvent{SubmissionID: "sub-1"})
	if code := appErr.GetCode(err); code != appErr.ServiceUnavailable {
		t.Fatalf("code = %d, want %d", code, appErr.ServiceUnavailable)
	}
}

func TestPublishStatusRequiresSubmissionID(t *testing.T) {
	t.Parallel()

	publisher := repository.NewMQEventPublisher(&fakeProducer{}, "judge.status")
	err := publisher.PublishStatus(context.Background(), model.StatusEvent{})
	if code := appErr.GetCode(err); code != appErr.ValidationFailed {
		t.Fatalf("code = %d, want %d", code, appErr.ValidationFailed)
	}
}
