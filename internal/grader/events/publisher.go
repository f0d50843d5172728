// Package events publishes grading verdicts for downstream consumers such as grade books.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pddlgrader/internal/common/mq"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
)

const runIDHeader = "x-run-id"

// VerdictEvent is the JSON payload of a published verdict.
type VerdictEvent struct {
	RunID     string `json:"run_id"`
	StudentID string `json:"student_id"`
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Mode      int    `json:"mode"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Stage     string `json:"stage"`
	CreatedAt int64  `json:"created_at"`
}

// NewVerdictEvent builds the event for one verdict.
func NewVerdictEvent(runID string, mode model.Mode, v model.Verdict) VerdictEvent {
	return VerdictEvent{
		RunID:     runID,
		StudentID: v.Submission.StudentID,
		LastName:  v.Submission.LastName,
		FirstName: v.Submission.FirstName,
		Mode:      int(mode),
		Status:    string(v.Status),
		Reason:    string(v.Reason),
		Stage:     string(v.Stage),
		CreatedAt: time.Now().Unix(),
	}
}

// Publisher publishes verdict events.
type Publisher interface {
	PublishVerdict(ctx context.Context, event VerdictEvent) error
}

// MQPublisher publishes verdict events to a message queue topic.
type MQPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQPublisher creates a publisher for topic.
func NewMQPublisher(producer mq.Producer, topic string) *MQPublisher {
	return &MQPublisher{producer: producer, topic: topic}
}

// PublishVerdict publishes one event keyed by student id.
func (p *MQPublisher) PublishVerdict(ctx context.Context, event VerdictEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("verdict topic is required")
	}
	if event.StudentID == "" {
		return appErr.ValidationError("student_id", "required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal verdict event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = event.StudentID
	if event.RunID != "" {
		message.SetHeader(runIDHeader, event.RunID)
	}
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.EventPublishFailed, "publish verdict for %s failed", event.StudentID)
	}
	return nil
}
