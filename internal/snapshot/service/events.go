package service

import (
	"context"
	"encoding/json"
	"time"

	"azsnap/internal/common/mq"
	"azsnap/internal/snapshot/model"
	"azsnap/pkg/utils/logger"

	"go.uber.org/zap"
)

// Event types published to the lifecycle topic.
const (
	EventSnapshotCreated      = "snapshot.created"
	EventSnapshotCreateFailed = "snapshot.create_failed"
	EventSnapshotDeleted      = "snapshot.deleted"
	EventSnapshotDeleteFailed = "snapshot.delete_failed"
	EventRunCompleted         = "run.completed"
)

// LifecycleEvent is the payload published for snapshot state changes.
type LifecycleEvent struct {
	Type         string    `json:"type"`
	SnapshotID   string    `json:"snapshot_id,omitempty"`
	SnapshotName string    `json:"snapshot_name,omitempty"`
	VMName       string    `json:"vm_name,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	ChangeNumber string    `json:"change_number,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher publishes lifecycle events. Publishing is best effort:
// a broker outage must not fail snapshot creation or deletion.
type EventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewEventPublisher creates an EventPublisher for the given topic.
// A nil producer disables publishing.
func NewEventPublisher(producer mq.Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

// PublishRecord publishes an event about one snapshot record.
func (p *EventPublisher) PublishRecord(ctx context.Context, eventType string, rec *model.SnapshotRecord) {
	p.publish(ctx, rec.SnapshotID, LifecycleEvent{
		Type:         eventType,
		SnapshotID:   rec.SnapshotID,
		SnapshotName: rec.SnapshotName,
		VMName:       rec.VMName,
		ChangeNumber: rec.ChangeNumber,
		Reason:       rec.FailureReason,
		OccurredAt:   time.Now().UTC(),
	})
}

// PublishRun publishes a run completion event.
func (p *EventPublisher) PublishRun(ctx context.Context, summary *model.RunSummary) {
	p.publish(ctx, summary.RunID, LifecycleEvent{
		Type:         EventRunCompleted,
		RunID:        summary.RunID,
		ChangeNumber: summary.ChangeNumber,
		OccurredAt:   time.Now().UTC(),
	})
}

func (p *EventPublisher) publish(ctx context.Context, key string, event LifecycleEvent) {
	if p == nil || p.producer == nil {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "marshal lifecycle event", zap.Error(err))
		return
	}

	msg := mq.NewMessage(key, body)
	msg.Headers["event-type"] = event.Type
	if err := p.producer.Publish(ctx, p.topic, msg); err != nil {
		logger.Warn(ctx, "publish lifecycle event",
			zap.String("type", event.Type),
			zap.String("key", key),
			zap.Error(err))
	}
}
