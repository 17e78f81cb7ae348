package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	Producer = "crm-notifier"

	// TypeTaskReminder is published once per task that got a reminder out.
	TypeTaskReminder = "notification.task.reminder.v1"
)

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type Meta struct {
	CorrelationID *string `json:"correlation_id,omitempty"`
	// Unique event ID
	ID       string    `json:"id"`
	Producer *string   `json:"producer,omitempty"`
	Time     time.Time `json:"time"`
	// Event name and version, e.g. notification.task.reminder.v1
	Type string `json:"type"`
}

type TaskReminder struct {
	TaskID   string    `json:"task_id"`
	Channels []string  `json:"channels"`
	DueDate  time.Time `json:"due_date"`
}

// NewEnvelope stamps data with a fresh ID and the given time.
func NewEnvelope(eventType string, data any, at time.Time, correlationID string) Envelope {
	producer := Producer
	meta := Meta{
		ID:       uuid.NewString(),
		Producer: &producer,
		Time:     at.UTC(),
		Type:     eventType,
	}
	if correlationID != "" {
		meta.CorrelationID = &correlationID
	}
	return Envelope{Meta: meta, Data: data}
}
