package models

import "time"

type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "sent"
	MessageStatusFailed MessageStatus = "failed"
)

// WhatsAppMessage is the log row written for every manual WhatsApp send.
type WhatsAppMessage struct {
	ID        string        `db:"id" json:"id"`
	Phone     string        `db:"phone" json:"phone"`
	Message   string        `db:"message" json:"message"`
	Status    MessageStatus `db:"status" json:"status"`
	Error     string        `db:"error" json:"error,omitempty"`
	SentBy    string        `db:"sent_by" json:"sentBy"`
	ContactID string        `db:"contact_id" json:"contactId,omitempty"`
	SentAt    time.Time     `db:"sent_at" json:"sentAt"`
}
