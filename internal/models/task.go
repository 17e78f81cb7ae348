package models

import "time"

type TaskStatus string

const (
	TaskStatusActive   TaskStatus = "ACTIVE"
	TaskStatusPending  TaskStatus = "PENDING"
	TaskStatusComplete TaskStatus = "COMPLETE"
)

type Task struct {
	ID                string     `db:"id" json:"id"`
	Title             string     `db:"title" json:"title"`
	Description       string     `db:"description" json:"description,omitempty"`
	DueDate           time.Time  `db:"due_date" json:"dueDate"`
	Status            TaskStatus `db:"status" json:"status"`
	AssignedTo        string     `db:"assigned_to" json:"assignedTo,omitempty"`
	ContactID         string     `db:"contact_id" json:"contactId,omitempty"`
	CreatedBy         string     `db:"created_by" json:"createdBy,omitempty"`
	NotifyViaWhatsApp bool       `db:"notify_via_whatsapp" json:"notifyViaWhatsApp"`
	NotifyViaEmail    bool       `db:"notify_via_email" json:"notifyViaEmail"`
	NotificationSent  bool       `db:"notification_sent" json:"notificationSent"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
}

// DueTask is a task joined with the user it is assigned to and the contact
// it concerns. Either side may be missing.
type DueTask struct {
	Task
	User    *User
	Contact *Contact
}
