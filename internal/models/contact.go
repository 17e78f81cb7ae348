package models

import "time"

type Contact struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email,omitempty"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	CreatedBy  string    `db:"created_by" json:"createdBy,omitempty"`
	AssignedTo string    `db:"assigned_to" json:"assignedTo,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type Opportunity struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Amount     float64   `db:"amount" json:"amount"`
	Stage      string    `db:"stage" json:"stage"`
	ContactID  string    `db:"contact_id" json:"contactId,omitempty"`
	CreatedBy  string    `db:"created_by" json:"createdBy,omitempty"`
	AssignedTo string    `db:"assigned_to" json:"assignedTo,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
