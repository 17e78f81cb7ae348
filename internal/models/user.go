package models

import (
	"strings"
	"time"
)

// Role is the access class of a user. Only two values exist.
type Role string

const (
	RoleAgency Role = "agency"
	RoleClient Role = "client"
)

// ParseRole maps a stored or forwarded role string to a Role. Anything that
// is not "agency" is treated as the restricted role.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAgency)) {
		return RoleAgency
	}
	return RoleClient
}

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Identity is who is asking. A nil *Identity means unauthenticated.
type Identity struct {
	UserID string
	Role   Role
}
