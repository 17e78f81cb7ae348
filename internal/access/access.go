// Package access turns an identity into the row filter every CRM query is
// scoped by.
package access

import (
	"fmt"

	"github.com/balakodigital/crm-notifier/internal/models"
)

type scope int

const (
	scopeNone scope = iota
	scopeAll
	scopeOwned
)

// Predicate restricts rows to what an identity may see. The zero value
// matches nothing.
type Predicate struct {
	scope  scope
	userID string
}

// ComputePredicate never fails. Absent identities get a predicate that
// matches no rows, the agency role matches everything and the client role
// matches rows the user created or is assigned to.
func ComputePredicate(identity *models.Identity) Predicate {
	if identity == nil || identity.UserID == "" {
		return Predicate{scope: scopeNone}
	}
	switch identity.Role {
	case models.RoleAgency:
		return Predicate{scope: scopeAll}
	case models.RoleClient:
		return Predicate{scope: scopeOwned, userID: identity.UserID}
	default:
		return Predicate{scope: scopeOwned, userID: identity.UserID}
	}
}

// Matches evaluates the predicate against a row's ownership columns.
func (p Predicate) Matches(createdBy, assignedTo string) bool {
	switch p.scope {
	case scopeAll:
		return true
	case scopeOwned:
		return createdBy == p.userID || assignedTo == p.userID
	default:
		return false
	}
}

// MatchesNothing reports whether the predicate rejects every row, so callers
// can skip the query altogether.
func (p Predicate) MatchesNothing() bool { return p.scope == scopeNone }

// SQL renders the predicate as a WHERE fragment over the created_by and
// assigned_to columns of the given table alias.
func (p Predicate) SQL(alias string) (string, []any) {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	switch p.scope {
	case scopeAll:
		return "1 = 1", nil
	case scopeOwned:
		return fmt.Sprintf("(%screated_by = ? OR %sassigned_to = ?)", prefix, prefix),
			[]any{p.userID, p.userID}
	default:
		return "1 = 0", nil
	}
}

// OwnerSQL is SQL for tables with a single owner column, such as the
// sender of a logged message.
func (p Predicate) OwnerSQL(column string) (string, []any) {
	switch p.scope {
	case scopeAll:
		return "1 = 1", nil
	case scopeOwned:
		return column + " = ?", []any{p.userID}
	default:
		return "1 = 0", nil
	}
}

// RoleName is what listings report back in their meta block.
func RoleName(identity *models.Identity) string {
	if identity == nil {
		return "guest"
	}
	return string(identity.Role)
}
