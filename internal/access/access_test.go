package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/balakodigital/crm-notifier/internal/models"
)

func TestComputePredicate_AbsentIdentityMatchesNothing(t *testing.T) {
	p := ComputePredicate(nil)

	assert.True(t, p.MatchesNothing())
	assert.False(t, p.Matches("", ""))
	assert.False(t, p.Matches("u1", "u1"))

	where, args := p.SQL("c")
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)
}

func TestComputePredicate_EmptyUserIDMatchesNothing(t *testing.T) {
	p := ComputePredicate(&models.Identity{Role: models.RoleAgency})
	assert.True(t, p.MatchesNothing())
}

func TestComputePredicate_AgencyMatchesEverything(t *testing.T) {
	p := ComputePredicate(&models.Identity{UserID: "a1", Role: models.RoleAgency})

	assert.False(t, p.MatchesNothing())
	assert.True(t, p.Matches("someone", "else"))
	assert.True(t, p.Matches("", ""))

	where, args := p.SQL("")
	assert.Equal(t, "1 = 1", where)
	assert.Empty(t, args)
}

func TestComputePredicate_ClientMatchesOwnedRowsOnly(t *testing.T) {
	p := ComputePredicate(&models.Identity{UserID: "u1", Role: models.RoleClient})

	rows := []struct {
		createdBy, assignedTo string
		want                  bool
	}{
		{"u1", "", true},
		{"", "u1", true},
		{"u1", "u1", true},
		{"u2", "u3", false},
		{"", "", false},
		{"U1", "u1x", false},
	}
	for _, r := range rows {
		assert.Equal(t, r.want, p.Matches(r.createdBy, r.assignedTo), "created_by=%q assigned_to=%q", r.createdBy, r.assignedTo)
	}

	where, args := p.SQL("t")
	assert.Equal(t, "(t.created_by = ? OR t.assigned_to = ?)", where)
	assert.Equal(t, []any{"u1", "u1"}, args)
}

func TestParseRoleDefaultsToClient(t *testing.T) {
	assert.Equal(t, models.RoleAgency, models.ParseRole("agency"))
	assert.Equal(t, models.RoleAgency, models.ParseRole(" AGENCY "))
	assert.Equal(t, models.RoleClient, models.ParseRole("client"))
	assert.Equal(t, models.RoleClient, models.ParseRole(""))
	assert.Equal(t, models.RoleClient, models.ParseRole("admin"))
	assert.Equal(t, "guest", RoleName(nil))
}

func TestOwnerSQL(t *testing.T) {
	where, args := ComputePredicate(nil).OwnerSQL("sent_by")
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)

	where, _ = ComputePredicate(&models.Identity{UserID: "a1", Role: models.RoleAgency}).OwnerSQL("sent_by")
	assert.Equal(t, "1 = 1", where)

	where, args = ComputePredicate(&models.Identity{UserID: "u1", Role: models.RoleClient}).OwnerSQL("sent_by")
	assert.Equal(t, "sent_by = ?", where)
	assert.Equal(t, []any{"u1"}, args)
}
