package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/models"
)

type OpportunityRepository struct {
	db *sqlx.DB
}

func NewOpportunityRepository(db *sqlx.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

func (r *OpportunityRepository) Create(ctx context.Context, opp *models.Opportunity) error {
	if strings.TrimSpace(opp.Name) == "" {
		return fmt.Errorf("opportunity name must not be empty")
	}
	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}
	if opp.Stage == "" {
		opp.Stage = "LEAD"
	}
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO opportunities (id, name, amount, stage, contact_id, created_by, assigned_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		opp.ID, opp.Name, opp.Amount, opp.Stage,
		nullIfEmpty(opp.ContactID), nullIfEmpty(opp.CreatedBy), nullIfEmpty(opp.AssignedTo),
		opp.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating opportunity: %w", err)
	}
	return nil
}

// List returns the opportunities visible under p, newest first.
func (r *OpportunityRepository) List(ctx context.Context, p access.Predicate) ([]models.Opportunity, error) {
	opps := []models.Opportunity{}
	if p.MatchesNothing() {
		return opps, nil
	}
	where, args := p.SQL("o")
	query := `
		SELECT o.id, o.name, o.amount, o.stage,
			COALESCE(o.contact_id, '') AS contact_id,
			COALESCE(o.created_by, '') AS created_by,
			COALESCE(o.assigned_to, '') AS assigned_to,
			o.created_at
		FROM opportunities o
		WHERE ` + where + `
		ORDER BY o.created_at DESC`
	if err := r.db.SelectContext(ctx, &opps, query, args...); err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}
	return opps, nil
}
