package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/models"
)

const contactColumns = `
	c.id, c.name, c.email, c.phone,
	COALESCE(c.created_by, '') AS created_by,
	COALESCE(c.assigned_to, '') AS assigned_to,
	c.created_at`

type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if strings.TrimSpace(contact.Name) == "" {
		return fmt.Errorf("contact name must not be empty")
	}
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, phone, created_by, assigned_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contact.ID, contact.Name, contact.Email, contact.Phone,
		nullIfEmpty(contact.CreatedBy), nullIfEmpty(contact.AssignedTo),
		contact.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating contact: %w", err)
	}
	return nil
}

// GetVisible returns the contact only when p allows it. Hidden and missing
// contacts both report ErrNotFound.
func (r *ContactRepository) GetVisible(ctx context.Context, p access.Predicate, id string) (*models.Contact, error) {
	if p.MatchesNothing() {
		return nil, ErrNotFound
	}
	where, args := p.SQL("c")
	query := "SELECT " + contactColumns + " FROM contacts c WHERE c.id = ? AND " + where

	var contact models.Contact
	err := r.db.GetContext(ctx, &contact, query, append([]any{id}, args...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact %s: %w", id, err)
	}
	return &contact, nil
}

// List returns the contacts visible under p, newest first.
func (r *ContactRepository) List(ctx context.Context, p access.Predicate) ([]models.Contact, error) {
	contacts := []models.Contact{}
	if p.MatchesNothing() {
		return contacts, nil
	}
	where, args := p.SQL("c")
	query := "SELECT " + contactColumns + " FROM contacts c WHERE " + where + " ORDER BY c.created_at DESC"
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	return contacts, nil
}
