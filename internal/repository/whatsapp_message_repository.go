package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/models"
)

type WhatsAppMessageRepository struct {
	db *sqlx.DB
}

func NewWhatsAppMessageRepository(db *sqlx.DB) *WhatsAppMessageRepository {
	return &WhatsAppMessageRepository{db: db}
}

func (r *WhatsAppMessageRepository) Create(ctx context.Context, msg *models.WhatsAppMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO whatsapp_messages (id, phone, message, status, error, sent_by, contact_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Phone, msg.Message, msg.Status, msg.Error,
		msg.SentBy, nullIfEmpty(msg.ContactID), msg.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording whatsapp message: %w", err)
	}
	return nil
}

// CountSentBetween counts successfully sent messages in [start, end) whose
// sender is visible under p.
func (r *WhatsAppMessageRepository) CountSentBetween(ctx context.Context, p access.Predicate, start, end time.Time) (int, error) {
	if p.MatchesNothing() {
		return 0, nil
	}
	where, args := p.OwnerSQL("sent_by")
	query := "SELECT COUNT(*) FROM whatsapp_messages WHERE status = ? AND sent_at >= ? AND sent_at < ? AND " + where
	args = append([]any{models.MessageStatusSent, start.UTC(), end.UTC()}, args...)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("counting whatsapp messages: %w", err)
	}
	return count, nil
}
