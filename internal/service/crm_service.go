package service

import (
	"context"
	"fmt"
	"time"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/models"
)

type ContactLister interface {
	List(ctx context.Context, p access.Predicate) ([]models.Contact, error)
}

type OpportunityLister interface {
	List(ctx context.Context, p access.Predicate) ([]models.Opportunity, error)
}

type TaskLister interface {
	List(ctx context.Context, p access.Predicate) ([]models.Task, error)
	CountPendingFollowUps(ctx context.Context, p access.Predicate, before time.Time) (int, error)
}

type MessageCounter interface {
	CountSentBetween(ctx context.Context, p access.Predicate, start, end time.Time) (int, error)
}

type DashboardSummary struct {
	PendingFollowUps int `json:"pendingFollowUps"`
	WhatsAppToday    int `json:"whatsappToday"`
}

// CRMService serves the role-scoped read side of the CRM.
type CRMService struct {
	contacts      ContactLister
	opportunities OpportunityLister
	tasks         TaskLister
	messages      MessageCounter
	location      *time.Location
	now           func() time.Time
}

func NewCRMService(
	contacts ContactLister,
	opportunities OpportunityLister,
	tasks TaskLister,
	messages MessageCounter,
	location *time.Location,
) *CRMService {
	if location == nil {
		location = time.UTC
	}
	return &CRMService{
		contacts:      contacts,
		opportunities: opportunities,
		tasks:         tasks,
		messages:      messages,
		location:      location,
		now:           time.Now,
	}
}

func requireIdentity(identity *models.Identity) error {
	if identity == nil || identity.UserID == "" {
		return &apperr.AuthorizationError{Reason: "authentication required"}
	}
	return nil
}

func (s *CRMService) Contacts(ctx context.Context, identity *models.Identity) ([]models.Contact, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.contacts.List(ctx, access.ComputePredicate(identity))
}

func (s *CRMService) Opportunities(ctx context.Context, identity *models.Identity) ([]models.Opportunity, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.opportunities.List(ctx, access.ComputePredicate(identity))
}

func (s *CRMService) Tasks(ctx context.Context, identity *models.Identity) ([]models.Task, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, access.ComputePredicate(identity))
}

// Dashboard counts open tasks due by the end of today, overdue included,
// and WhatsApp messages sent today.
func (s *CRMService) Dashboard(ctx context.Context, identity *models.Identity) (DashboardSummary, error) {
	if err := requireIdentity(identity); err != nil {
		return DashboardSummary{}, err
	}
	p := access.ComputePredicate(identity)
	dayStart, dayEnd := DayBounds(s.now(), s.location)

	pending, err := s.tasks.CountPendingFollowUps(ctx, p, dayEnd)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("dashboard follow-ups: %w", err)
	}
	sent, err := s.messages.CountSentBetween(ctx, p, dayStart, dayEnd)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("dashboard whatsapp count: %w", err)
	}
	return DashboardSummary{PendingFollowUps: pending, WhatsAppToday: sent}, nil
}
