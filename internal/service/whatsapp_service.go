package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/client"
	"github.com/balakodigital/crm-notifier/internal/client/whatsapp"
	"github.com/balakodigital/crm-notifier/internal/models"
	"github.com/balakodigital/crm-notifier/internal/observability"
	"github.com/balakodigital/crm-notifier/internal/repository"
)

var ErrContactNotFound = errors.New("contact not found")

type ContactLookup interface {
	GetVisible(ctx context.Context, p access.Predicate, id string) (*models.Contact, error)
}

type MessageLog interface {
	Create(ctx context.Context, msg *models.WhatsAppMessage) error
}

type SendMessageInput struct {
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	ContactID string `json:"contactId,omitempty"`
}

// SendMessageResult carries the gateway result and the log row. RecordErr
// is set when the send happened but the row could not be written.
type SendMessageResult struct {
	Send      client.SendResult
	Record    *models.WhatsAppMessage
	RecordErr error
}

// WhatsAppService sends ad-hoc messages on behalf of a signed-in user and
// keeps a log of every attempt.
type WhatsAppService struct {
	gateway  client.WhatsAppGateway
	contacts ContactLookup
	messages MessageLog
	logger   *zap.Logger
	now      func() time.Time
}

func NewWhatsAppService(gateway client.WhatsAppGateway, contacts ContactLookup, messages MessageLog, logger *zap.Logger) *WhatsAppService {
	return &WhatsAppService{
		gateway:  gateway,
		contacts: contacts,
		messages: messages,
		logger:   logger.Named("whatsapp_service"),
		now:      time.Now,
	}
}

// Send validates the input, checks that the contact (if any) is visible to
// identity, sends the message and records the attempt. A failed send is not
// an error: it is reported in the result and logged as "failed".
func (s *WhatsAppService) Send(ctx context.Context, identity *models.Identity, in SendMessageInput) (SendMessageResult, error) {
	if identity == nil || identity.UserID == "" {
		return SendMessageResult{}, &apperr.AuthorizationError{Reason: "authentication required"}
	}

	phone := strings.TrimSpace(in.Phone)
	message := strings.TrimSpace(in.Message)
	if phone == "" {
		return SendMessageResult{}, &apperr.ValidationError{Field: "phone", Message: "must not be empty"}
	}
	if message == "" {
		return SendMessageResult{}, &apperr.ValidationError{Field: "message", Message: "must not be empty"}
	}

	log := observability.LoggerFromContext(ctx, s.logger).With(zap.String("user_id", identity.UserID))

	if in.ContactID != "" {
		_, err := s.contacts.GetVisible(ctx, access.ComputePredicate(identity), in.ContactID)
		if errors.Is(err, repository.ErrNotFound) {
			return SendMessageResult{}, ErrContactNotFound
		}
		if err != nil {
			return SendMessageResult{}, err
		}
	}

	number, err := whatsapp.NormalizePhone(phone)
	if err != nil {
		return SendMessageResult{}, &apperr.ValidationError{Field: "phone", Message: err.Error()}
	}

	res := s.gateway.SendText(ctx, phone, message)

	record := &models.WhatsAppMessage{
		Phone:     number,
		Message:   message,
		Status:    models.MessageStatusSent,
		SentBy:    identity.UserID,
		ContactID: in.ContactID,
		SentAt:    s.now(),
	}
	if !res.OK() {
		record.Status = models.MessageStatusFailed
		record.Error = res.Err.Error()
		log.Warn("manual whatsapp send failed", zap.Error(res.Err))
	}

	out := SendMessageResult{Send: res, Record: record}
	if err := s.messages.Create(ctx, record); err != nil {
		log.Error("recording whatsapp message", zap.Error(err))
		out.Record = nil
		out.RecordErr = &apperr.PersistenceError{Op: "record whatsapp message", Err: err}
	}
	return out, nil
}

func (s *WhatsAppService) Status(ctx context.Context) client.InstanceStatus {
	return s.gateway.ConnectionState(ctx)
}
