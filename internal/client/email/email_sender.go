package email

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/client"
)

const (
	TransportResend = "resend"
	TransportSMTP   = "smtp"

	defaultTimeout       = 30 * time.Second
	defaultResendBaseURL = "https://api.resend.com"
	defaultSMTPPort      = 587
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Config struct {
	Transport     string
	From          string
	AppName       string
	ResendAPIKey  string
	ResendBaseURL string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	Timeout       time.Duration
}

// Envelope is the fully resolved message handed to a transport.
type Envelope struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Transport performs the one outbound call of a send.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, env Envelope) (json.RawMessage, error)
}

type Sender struct {
	from      string
	appName   string
	transport Transport
	logger    *zap.Logger
}

// NewSender builds the transport named in cfg. Missing required values are
// reported as a configuration error.
func NewSender(cfg Config, logger *zap.Logger) (*Sender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var missing []string
	if cfg.From == "" {
		missing = append(missing, "EMAIL_FROM")
	}

	var transport Transport
	switch strings.ToLower(cfg.Transport) {
	case TransportSMTP:
		if cfg.SMTPHost == "" {
			missing = append(missing, "SMTP_HOST")
		}
		port := cfg.SMTPPort
		if port == 0 {
			port = defaultSMTPPort
		}
		transport = NewSMTPTransport(cfg.SMTPHost, port, cfg.SMTPUsername, cfg.SMTPPassword, timeout)
	case TransportResend, "":
		if cfg.ResendAPIKey == "" {
			missing = append(missing, "RESEND_API_KEY")
		}
		baseURL := cfg.ResendBaseURL
		if baseURL == "" {
			baseURL = defaultResendBaseURL
		}
		transport = NewResendTransport(baseURL, cfg.ResendAPIKey, timeout)
	default:
		missing = append(missing, "EMAIL_TRANSPORT (resend|smtp)")
	}
	if len(missing) > 0 {
		return nil, &apperr.ConfigurationError{Missing: missing}
	}

	return NewSenderWithTransport(cfg.From, cfg.AppName, transport, logger), nil
}

func NewSenderWithTransport(from, appName string, transport Transport, logger *zap.Logger) *Sender {
	if appName == "" {
		appName = defaultAppName
	}
	return &Sender{
		from:      from,
		appName:   appName,
		transport: transport,
		logger:    logger.Named("email"),
	}
}

// Send validates msg and delivers it with a single transport call. When msg
// has no HTML body one is derived from the escaped text.
func (s *Sender) Send(ctx context.Context, msg client.EmailMessage) client.SendResult {
	if err := Validate(msg); err != nil {
		s.logger.Warn("rejected email", zap.Error(err))
		return client.Failure(err)
	}

	html := strings.TrimSpace(msg.HTML)
	if html == "" {
		html = renderTextHTML(s.appName, msg.Text)
	}

	env := Envelope{
		From:    s.from,
		To:      strings.TrimSpace(msg.To),
		Subject: strings.TrimSpace(msg.Subject),
		Text:    strings.TrimSpace(msg.Text),
		HTML:    html,
	}

	data, err := s.transport.Deliver(ctx, env)
	if err != nil {
		s.logger.Warn("email delivery failed",
			zap.String("transport", s.transport.Name()),
			zap.Error(err))
		return client.Failure(err)
	}

	s.logger.Debug("email delivered", zap.String("transport", s.transport.Name()))
	return client.Success(data)
}

// Validate checks the recipient shape and that subject and text are present.
func Validate(msg client.EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return &apperr.ValidationError{Field: "to", Message: "must not be empty"}
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return &apperr.ValidationError{Field: "subject", Message: "must not be empty"}
	}
	if strings.TrimSpace(msg.Text) == "" {
		return &apperr.ValidationError{Field: "text", Message: "must not be empty"}
	}
	if !IsValidEmail(msg.To) {
		return &apperr.ValidationError{Field: "to", Message: "not an email address: " + msg.To}
	}
	return nil
}

func IsValidEmail(addr string) bool {
	return emailPattern.MatchString(strings.TrimSpace(addr))
}
