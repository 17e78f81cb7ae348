package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/metrics"
)

// SMTPTransport delivers a multipart/alternative message over SMTP,
// upgrading to TLS when the server offers STARTTLS.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	now      func() time.Time
}

func NewSMTPTransport(host string, port int, username, password string, timeout time.Duration) *SMTPTransport {
	return &SMTPTransport{
		host:     host,
		port:     port,
		username: username,
		password: password,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (t *SMTPTransport) Name() string { return TransportSMTP }

func (t *SMTPTransport) Deliver(ctx context.Context, env Envelope) (json.RawMessage, error) {
	from, err := mail.ParseAddress(env.From)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "from", Message: err.Error()}
	}
	to, err := mail.ParseAddress(env.To)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "to", Message: err.Error()}
	}

	raw, messageID, err := buildMessage(env, from, to, t.now())
	if err != nil {
		return nil, fmt.Errorf("build message (smtp): %w", err)
	}

	start := time.Now()
	err = t.send(ctx, from.Address, to.Address, raw)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GatewayRequestDuration.WithLabelValues(TransportSMTP, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &apperr.TransportError{Gateway: TransportSMTP, Err: err}
	}

	data, _ := json.Marshal(map[string]string{"id": messageID})
	return data, nil
}

func (t *SMTPTransport) send(ctx context.Context, from, to string, raw []byte) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	dialer := &net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if t.username != "" {
		if err := c.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return c.Quit()
}

// buildMessage renders env as a MIME message with a text and an HTML
// alternative. It returns the bytes and the generated Message-ID.
func buildMessage(env Envelope, from, to *mail.Address, date time.Time) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(env.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", err
	}
	messageID, err := h.MessageID()
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", err
	}
	alt, err := mw.CreateInline()
	if err != nil {
		return nil, "", err
	}
	if err := writeInlinePart(alt, "text/plain", env.Text); err != nil {
		return nil, "", err
	}
	if env.HTML != "" {
		if err := writeInlinePart(alt, "text/html", env.HTML); err != nil {
			return nil, "", err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), messageID, nil
}

func writeInlinePart(w *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := w.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}
