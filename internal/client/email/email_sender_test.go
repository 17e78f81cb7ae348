package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/client"
)

type fakeTransport struct {
	envs []Envelope
	data json.RawMessage
	err  error
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Deliver(_ context.Context, env Envelope) (json.RawMessage, error) {
	f.envs = append(f.envs, env)
	return f.data, f.err
}

func newFakeSender(t *fakeTransport) *Sender {
	return NewSenderWithTransport("CRM <crm@example.com>", "", t, zap.NewNop())
}

func TestTextToHTML_Escapes(t *testing.T) {
	out := TextToHTML("a&b\n<c>")

	assert.Contains(t, out, "a&amp;b<br>&lt;c&gt;")
	assert.Contains(t, out, `<meta charset="UTF-8">`)
	assert.NotContains(t, out, "a&b")
	assert.NotContains(t, out, "<c>")
}

func TestTextToHTML_Quotes(t *testing.T) {
	out := TextToHTML(`say "hi" it's`)
	assert.Contains(t, out, "say &quot;hi&quot; it&#039;s")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		msg   client.EmailMessage
		field string
	}{
		{"empty to", client.EmailMessage{Subject: "s", Text: "t"}, "to"},
		{"bad to", client.EmailMessage{To: "nobody", Subject: "s", Text: "t"}, "to"},
		{"space in to", client.EmailMessage{To: "a b@c.d", Subject: "s", Text: "t"}, "to"},
		{"empty subject", client.EmailMessage{To: "a@b.co", Subject: " ", Text: "t"}, "subject"},
		{"empty text", client.EmailMessage{To: "a@b.co", Subject: "s"}, "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var valErr *apperr.ValidationError
			require.ErrorAs(t, Validate(tc.msg), &valErr)
			assert.Equal(t, tc.field, valErr.Field)
		})
	}

	assert.NoError(t, Validate(client.EmailMessage{To: "ana@example.com", Subject: "s", Text: "t"}))
}

func TestSend_InvalidMakesNoCall(t *testing.T) {
	tr := &fakeTransport{}
	res := newFakeSender(tr).Send(context.Background(), client.EmailMessage{To: "x", Subject: "s", Text: "t"})

	assert.False(t, res.OK())
	assert.Empty(t, tr.envs)
}

func TestSend_DerivesHTMLFromText(t *testing.T) {
	tr := &fakeTransport{data: json.RawMessage(`{"id":"e1"}`)}
	res := newFakeSender(tr).Send(context.Background(), client.EmailMessage{
		To:      " ana@example.com ",
		Subject: "Lembrete",
		Text:    "linha 1\nlinha <2>",
	})

	require.True(t, res.OK())
	assert.JSONEq(t, `{"id":"e1"}`, string(res.Data))
	require.Len(t, tr.envs, 1)
	env := tr.envs[0]
	assert.Equal(t, "ana@example.com", env.To)
	assert.Equal(t, "CRM <crm@example.com>", env.From)
	assert.Contains(t, env.HTML, "linha 1<br>linha &lt;2&gt;")
	assert.Contains(t, env.HTML, defaultAppName)
}

func TestSend_KeepsProvidedHTML(t *testing.T) {
	tr := &fakeTransport{}
	newFakeSender(tr).Send(context.Background(), client.EmailMessage{
		To: "ana@example.com", Subject: "s", Text: "t", HTML: "<p>custom</p>",
	})

	require.Len(t, tr.envs, 1)
	assert.Equal(t, "<p>custom</p>", tr.envs[0].HTML)
}

func TestSend_TransportErrorIsReturnedNotRaised(t *testing.T) {
	tr := &fakeTransport{err: errors.New("boom")}
	res := newFakeSender(tr).Send(context.Background(), client.EmailMessage{
		To: "ana@example.com", Subject: "s", Text: "t",
	})

	assert.False(t, res.OK())
	assert.EqualError(t, res.Err, "boom")
}

func TestNewSender_MissingConfig(t *testing.T) {
	_, err := NewSender(Config{}, zap.NewNop())
	var cfgErr *apperr.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"EMAIL_FROM", "RESEND_API_KEY"}, cfgErr.Missing)

	_, err = NewSender(Config{Transport: "smtp", From: "a@b.co"}, zap.NewNop())
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"SMTP_HOST"}, cfgErr.Missing)

	_, err = NewSender(Config{Transport: "pigeon", From: "a@b.co"}, zap.NewNop())
	require.ErrorAs(t, err, &cfgErr)
}

func TestResendTransport_Success(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	s, err := NewSender(Config{From: "crm@example.com", ResendAPIKey: "re_test", ResendBaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	res := s.Send(context.Background(), client.EmailMessage{To: "ana@example.com", Subject: "Oi", Text: "corpo"})

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.JSONEq(t, `{"id":"abc"}`, string(res.Data))
	assert.Equal(t, []string{"ana@example.com"}, got.To)
	assert.Equal(t, "Oi", got.Subject)
	assert.Equal(t, "corpo", got.Text)
	assert.NotEmpty(t, got.HTML)
}

func TestResendTransport_ErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid from field"}`))
	}))
	defer srv.Close()

	tr := NewResendTransport(srv.URL, "k", time.Second)
	_, err := tr.Deliver(context.Background(), Envelope{From: "a@b.co", To: "c@d.co", Subject: "s", Text: "t"})

	var transportErr *apperr.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnprocessableEntity, transportErr.StatusCode)
	assert.Equal(t, "Invalid from field", transportErr.Body)
}

func TestBuildMessage_Alternatives(t *testing.T) {
	from, err := mail.ParseAddress("CRM <crm@example.com>")
	require.NoError(t, err)
	to, err := mail.ParseAddress("ana@example.com")
	require.NoError(t, err)
	date := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	raw, id, err := buildMessage(Envelope{
		Subject: "Lembrete: Reunião",
		Text:    "texto",
		HTML:    "<p>html</p>",
	}, from, to, date)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Lembrete: Reunião", subject)

	parts := map[string]string{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		parts[ct] = strings.TrimSpace(string(body))
	}
	assert.Equal(t, "texto", parts["text/plain"])
	assert.Equal(t, "<p>html</p>", parts["text/html"])
}
