package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/metrics"
)

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// ResendTransport delivers through the Resend transactional email API.
type ResendTransport struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
}

func NewResendTransport(baseURL, apiKey string, timeout time.Duration) *ResendTransport {
	return &ResendTransport{
		baseUrl:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *ResendTransport) Name() string { return TransportResend }

func (t *ResendTransport) Deliver(ctx context.Context, env Envelope) (json.RawMessage, error) {
	body, err := json.Marshal(resendRequest{
		From:    env.From,
		To:      []string{env.To},
		Subject: env.Subject,
		Text:    env.Text,
		HTML:    env.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request (resend): %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseUrl+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request (resend): %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.GatewayRequestDuration.WithLabelValues(TransportResend, "error").Observe(time.Since(start).Seconds())
		return nil, &apperr.TransportError{Gateway: TransportResend, Err: err}
	}
	defer resp.Body.Close()
	metrics.GatewayRequestDuration.WithLabelValues(TransportResend, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.TransportError{Gateway: TransportResend, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var resendErr resendError
		msg := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &resendErr); err == nil && resendErr.Message != "" {
			msg = resendErr.Message
		}
		return nil, &apperr.TransportError{Gateway: TransportResend, StatusCode: resp.StatusCode, Body: msg}
	}

	if !json.Valid(respBody) {
		return nil, nil
	}
	return respBody, nil
}
