package client

import (
	"context"
	"encoding/json"
)

// SendResult is what every outbound send returns. Senders never return a
// Go error or panic past their boundary: a failure is carried in Err.
type SendResult struct {
	Data json.RawMessage
	Err  error
}

func Success(data json.RawMessage) SendResult {
	return SendResult{Data: data}
}

func Failure(err error) SendResult {
	return SendResult{Err: err}
}

func (r SendResult) OK() bool {
	return r.Err == nil
}

type InstanceStatus struct {
	Connected bool   `json:"connected"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
}

type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type WhatsAppSender interface {
	SendText(ctx context.Context, phone, message string) SendResult
}

type WhatsAppStatusProvider interface {
	ConnectionState(ctx context.Context) InstanceStatus
}

type WhatsAppGateway interface {
	WhatsAppSender
	WhatsAppStatusProvider
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) SendResult
}
