package whatsapp

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/client"
	"github.com/balakodigital/crm-notifier/internal/metrics"
)

const (
	gatewayName          = "whatsapp"
	defaultSendTimeout   = 30 * time.Second
	defaultStatusTimeout = 10 * time.Second
	maxErrorBody         = 4 << 10
)

type Config struct {
	BaseURL       string
	APIKey        string
	Instance      string
	Timeout       time.Duration
	StatusTimeout time.Duration
	// RatePerMinute caps outbound calls. Zero means unlimited.
	RatePerMinute int
}

// Client talks to an Evolution API instance.
type Client struct {
	baseUrl       string
	apiKey        string
	instance      string
	httpClient    *http.Client
	statusTimeout time.Duration
	limiter       *rate.Limiter
	logger        *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	var missing []string
	if cfg.BaseURL == "" {
		missing = append(missing, "EVOLUTION_API_URL")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "EVOLUTION_API_KEY")
	}
	if cfg.Instance == "" {
		missing = append(missing, "EVOLUTION_INSTANCE_NAME")
	}
	if len(missing) > 0 {
		return nil, &apperr.ConfigurationError{Missing: missing}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	statusTimeout := cfg.StatusTimeout
	if statusTimeout <= 0 {
		statusTimeout = defaultStatusTimeout
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1)
	}

	return &Client{
		baseUrl:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		instance:      cfg.Instance,
		httpClient:    &http.Client{Timeout: timeout},
		statusTimeout: statusTimeout,
		limiter:       limiter,
		logger:        logger.Named("whatsapp"),
	}, nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, phone, message string) client.SendResult {
	if strings.TrimSpace(message) == "" {
		return client.Failure(&apperr.ValidationError{Field: "message", Message: "must not be empty"})
	}
	number, err := NormalizePhone(phone)
	if err != nil {
		return client.Failure(err)
	}

	c.logger.Debug("sending text", zap.String("number", number))
	return c.post(ctx, "/message/sendText/"+c.instance, SendTextRequest{
		Number: number,
		Text:   message,
	})
}

// SendImage sends an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, phone, imageURL, caption string) client.SendResult {
	return c.sendMedia(ctx, phone, SendMediaRequest{
		MediaType: MediaTypeImage,
		Media:     imageURL,
		Caption:   caption,
	})
}

// SendFile sends a document by URL.
func (c *Client) SendFile(ctx context.Context, phone, fileURL, fileName, caption string) client.SendResult {
	if strings.TrimSpace(fileName) == "" {
		return client.Failure(&apperr.ValidationError{Field: "fileName", Message: "must not be empty"})
	}
	return c.sendMedia(ctx, phone, SendMediaRequest{
		MediaType: MediaTypeDocument,
		Media:     fileURL,
		FileName:  fileName,
		Caption:   caption,
	})
}

func (c *Client) sendMedia(ctx context.Context, phone string, req SendMediaRequest) client.SendResult {
	if strings.TrimSpace(req.Media) == "" {
		return client.Failure(&apperr.ValidationError{Field: "media", Message: "must not be empty"})
	}
	number, err := NormalizePhone(phone)
	if err != nil {
		return client.Failure(err)
	}
	req.Number = number

	c.logger.Debug("sending media", zap.String("number", number), zap.String("mediatype", string(req.MediaType)))
	return c.post(ctx, "/message/sendMedia/"+c.instance, req)
}

// ConnectionState asks the gateway whether the instance is connected to
// WhatsApp. Failures are reported as disconnected with the error attached.
func (c *Client) ConnectionState(ctx context.Context) client.InstanceStatus {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	url := c.baseUrl + "/instance/connectionState/" + c.instance

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return client.InstanceStatus{Error: fmt.Sprintf("build request (whatsapp): %v", err)}
	}
	req.Header.Set("apikey", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GatewayRequestDuration.WithLabelValues(gatewayName, "error").Observe(time.Since(start).Seconds())
		c.logger.Warn("connection state request failed", zap.Error(err))
		return client.InstanceStatus{Error: err.Error()}
	}
	defer resp.Body.Close()
	metrics.GatewayRequestDuration.WithLabelValues(gatewayName, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return client.InstanceStatus{Error: fmt.Sprintf("read response body (whatsapp): %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return client.InstanceStatus{Error: errorBody(body, resp.StatusCode)}
	}

	var stateResp ConnectionStateResponse
	if err := json.Unmarshal(body, &stateResp); err != nil {
		return client.InstanceStatus{Error: fmt.Sprintf("parse connection state (whatsapp): %v", err)}
	}

	state := stateResp.resolvedState()
	return client.InstanceStatus{
		Connected: state == "open" || state == "connected",
		State:     state,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) client.SendResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return client.Failure(&apperr.TransportError{Gateway: gatewayName, Err: err})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return client.Failure(fmt.Errorf("encode request (whatsapp): %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+path, bytes.NewReader(body))
	if err != nil {
		return client.Failure(fmt.Errorf("build request (whatsapp): %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GatewayRequestDuration.WithLabelValues(gatewayName, "error").Observe(time.Since(start).Seconds())
		c.logger.Warn("request failed", zap.String("path", path), zap.Error(err))
		return client.Failure(&apperr.TransportError{Gateway: gatewayName, Err: err})
	}
	defer resp.Body.Close()
	metrics.GatewayRequestDuration.WithLabelValues(gatewayName, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return client.Failure(&apperr.TransportError{Gateway: gatewayName, StatusCode: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("gateway rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return client.Failure(&apperr.TransportError{
			Gateway:    gatewayName,
			StatusCode: resp.StatusCode,
			Body:       errorBody(respBody, resp.StatusCode),
		})
	}

	if !json.Valid(respBody) {
		respBody = nil
	}
	return client.Success(respBody)
}

// errorBody returns the upstream error payload, compacted when it is JSON.
func errorBody(body []byte, status int) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err == nil {
		return compact.String()
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return http.StatusText(status)
}
