package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/client"
	"github.com/balakodigital/crm-notifier/internal/events"
	"github.com/balakodigital/crm-notifier/internal/metrics"
	"github.com/balakodigital/crm-notifier/internal/models"
	"github.com/balakodigital/crm-notifier/internal/notification"
	"github.com/balakodigital/crm-notifier/internal/observability"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"

	eventPublishTimeout = 5 * time.Second
)

// DueTaskStore is the part of the task repository the dispatcher needs.
type DueTaskStore interface {
	FindDueForNotification(ctx context.Context, start, end time.Time) ([]models.DueTask, error)
	MarkNotificationSent(ctx context.Context, id string) (bool, error)
}

// ChannelResult is what happened on one channel for one task.
type ChannelResult string

const (
	ChannelNotRequested ChannelResult = "not_requested"
	// ChannelSkipped means the channel was requested but there was no
	// recipient address.
	ChannelSkipped ChannelResult = "skipped"
	ChannelSent    ChannelResult = "sent"
	ChannelFailed  ChannelResult = "failed"
)

type TaskOutcome struct {
	TaskID   string
	WhatsApp ChannelResult
	Email    ChannelResult
	// Marked is true when this run flipped notification_sent.
	Marked bool
	// AlreadyHandled is true when another run flipped it first.
	AlreadyHandled bool
}

type Stats struct {
	TasksFound     int `json:"tasksFound"`
	TasksProcessed int `json:"tasksProcessed"`
	WhatsAppSent   int `json:"whatsappSent"`
	WhatsAppFailed int `json:"whatsappFailed"`
	EmailSent      int `json:"emailSent"`
	EmailFailed    int `json:"emailFailed"`
	TotalErrors    int `json:"totalErrors"`
}

// Summary is the result of one dispatcher run. Errors holds one tagged
// string per failed channel or failed flag update.
type Summary struct {
	Message  string
	Stats    Stats
	Errors   []string
	Duration time.Duration
	Outcomes []TaskOutcome
}

type Dispatcher struct {
	secret    string
	location  *time.Location
	tasks     DueTaskStore
	whatsapp  client.WhatsAppSender
	email     client.EmailSender
	formatter *notification.Formatter
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(
	secret string,
	location *time.Location,
	tasks DueTaskStore,
	whatsapp client.WhatsAppSender,
	email client.EmailSender,
	formatter *notification.Formatter,
	publisher events.Publisher,
	logger *zap.Logger,
) *Dispatcher {
	if location == nil {
		location = time.UTC
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if formatter == nil {
		formatter = notification.NewFormatter("", location)
	}
	return &Dispatcher{
		secret:    secret,
		location:  location,
		tasks:     tasks,
		whatsapp:  whatsapp,
		email:     email,
		formatter: formatter,
		publisher: publisher,
		logger:    logger.Named("dispatcher"),
		now:       time.Now,
	}
}

// Authorize checks token against the configured secret in constant time.
// An empty secret rejects everything with a configuration error.
func (d *Dispatcher) Authorize(token string) error {
	if d.secret == "" {
		return &apperr.ConfigurationError{Missing: []string{"CRON_SECRET"}}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(d.secret)) != 1 {
		return &apperr.AuthorizationError{Reason: "invalid token"}
	}
	return nil
}

// DayBounds returns local midnight of now's day and the following midnight.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, day := now.In(loc).Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, loc)
	return start, time.Date(y, m, day+1, 0, 0, 0, 0, loc)
}

// Run authorizes token, then notifies every task due today that has not
// been notified yet. Tasks are handled one at a time in due order and a
// failure on one task never stops the others.
func (d *Dispatcher) Run(ctx context.Context, token string) (Summary, error) {
	started := d.now()
	log := observability.LoggerFromContext(ctx, d.logger)

	if err := d.Authorize(token); err != nil {
		result := "unauthorized"
		var cfgErr *apperr.ConfigurationError
		if errors.As(err, &cfgErr) {
			result = "misconfigured"
			log.Error("dispatcher secret not configured")
		} else {
			log.Warn("rejected dispatcher run", zap.Error(err))
		}
		metrics.DispatchRunsTotal.WithLabelValues(result).Inc()
		return Summary{}, err
	}

	dayStart, dayEnd := DayBounds(started, d.location)
	log.Info("dispatcher run started",
		zap.Time("day_start", dayStart),
		zap.Time("day_end", dayEnd))

	due, err := d.tasks.FindDueForNotification(ctx, dayStart, dayEnd)
	if err != nil {
		metrics.DispatchRunsTotal.WithLabelValues("error").Inc()
		log.Error("querying due tasks", zap.Error(err))
		return Summary{}, fmt.Errorf("querying due tasks: %w", err)
	}

	summary := Summary{
		Stats:    Stats{TasksFound: len(due)},
		Errors:   []string{},
		Outcomes: make([]TaskOutcome, 0, len(due)),
	}
	for _, task := range due {
		summary.Outcomes = append(summary.Outcomes, d.processTask(ctx, log, task, &summary))
	}

	summary.Stats.TotalErrors = len(summary.Errors)
	summary.Duration = d.now().Sub(started)
	if len(due) == 0 {
		summary.Message = "No tasks to process"
	} else {
		summary.Message = "Task notifications processed"
	}

	metrics.DispatchRunsTotal.WithLabelValues("ok").Inc()
	metrics.DispatchRunDuration.Observe(summary.Duration.Seconds())

	log.Info("dispatcher run completed",
		zap.Int("tasks_found", summary.Stats.TasksFound),
		zap.Int("tasks_processed", summary.Stats.TasksProcessed),
		zap.Int("whatsapp_sent", summary.Stats.WhatsAppSent),
		zap.Int("whatsapp_failed", summary.Stats.WhatsAppFailed),
		zap.Int("email_sent", summary.Stats.EmailSent),
		zap.Int("email_failed", summary.Stats.EmailFailed),
		zap.Int("errors", summary.Stats.TotalErrors),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

func (d *Dispatcher) processTask(ctx context.Context, log *zap.Logger, task models.DueTask, summary *Summary) TaskOutcome {
	log = log.With(zap.String("task_id", task.ID))
	outcome := TaskOutcome{
		TaskID:   task.ID,
		WhatsApp: ChannelNotRequested,
		Email:    ChannelNotRequested,
	}

	if task.NotifyViaWhatsApp {
		outcome.WhatsApp = d.sendWhatsApp(ctx, log, task, summary)
	}
	if task.NotifyViaEmail {
		outcome.Email = d.sendEmail(ctx, log, task, summary)
	}

	if outcome.WhatsApp != ChannelSent && outcome.Email != ChannelSent {
		log.Info("no notification sent for task")
		return outcome
	}

	marked, err := d.tasks.MarkNotificationSent(ctx, task.ID)
	switch {
	case err != nil:
		perr := &apperr.PersistenceError{Op: "mark notification sent", Err: err}
		log.Error("failed to update notification flag", zap.Error(perr))
		summary.Errors = append(summary.Errors, fmt.Sprintf("Task %s: Failed to update notificationSent flag", task.ID))
	case !marked:
		outcome.AlreadyHandled = true
		log.Warn("task already marked by another run")
	default:
		outcome.Marked = true
		summary.Stats.TasksProcessed++
		d.publishReminder(ctx, log, task, outcome)
	}
	return outcome
}

func (d *Dispatcher) sendWhatsApp(ctx context.Context, log *zap.Logger, task models.DueTask, summary *Summary) ChannelResult {
	if task.Contact == nil || strings.TrimSpace(task.Contact.Phone) == "" {
		log.Info("whatsapp skipped, no contact phone")
		metrics.NotificationSendTotal.WithLabelValues(ChannelWhatsApp, string(ChannelSkipped)).Inc()
		return ChannelSkipped
	}

	message := d.formatter.WhatsApp(task.Task, task.Contact.Name)
	res := guardSend(func() client.SendResult {
		return d.whatsapp.SendText(ctx, task.Contact.Phone, message)
	})
	if !res.OK() {
		summary.Stats.WhatsAppFailed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("Task %s: WhatsApp failed - %v", task.ID, res.Err))
		metrics.NotificationSendTotal.WithLabelValues(ChannelWhatsApp, string(ChannelFailed)).Inc()
		log.Warn("whatsapp failed", zap.Error(res.Err))
		return ChannelFailed
	}

	summary.Stats.WhatsAppSent++
	metrics.NotificationSendTotal.WithLabelValues(ChannelWhatsApp, string(ChannelSent)).Inc()
	log.Info("whatsapp sent")
	return ChannelSent
}

func (d *Dispatcher) sendEmail(ctx context.Context, log *zap.Logger, task models.DueTask, summary *Summary) ChannelResult {
	if task.User == nil || strings.TrimSpace(task.User.Email) == "" {
		log.Info("email skipped, no user email")
		metrics.NotificationSendTotal.WithLabelValues(ChannelEmail, string(ChannelSkipped)).Inc()
		return ChannelSkipped
	}

	rendered := d.formatter.Email(task.Task, task.User.Name)
	res := guardSend(func() client.SendResult {
		return d.email.Send(ctx, client.EmailMessage{
			To:      task.User.Email,
			Subject: rendered.Subject,
			Text:    rendered.Text,
			HTML:    rendered.HTML,
		})
	})
	if !res.OK() {
		summary.Stats.EmailFailed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("Task %s: Email failed - %v", task.ID, res.Err))
		metrics.NotificationSendTotal.WithLabelValues(ChannelEmail, string(ChannelFailed)).Inc()
		log.Warn("email failed", zap.Error(res.Err))
		return ChannelFailed
	}

	summary.Stats.EmailSent++
	metrics.NotificationSendTotal.WithLabelValues(ChannelEmail, string(ChannelSent)).Inc()
	log.Info("email sent")
	return ChannelSent
}

// guardSend turns a panicking sender into a failed result so one task
// cannot abort the run.
func guardSend(send func() client.SendResult) (res client.SendResult) {
	defer func() {
		if r := recover(); r != nil {
			res = client.Failure(fmt.Errorf("unexpected sender panic: %v", r))
		}
	}()
	return send()
}

func (d *Dispatcher) publishReminder(ctx context.Context, log *zap.Logger, task models.DueTask, outcome TaskOutcome) {
	var channels []string
	if outcome.WhatsApp == ChannelSent {
		channels = append(channels, ChannelWhatsApp)
	}
	if outcome.Email == ChannelSent {
		channels = append(channels, ChannelEmail)
	}

	env := events.NewEnvelope(events.TypeTaskReminder, events.TaskReminder{
		TaskID:   task.ID,
		Channels: channels,
		DueDate:  task.DueDate.UTC(),
	}, d.now(), observability.RequestID(ctx))

	pubCtx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()
	if err := d.publisher.Publish(pubCtx, events.TypeTaskReminder, env); err != nil {
		log.Warn("publishing reminder event", zap.Error(err))
	}
}
