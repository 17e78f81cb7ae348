package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/balakodigital/crm-notifier/internal/apperr"
	"github.com/balakodigital/crm-notifier/internal/client"
	"github.com/balakodigital/crm-notifier/internal/events"
	"github.com/balakodigital/crm-notifier/internal/models"
	"github.com/balakodigital/crm-notifier/internal/notification"
	"github.com/balakodigital/crm-notifier/internal/repository"
	"github.com/balakodigital/crm-notifier/internal/testutil"
)

var brt = time.FixedZone("BRT", -3*3600)

// 2025-03-10 09:00 in BRT.
var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type sentText struct {
	phone   string
	message string
}

type fakeWhatsApp struct {
	calls []sentText
	err   error
	panic bool
}

func (f *fakeWhatsApp) SendText(_ context.Context, phone, message string) client.SendResult {
	f.calls = append(f.calls, sentText{phone, message})
	if f.panic {
		panic("gateway exploded")
	}
	if f.err != nil {
		return client.Failure(f.err)
	}
	return client.Success(nil)
}

type fakeEmail struct {
	calls []client.EmailMessage
	err   error
}

func (f *fakeEmail) Send(_ context.Context, msg client.EmailMessage) client.SendResult {
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return client.Failure(f.err)
	}
	return client.Success(nil)
}

type fakeStore struct {
	tasks   []models.DueTask
	queries int
	start   time.Time
	end     time.Time
	findErr error
	markErr error
	// stale makes MarkNotificationSent report that another run won.
	stale  bool
	marked map[string]bool
}

func (f *fakeStore) FindDueForNotification(_ context.Context, start, end time.Time) ([]models.DueTask, error) {
	f.queries++
	f.start, f.end = start, end
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.DueTask
	for _, t := range f.tasks {
		if !f.marked[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationSent(_ context.Context, id string) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.stale || f.marked[id] {
		return false, nil
	}
	if f.marked == nil {
		f.marked = map[string]bool{}
	}
	f.marked[id] = true
	return true, nil
}

type recordingPublisher struct {
	envs []events.Envelope
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, msg events.Envelope) error {
	p.envs = append(p.envs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type harness struct {
	store     *fakeStore
	whatsapp  *fakeWhatsApp
	email     *fakeEmail
	publisher *recordingPublisher
	d         *Dispatcher
}

func newHarness(secret string, store DueTaskStore) *harness {
	h := &harness{
		whatsapp:  &fakeWhatsApp{},
		email:     &fakeEmail{},
		publisher: &recordingPublisher{},
	}
	if fs, ok := store.(*fakeStore); ok {
		h.store = fs
	}
	h.d = NewDispatcher(secret, brt, store, h.whatsapp, h.email,
		notification.NewFormatter("", brt), h.publisher, zap.NewNop())
	h.d.now = func() time.Time { return fixedNow }
	return h
}

func dueTask(id string) models.DueTask {
	return models.DueTask{
		Task: models.Task{
			ID:      id,
			Title:   "Ligar para cliente",
			DueDate: time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC),
			Status:  models.TaskStatusPending,
		},
		Contact: &models.Contact{ID: "c1", Name: "Maria", Phone: "(11) 99999-9999"},
		User:    &models.User{ID: "u1", Name: "João", Email: "joao@example.com"},
	}
}

func TestRun_EmptySecretIsConfigurationError(t *testing.T) {
	h := newHarness("", &fakeStore{})

	_, err := h.d.Run(context.Background(), "")

	var cfgErr *apperr.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, h.store.queries)
}

func TestRun_WrongTokenTouchesNothing(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaWhatsApp = true
	h := newHarness("s3cret", &fakeStore{tasks: []models.DueTask{task}})

	for _, token := range []string{"", "wrong", "s3cret ", "S3CRET"} {
		_, err := h.d.Run(context.Background(), token)
		var authErr *apperr.AuthorizationError
		require.ErrorAs(t, err, &authErr, token)
	}

	assert.Zero(t, h.store.queries)
	assert.Empty(t, h.whatsapp.calls)
	assert.Empty(t, h.email.calls)
}

func TestRun_QueriesTodayInConfiguredZone(t *testing.T) {
	h := newHarness("s", &fakeStore{})

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC), h.store.start.UTC())
	assert.Equal(t, time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC), h.store.end.UTC())
	assert.Equal(t, "No tasks to process", summary.Message)
	assert.Equal(t, Stats{}, summary.Stats)
	assert.Empty(t, summary.Errors)
}

func TestRun_SendsOnceAcrossRuns(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaWhatsApp = true
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{task}})

	first, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, Stats{TasksFound: 1, TasksProcessed: 1, WhatsAppSent: 1}, first.Stats)
	require.Len(t, h.whatsapp.calls, 1)
	assert.Equal(t, "(11) 99999-9999", h.whatsapp.calls[0].phone)
	assert.Contains(t, h.whatsapp.calls[0].message, "Olá Maria!")
	assert.Contains(t, h.whatsapp.calls[0].message, "📅 Data: 10/03/2025")
	assert.Contains(t, h.whatsapp.calls[0].message, "🕐 Hora: 14:30")
	assert.True(t, first.Outcomes[0].Marked)

	second, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)
	assert.Zero(t, second.Stats.TasksFound)
	assert.Len(t, h.whatsapp.calls, 1)
}

func TestRun_WhatsAppFailsEmailSucceeds(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaWhatsApp = true
	task.NotifyViaEmail = true
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{task}})
	h.whatsapp.err = errors.New("whatsapp error status 500")

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, Stats{
		TasksFound: 1, TasksProcessed: 1,
		WhatsAppFailed: 1, EmailSent: 1, TotalErrors: 1,
	}, summary.Stats)
	assert.Equal(t, []string{"Task t1: WhatsApp failed - whatsapp error status 500"}, summary.Errors)
	assert.True(t, h.store.marked["t1"])

	require.Len(t, h.email.calls, 1)
	assert.Equal(t, "joao@example.com", h.email.calls[0].To)
	assert.Equal(t, "🔔 Lembrete: Ligar para cliente", h.email.calls[0].Subject)
	assert.NotEmpty(t, h.email.calls[0].HTML)

	require.Len(t, h.publisher.envs, 1)
	reminder := h.publisher.envs[0].Data.(events.TaskReminder)
	assert.Equal(t, []string{ChannelEmail}, reminder.Channels)
}

func TestRun_AllChannelsFailLeavesTaskUnmarked(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaWhatsApp = true
	task.NotifyViaEmail = true
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{task}})
	h.whatsapp.err = errors.New("down")
	h.email.err = errors.New("rejected")

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Stats.TasksProcessed)
	assert.Equal(t, []string{
		"Task t1: WhatsApp failed - down",
		"Task t1: Email failed - rejected",
	}, summary.Errors)
	assert.False(t, h.store.marked["t1"])
	assert.Empty(t, h.publisher.envs)
}

func TestRun_MissingRecipientsAreSkippedSilently(t *testing.T) {
	noPhone := dueTask("no-phone")
	noPhone.NotifyViaWhatsApp = true
	noPhone.Contact = nil
	noEmail := dueTask("no-email")
	noEmail.NotifyViaEmail = true
	noEmail.User.Email = ""
	nothing := dueTask("no-flags")

	h := newHarness("s", &fakeStore{tasks: []models.DueTask{noPhone, noEmail, nothing}})

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, Stats{TasksFound: 3}, summary.Stats)
	assert.Empty(t, summary.Errors)
	assert.Empty(t, h.whatsapp.calls)
	assert.Empty(t, h.email.calls)
	assert.Equal(t, ChannelSkipped, summary.Outcomes[0].WhatsApp)
	assert.Equal(t, ChannelSkipped, summary.Outcomes[1].Email)
	assert.Equal(t, ChannelNotRequested, summary.Outcomes[2].WhatsApp)
	assert.Equal(t, ChannelNotRequested, summary.Outcomes[2].Email)
}

func TestRun_FlagUpdateFailureIsRecorded(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaEmail = true
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{task}, markErr: errors.New("disk full")})

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stats.EmailSent)
	assert.Equal(t, 0, summary.Stats.TasksProcessed)
	assert.Equal(t, []string{"Task t1: Failed to update notificationSent flag"}, summary.Errors)
	assert.Equal(t, 1, summary.Stats.TotalErrors)
}

func TestRun_LostConditionalUpdateIsSkipped(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaEmail = true
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{task}, stale: true})

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Stats.TasksProcessed)
	assert.Empty(t, summary.Errors)
	assert.True(t, summary.Outcomes[0].AlreadyHandled)
	assert.Empty(t, h.publisher.envs)
}

func TestRun_PanickingSenderIsIsolated(t *testing.T) {
	first := dueTask("t1")
	first.NotifyViaWhatsApp = true
	second := dueTask("t2")
	second.NotifyViaEmail = true
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{first, second}})
	h.whatsapp.panic = true

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stats.WhatsAppFailed)
	assert.Equal(t, 1, summary.Stats.EmailSent)
	assert.Equal(t, 1, summary.Stats.TasksProcessed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "Task t1: WhatsApp failed - unexpected sender panic")
}

func TestRun_StoreFailureAbortsRun(t *testing.T) {
	h := newHarness("s", &fakeStore{findErr: errors.New("db locked")})

	_, err := h.d.Run(context.Background(), "s")
	assert.ErrorContains(t, err, "db locked")
}

func TestRun_PublishFailureOnlyLogs(t *testing.T) {
	task := dueTask("t1")
	task.NotifyViaEmail = true
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness("s", &fakeStore{tasks: []models.DueTask{task}})
	h.publisher.err = errors.New("broker gone")
	h.d.logger = zap.New(core)

	summary, err := h.d.Run(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stats.TasksProcessed)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, logs.FilterMessage("publishing reminder event").Len())
}

func TestDayBounds(t *testing.T) {
	late := time.Date(2025, 3, 11, 2, 30, 0, 0, time.UTC) // 23:30 on the 10th in BRT
	start, end := DayBounds(late, brt)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, brt), start)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, brt), end)
}

func TestRun_AgainstSQLite(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	contacts := repository.NewContactRepository(db)
	tasks := repository.NewTaskRepository(db)

	require.NoError(t, users.Create(ctx, &models.User{ID: "u1", Name: "João", Email: "joao@example.com"}))
	require.NoError(t, contacts.Create(ctx, &models.Contact{ID: "c1", Name: "Maria", Phone: "11999999999"}))
	require.NoError(t, tasks.Create(ctx, &models.Task{
		ID: "t1", Title: "Follow-up", DueDate: fixedNow.Add(2 * time.Hour),
		AssignedTo: "u1", ContactID: "c1", NotifyViaWhatsApp: true,
	}))
	require.NoError(t, tasks.Create(ctx, &models.Task{
		ID: "t2", Title: "Done already", DueDate: fixedNow, Status: models.TaskStatusComplete,
		AssignedTo: "u1", NotifyViaEmail: true,
	}))

	h := newHarness("s", tasks)

	first, err := h.d.Run(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, Stats{TasksFound: 1, TasksProcessed: 1, WhatsAppSent: 1}, first.Stats)

	second, err := h.d.Run(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, second.Stats.TasksFound)
	assert.Len(t, h.whatsapp.calls, 1)

	stored, err := tasks.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher("s", nil, nil, nil, nil, nil, nil, zap.NewNop())

	assert.Equal(t, time.UTC, d.location)
	assert.NotNil(t, d.formatter)
	assert.Equal(t, events.Nop{}, d.publisher)
}
