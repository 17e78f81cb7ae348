package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/models"
)

var ErrNotFound = errors.New("record not found")

const taskColumns = `
	t.id, t.title, t.description, t.due_date, t.status,
	COALESCE(t.assigned_to, '') AS assigned_to,
	COALESCE(t.contact_id, '') AS contact_id,
	COALESCE(t.created_by, '') AS created_by,
	t.notify_via_whatsapp, t.notify_via_email, t.notification_sent,
	t.created_at`

type TaskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO tasks (
			id, title, description, due_date, status,
			assigned_to, contact_id, created_by,
			notify_via_whatsapp, notify_via_email, notification_sent,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.DueDate.UTC(), task.Status,
		nullIfEmpty(task.AssignedTo), nullIfEmpty(task.ContactID), nullIfEmpty(task.CreatedBy),
		task.NotifyViaWhatsApp, task.NotifyViaEmail, task.NotificationSent,
		task.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.db.GetContext(ctx, &task, "SELECT "+taskColumns+" FROM tasks t WHERE t.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

// dueTaskRow is the flat shape of the due-task join. The user and contact
// columns are NULL when the reference is unset or dangling.
type dueTaskRow struct {
	models.Task
	UserID       sql.NullString `db:"user_id"`
	UserName     sql.NullString `db:"user_name"`
	UserEmail    sql.NullString `db:"user_email"`
	UserPhone    sql.NullString `db:"user_phone"`
	UserRole     sql.NullString `db:"user_role"`
	ContactRowID sql.NullString `db:"contact_row_id"`
	ContactName  sql.NullString `db:"contact_name"`
	ContactEmail sql.NullString `db:"contact_email"`
	ContactPhone sql.NullString `db:"contact_phone"`
}

func (row dueTaskRow) toDueTask() models.DueTask {
	due := models.DueTask{Task: row.Task}
	if row.UserID.Valid {
		due.User = &models.User{
			ID:    row.UserID.String,
			Name:  row.UserName.String,
			Email: row.UserEmail.String,
			Phone: row.UserPhone.String,
			Role:  models.ParseRole(row.UserRole.String),
		}
	}
	if row.ContactRowID.Valid {
		due.Contact = &models.Contact{
			ID:    row.ContactRowID.String,
			Name:  row.ContactName.String,
			Email: row.ContactEmail.String,
			Phone: row.ContactPhone.String,
		}
	}
	return due
}

// FindDueForNotification returns tasks due in [start, end) that are not
// complete and have not been notified yet, earliest first, each joined with
// its assigned user and contact.
func (r *TaskRepository) FindDueForNotification(ctx context.Context, start, end time.Time) ([]models.DueTask, error) {
	query := `
		SELECT ` + taskColumns + `,
			u.id AS user_id, u.name AS user_name, u.email AS user_email,
			u.phone AS user_phone, u.role AS user_role,
			c.id AS contact_row_id, c.name AS contact_name,
			c.email AS contact_email, c.phone AS contact_phone
		FROM tasks t
		LEFT JOIN users u ON u.id = t.assigned_to
		LEFT JOIN contacts c ON c.id = t.contact_id
		WHERE t.due_date >= ? AND t.due_date < ?
			AND t.notification_sent = 0
			AND t.status != ?
		ORDER BY t.due_date ASC`

	var rows []dueTaskRow
	if err := r.db.SelectContext(ctx, &rows, query, start.UTC(), end.UTC(), models.TaskStatusComplete); err != nil {
		return nil, fmt.Errorf("querying due tasks: %w", err)
	}

	tasks := make([]models.DueTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toDueTask())
	}
	return tasks, nil
}

// MarkNotificationSent flips notification_sent only if it is still unset.
// It reports false when another run already did it.
func (r *TaskRepository) MarkNotificationSent(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET notification_sent = 1 WHERE id = ? AND notification_sent = 0", id)
	if err != nil {
		return false, fmt.Errorf("marking task %s notified: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking task %s notified: %w", id, err)
	}
	return n == 1, nil
}

// List returns the tasks visible under p, newest first.
func (r *TaskRepository) List(ctx context.Context, p access.Predicate) ([]models.Task, error) {
	tasks := []models.Task{}
	if p.MatchesNothing() {
		return tasks, nil
	}
	where, args := p.SQL("t")
	query := "SELECT " + taskColumns + " FROM tasks t WHERE " + where + " ORDER BY t.created_at DESC"
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// CountPendingFollowUps counts tasks under p that are not complete and are
// due before the given instant, overdue ones included.
func (r *TaskRepository) CountPendingFollowUps(ctx context.Context, p access.Predicate, before time.Time) (int, error) {
	if p.MatchesNothing() {
		return 0, nil
	}
	where, args := p.SQL("t")
	query := "SELECT COUNT(*) FROM tasks t WHERE t.due_date < ? AND t.status != ? AND " + where
	args = append([]any{before.UTC(), models.TaskStatusComplete}, args...)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("counting pending follow-ups: %w", err)
	}
	return count, nil
}
