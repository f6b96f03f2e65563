// Package store persists notifications and reads recipients from PostgreSQL.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"time"

	"message-notifier/internal/common/database"
	"message-notifier/internal/common/errors"
	"message-notifier/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

var (
	ErrNotFound          = stderrors.New("notification not found")
	ErrRecipientNotFound = stderrors.New("recipient not found")
	ErrStateConflict     = stderrors.New("notification is not pending")
)

// pq error code for foreign_key_violation
const fkViolation = "23503"

const (
	selectNotification = `
		SELECT n.id, n.message, n.status, n.retry_count, n.last_channel, n.sent_at, n.created_at,
		       r.id, r.email, r.phone_number, r.telegram_id, r.first_name, r.last_name
		FROM notifications n
		JOIN recipients r ON r.id = n.recipient_id`

	selectRecipient = `
		SELECT id, email, phone_number, telegram_id, first_name, last_name
		FROM recipients
		WHERE id = $1`

	insertNotification = `
		INSERT INTO notifications (id, recipient_id, message, status, retry_count, created_at)
		VALUES ($1, $2, $3, 'pending', 0, $4)`

	updateFailed = `
		UPDATE notifications SET status = 'failed'
		WHERE id = $1 AND status = 'pending'`

	updateSent = `
		UPDATE notifications SET status = 'sent', last_channel = $2, sent_at = $3
		WHERE id = $1 AND status = 'pending'`

	updateFailedCycle = `
		UPDATE notifications SET retry_count = $2, last_channel = $3
		WHERE id = $1 AND status = 'pending' AND retry_count = $2 - 1`
)

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(client *database.PostgresClient) *PostgresStore {
	return &PostgresStore{db: client.GetDB(), now: time.Now}
}

// Migrate creates the tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewQueryExecutionFailedError("migrate", err)
	}
	return nil
}

// Create stores a new pending notification for an existing recipient.
func (s *PostgresStore) Create(ctx context.Context, recipientID, message string) (*models.Notification, error) {
	recipient, err := s.GetRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:        uuid.New().String(),
		Recipient: *recipient,
		Message:   message,
		Status:    models.StatusPending,
		CreatedAt: s.now().UTC(),
	}

	if _, err := s.db.ExecContext(ctx, insertNotification, n.ID, recipientID, message, n.CreatedAt); err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == fkViolation {
			return nil, errors.NewRecipientNotFoundError(recipientID, ErrRecipientNotFound)
		}
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	return n, nil
}

func (s *PostgresStore) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	var r models.Recipient
	err := s.db.QueryRowContext(ctx, selectRecipient, id).Scan(
		&r.ID, &r.Email, &r.PhoneNumber, &r.TelegramID, &r.FirstName, &r.LastName,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewRecipientNotFoundError(id, ErrRecipientNotFound)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get recipient", err)
	}
	return &r, nil
}

// GetByID returns the full snapshot of a notification including its recipient.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewNotificationNotFoundError(id, ErrNotFound)
	}

	n, err := scanNotification(s.db.QueryRowContext(ctx, selectNotification+` WHERE n.id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotificationNotFoundError(id, ErrNotFound)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get notification", err)
	}
	return n, nil
}

// ListByStatus returns up to limit notifications in status, oldest first.
func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		selectNotification+` WHERE n.status = $1 ORDER BY n.created_at LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	return out, nil
}

// MarkFailed writes {status}.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string) error {
	return s.update(ctx, "mark failed", id, updateFailed, id)
}

// MarkSent writes {status, last_channel, sent_at}.
func (s *PostgresStore) MarkSent(ctx context.Context, id string, channel models.Channel, sentAt time.Time) error {
	return s.update(ctx, "mark sent", id, updateSent, id, string(channel), sentAt)
}

// RecordFailedCycle writes {retry_count, last_channel}. The update only applies
// when the stored count is exactly one below retryCount, so two cycles racing
// on the same snapshot cannot both count.
func (s *PostgresStore) RecordFailedCycle(ctx context.Context, id string, retryCount int, channel models.Channel) error {
	return s.update(ctx, "record failed cycle", id, updateFailedCycle, id, retryCount, string(channel))
}

func (s *PostgresStore) update(ctx context.Context, op, id, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewQueryExecutionFailedError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError(op, err)
	}
	if affected == 0 {
		return errors.NewStateConflictError(id, ErrStateConflict)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n           models.Notification
		status      string
		lastChannel sql.NullString
		sentAt      sql.NullTime
	)
	err := row.Scan(
		&n.ID, &n.Message, &status, &n.RetryCount, &lastChannel, &sentAt, &n.CreatedAt,
		&n.Recipient.ID, &n.Recipient.Email, &n.Recipient.PhoneNumber, &n.Recipient.TelegramID,
		&n.Recipient.FirstName, &n.Recipient.LastName,
	)
	if err != nil {
		return nil, err
	}

	n.Status = models.Status(status)
	if lastChannel.Valid {
		n.LastChannel = models.Channel(lastChannel.String)
	}
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		n.SentAt = &t
	}
	return &n, nil
}
