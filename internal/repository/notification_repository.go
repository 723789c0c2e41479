package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/perf-review-api/internal/models"
)

const notificationColumns = `id, review_log_id, recipient_id, title, message, link, context, metadata, is_read, read_at, created_at, updated_at`

// NotificationRepository stores the notification read-model of review logs.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertForLog creates or regenerates the notification of a review log and
// returns its id along with whether it was newly inserted. A regenerated
// notification becomes unread again.
func (r *NotificationRepository) UpsertForLog(ctx context.Context, exec sqlx.ExtContext, n *models.Notification, now time.Time) (string, bool, error) {
	const query = `
INSERT INTO notifications (id, review_log_id, recipient_id, title, message, link, context, metadata, is_read, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $9)
ON CONFLICT (review_log_id) DO UPDATE
SET recipient_id = EXCLUDED.recipient_id,
	title = EXCLUDED.title,
	message = EXCLUDED.message,
	link = EXCLUDED.link,
	context = EXCLUDED.context,
	metadata = notifications.metadata || EXCLUDED.metadata,
	is_read = FALSE,
	read_at = NULL,
	updated_at = EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS inserted`

	var row struct {
		ID       string `db:"id"`
		Inserted bool   `db:"inserted"`
	}
	if err := sqlx.GetContext(ctx, r.exec(exec), &row, query,
		uuid.NewString(), n.ReviewLogID, n.RecipientID, n.Title, n.Message, n.Link, n.Context, n.Metadata, now,
	); err != nil {
		return "", false, fmt.Errorf("upsert notification: %w", err)
	}
	return row.ID, row.Inserted, nil
}

// SetLink replaces the notification link once its id is known.
func (r *NotificationRepository) SetLink(ctx context.Context, exec sqlx.ExtContext, id, link string) error {
	const query = `UPDATE notifications SET link = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, link); err != nil {
		return fmt.Errorf("set notification link: %w", err)
	}
	return nil
}

// MarkReadByLog marks the notification of a review log read.
func (r *NotificationRepository) MarkReadByLog(ctx context.Context, exec sqlx.ExtContext, reviewLogID string, now time.Time) error {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $2, updated_at = $2 WHERE review_log_id = $1 AND is_read = FALSE`
	if _, err := r.exec(exec).ExecContext(ctx, query, reviewLogID, now); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkRead marks a notification read and reports whether it exists.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $2), updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// List returns a page of notifications for a recipient and the total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := `WHERE recipient_id = $1`
	if filter.UnreadOnly {
		where += ` AND is_read = FALSE`
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications `+where, filter.RecipientID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.RecipientID, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}
