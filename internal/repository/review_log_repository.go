package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/perf-review-api/internal/models"
)

const reviewLogColumns = `id, subject_id, respondent_id, COALESCE(period_id::text, '') AS period_id, task_id, context, token, expires_at, status, metadata, created_at, updated_at`

// Each context has its own partial unique index over open logs.
const (
	skillLogConflict = `ON CONFLICT (subject_id, respondent_id, period_id, context) WHERE status IN ('pending', 'pending_notification')`
	taskLogConflict  = `ON CONFLICT (subject_id, respondent_id, task_id) WHERE context = 'task' AND status IN ('pending', 'pending_notification')`
)

// ReviewLogRepository persists review tokens and their lifecycle.
type ReviewLogRepository struct {
	db *sqlx.DB
}

// NewReviewLogRepository constructs the repository.
func NewReviewLogRepository(db *sqlx.DB) *ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

func (r *ReviewLogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

type upsertedReviewLog struct {
	models.ReviewLog
	Inserted bool `db:"inserted"`
}

// UpsertOpen creates a pending_notification log for the tuple, or refreshes the
// expiry and metadata of the open log that already holds it. Skill logs are
// keyed by period and task logs by task; the partial unique indexes on open
// logs make concurrent callers converge on one row.
func (r *ReviewLogRepository) UpsertOpen(ctx context.Context, exec sqlx.ExtContext, in models.ReviewLogUpsert, now time.Time) (*models.ReviewLog, bool, error) {
	conflict := skillLogConflict
	if in.Context == models.ReviewContextTask {
		if in.TaskID == nil {
			return nil, false, errors.New("upsert review log: task log without task id")
		}
		conflict = taskLogConflict
	}
	query := `
INSERT INTO review_logs (id, subject_id, respondent_id, period_id, task_id, context, token, expires_at, status, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending_notification', $9, $10, $10)
` + conflict + `
DO UPDATE SET
	expires_at = EXCLUDED.expires_at,
	metadata = review_logs.metadata || EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at
RETURNING ` + reviewLogColumns + `, (xmax = 0) AS inserted`

	token := in.Token
	if token == "" {
		token = uuid.NewString()
	}
	var period, task interface{}
	if in.PeriodID != "" {
		period = in.PeriodID
	}
	if in.TaskID != nil {
		task = *in.TaskID
	}
	var row upsertedReviewLog
	if err := sqlx.GetContext(ctx, r.exec(exec), &row, query,
		uuid.NewString(), in.SubjectID, in.RespondentID, period, task, in.Context, token, in.ExpiresAt, in.Metadata, now,
	); err != nil {
		return nil, false, fmt.Errorf("upsert review log: %w", err)
	}
	return &row.ReviewLog, row.Inserted, nil
}

// FindByToken returns the log for token or nil when unknown.
func (r *ReviewLogRepository) FindByToken(ctx context.Context, token string) (*models.ReviewLog, error) {
	const query = `SELECT ` + reviewLogColumns + ` FROM review_logs WHERE token = $1`
	return r.getOne(ctx, r.db, query, token)
}

// LockByToken loads the log for token holding a row lock until the transaction ends.
func (r *ReviewLogRepository) LockByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*models.ReviewLog, error) {
	const query = `SELECT ` + reviewLogColumns + ` FROM review_logs WHERE token = $1 FOR UPDATE`
	return r.getOne(ctx, r.exec(exec), query, token)
}

func (r *ReviewLogRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.ReviewLog, error) {
	var log models.ReviewLog
	if err := sqlx.GetContext(ctx, q, &log, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review log: %w", err)
	}
	return &log, nil
}

// ExpireIfOpen flips an open log to expired. It is a no-op for logs already
// in a terminal state, so repeated calls are stable.
func (r *ReviewLogRepository) ExpireIfOpen(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) (bool, error) {
	const query = `
UPDATE review_logs
SET status = 'expired', metadata = metadata || $2, updated_at = $3
WHERE id = $1 AND status IN ('pending', 'pending_notification')`

	meta := models.Metadata{models.MetaExpiredAt: now.UTC().Format(time.RFC3339)}
	res, err := r.exec(exec).ExecContext(ctx, query, id, meta, now)
	if err != nil {
		return false, fmt.Errorf("expire review log: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// UpdateStatus sets the status and merges metadata into the log.
func (r *ReviewLogRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ReviewStatus, meta models.Metadata, now time.Time) error {
	const query = `UPDATE review_logs SET status = $2, metadata = metadata || $3, updated_at = $4 WHERE id = $1`
	if meta == nil {
		meta = models.Metadata{}
	}
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, meta, now); err != nil {
		return fmt.Errorf("update review log status: %w", err)
	}
	return nil
}

// ListBySubject returns every skill log about subjectID.
func (r *ReviewLogRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.ReviewLog, error) {
	const query = `SELECT ` + reviewLogColumns + ` FROM review_logs WHERE subject_id = $1 AND context = 'skill' ORDER BY created_at ASC`
	var logs []models.ReviewLog
	if err := r.db.SelectContext(ctx, &logs, query, subjectID); err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	return logs, nil
}
