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

	"github.com/noah-isme/perf-review-api/internal/models"
)

// AnswerRepository stores review answers and placeholder slots.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository constructs the repository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// EnsurePlaceholders inserts missing unanswered slots and returns how many were created.
// Existing rows, answered or not, are left untouched.
func (r *AnswerRepository) EnsurePlaceholders(ctx context.Context, exec sqlx.ExtContext, placeholders []models.PlaceholderAnswer, now time.Time) (int, error) {
	const query = `
INSERT INTO answers (id, subject_id, respondent_id, period_id, question_id, grade, answered, question_type, weight, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, FALSE, $6, $7, $8, $8)
ON CONFLICT (subject_id, respondent_id, period_id, question_id) DO NOTHING
RETURNING id`

	target := r.exec(exec)
	created := 0
	for _, p := range placeholders {
		var id string
		err := target.QueryRowxContext(ctx, query,
			uuid.NewString(), p.SubjectID, p.RespondentID, p.PeriodID, p.QuestionID, p.QuestionType, p.Weight, now,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("insert placeholder answer: %w", err)
		}
		created++
	}
	return created, nil
}

// Upsert stores a validated answer, marking the slot answered.
func (r *AnswerRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, w models.AnswerWrite, now time.Time) error {
	const query = `
INSERT INTO answers (id, subject_id, respondent_id, period_id, question_id, grade, answer_value, is_correct, answered, question_type, weight, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11, $11)
ON CONFLICT (subject_id, respondent_id, period_id, question_id) DO UPDATE
SET grade = EXCLUDED.grade,
	answer_value = EXCLUDED.answer_value,
	is_correct = EXCLUDED.is_correct,
	answered = TRUE,
	question_type = EXCLUDED.question_type,
	weight = EXCLUDED.weight,
	updated_at = EXCLUDED.updated_at`

	var value interface{}
	if len(w.AnswerValue) > 0 {
		value = w.AnswerValue
	}
	if _, err := r.exec(exec).ExecContext(ctx, query,
		uuid.NewString(), w.SubjectID, w.RespondentID, w.PeriodID, w.QuestionID, w.Grade, value, w.IsCorrect, w.QuestionType, w.Weight, now,
	); err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// ListForForm returns stored answers for one respondent's form.
func (r *AnswerRepository) ListForForm(ctx context.Context, subjectID, respondentID, periodID string) ([]models.Answer, error) {
	const query = `
SELECT id, subject_id, respondent_id, period_id, question_id, grade,
	COALESCE(answer_value, 'null'::jsonb) AS answer_value, is_correct, answered, question_type, weight, created_at, updated_at
FROM answers
WHERE subject_id = $1 AND respondent_id = $2 AND period_id = $3`

	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, subjectID, respondentID, periodID); err != nil {
		return nil, fmt.Errorf("list form answers: %w", err)
	}
	return answers, nil
}

// ListScored returns answered rows for a subject joined with category and period data.
func (r *AnswerRepository) ListScored(ctx context.Context, filter models.AnalyticsFilter) ([]models.ScoredAnswer, error) {
	query := strings.Builder{}
	query.WriteString(`
SELECT
	a.respondent_id,
	a.period_id,
	p.name AS period_name,
	p.month_offset,
	q.category,
	a.question_type AS skill_type,
	a.grade,
	a.weight,
	a.answered
FROM answers a
JOIN questions q ON q.id = a.question_id
JOIN review_periods p ON p.id = a.period_id
WHERE a.subject_id = $1 AND a.answered = TRUE`)

	args := []interface{}{filter.SubjectID}
	if filter.PeriodID != nil && *filter.PeriodID != "" {
		args = append(args, *filter.PeriodID)
		fmt.Fprintf(&query, " AND a.period_id = $%d", len(args))
	}
	if filter.Type == models.AnalyticsTypeHard || filter.Type == models.AnalyticsTypeSoft {
		args = append(args, filter.Type)
		fmt.Fprintf(&query, " AND a.question_type = $%d", len(args))
	}
	query.WriteString("\nORDER BY p.month_offset ASC, q.category ASC")

	var rows []models.ScoredAnswer
	if err := r.db.SelectContext(ctx, &rows, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list scored answers: %w", err)
	}
	return rows, nil
}

// Stats counts all and answered rows for a subject.
func (r *AnswerRepository) Stats(ctx context.Context, subjectID string) (models.AnswerStats, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE answered) AS answered FROM answers WHERE subject_id = $1`
	var stats models.AnswerStats
	if err := r.db.GetContext(ctx, &stats, query, subjectID); err != nil {
		return models.AnswerStats{}, fmt.Errorf("answer stats: %w", err)
	}
	return stats, nil
}
