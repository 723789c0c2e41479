package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/perf-review-api/internal/models"
)

const questionColumns = `
	id, category, skill_type, context, department_id, display_order, title, answer_type, weight,
	COALESCE(correct_answer, 'null'::jsonb) AS correct_answer,
	COALESCE(answer_options, 'null'::jsonb) AS answer_options,
	tolerance, scale_min, scale_max, max_score, is_active, created_at`

// QuestionRepository reads the question bank.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs the repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListActive returns every active question ordered by display order.
func (r *QuestionRepository) ListActive(ctx context.Context) ([]models.Question, error) {
	query := `SELECT` + questionColumns + `
FROM questions
WHERE is_active = TRUE
ORDER BY display_order ASC, created_at ASC`

	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query); err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}
	return questions, nil
}

// ListByContexts returns active questions for the given contexts. Global
// questions are always included; department questions only for departmentID.
func (r *QuestionRepository) ListByContexts(ctx context.Context, contexts []string, departmentID *string) ([]models.Question, error) {
	query := `SELECT` + questionColumns + `
FROM questions
WHERE is_active = TRUE
	AND context = ANY($1)
	AND (department_id IS NULL OR department_id = $2)
ORDER BY display_order ASC, created_at ASC`

	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, pq.Array(contexts), departmentID); err != nil {
		return nil, fmt.Errorf("list questions by context: %w", err)
	}
	return questions, nil
}
