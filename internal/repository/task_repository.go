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

const taskSelect = `
SELECT
	t.id,
	t.goal_id,
	g.title AS goal_title,
	g.owner_id,
	t.title,
	t.description,
	t.start_date,
	t.end_date,
	t.status,
	t.priority,
	t.created_at,
	t.updated_at
FROM review_tasks t
JOIN review_goals g ON g.id = t.goal_id`

// TaskRepository stores goals, their tasks and the answers of task reviews.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateGoal inserts a goal with its tasks, assigning ids and timestamps.
func (r *TaskRepository) CreateGoal(ctx context.Context, exec sqlx.ExtContext, goal *models.ReviewGoal, tasks []models.ReviewTask, now time.Time) ([]models.ReviewTask, error) {
	const goalQuery = `
INSERT INTO review_goals (id, title, description, owner_id, creator_id, deadline, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	const taskQuery = `
INSERT INTO review_tasks (id, goal_id, title, description, start_date, end_date, status, priority, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	target := r.exec(exec)
	goal.ID = uuid.NewString()
	goal.Status = models.GoalStatusActive
	goal.CreatedAt, goal.UpdatedAt = now, now
	var deadline interface{}
	if goal.Deadline != nil {
		deadline = goal.Deadline.Format("2006-01-02")
	}
	if _, err := target.ExecContext(ctx, goalQuery,
		goal.ID, goal.Title, goal.Description, goal.OwnerID, goal.CreatorID, deadline, goal.Status, now,
	); err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	created := make([]models.ReviewTask, 0, len(tasks))
	for _, task := range tasks {
		task.ID = uuid.NewString()
		task.GoalID = goal.ID
		task.GoalTitle = goal.Title
		task.OwnerID = goal.OwnerID
		task.Status = models.TaskStatusActive
		task.CreatedAt, task.UpdatedAt = now, now
		if _, err := target.ExecContext(ctx, taskQuery,
			task.ID, task.GoalID, task.Title, task.Description,
			task.StartDate.Format("2006-01-02"), task.EndDate.Format("2006-01-02"), task.Status, task.Priority, now,
		); err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}
		created = append(created, task)
	}
	return created, nil
}

// ListDue returns active tasks whose end date is on or before asOf.
func (r *TaskRepository) ListDue(ctx context.Context, asOf time.Time) ([]models.ReviewTask, error) {
	query := taskSelect + `
WHERE t.status = 'active' AND t.end_date <= $1
ORDER BY t.end_date ASC, t.priority DESC, t.title ASC`

	var tasks []models.ReviewTask
	if err := r.db.SelectContext(ctx, &tasks, query, asOf.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return tasks, nil
}

// FindByID returns the task or nil when unknown.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.ReviewTask, error) {
	query := taskSelect + ` WHERE t.id = $1`
	var task models.ReviewTask
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// UpdateStatus moves a task to status.
func (r *TaskRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TaskStatus, now time.Time) error {
	const query = `UPDATE review_tasks SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, now); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// EnsureAnswerPlaceholders inserts missing unanswered task slots and returns how many were created.
func (r *TaskRepository) EnsureAnswerPlaceholders(ctx context.Context, exec sqlx.ExtContext, slots []models.TaskAnswerSlot, now time.Time) (int, error) {
	const query = `
INSERT INTO task_answers (id, task_id, subject_id, respondent_id, question_id, grade, answered, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, FALSE, $6, $6)
ON CONFLICT (task_id, subject_id, respondent_id, question_id) DO NOTHING
RETURNING id`

	target := r.exec(exec)
	created := 0
	for _, slot := range slots {
		var id string
		err := target.QueryRowxContext(ctx, query,
			uuid.NewString(), slot.TaskID, slot.SubjectID, slot.RespondentID, slot.QuestionID, now,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("insert task placeholder: %w", err)
		}
		created++
	}
	return created, nil
}

// ListAnswers returns one respondent's answers for a task review.
func (r *TaskRepository) ListAnswers(ctx context.Context, taskID, subjectID, respondentID string) ([]models.TaskAnswer, error) {
	const query = `
SELECT id, task_id, subject_id, respondent_id, question_id, grade, answered, created_at, updated_at
FROM task_answers
WHERE task_id = $1 AND subject_id = $2 AND respondent_id = $3`

	var answers []models.TaskAnswer
	if err := r.db.SelectContext(ctx, &answers, query, taskID, subjectID, respondentID); err != nil {
		return nil, fmt.Errorf("list task answers: %w", err)
	}
	return answers, nil
}

// UpsertAnswer stores a grade for a task slot and marks it answered.
func (r *TaskRepository) UpsertAnswer(ctx context.Context, exec sqlx.ExtContext, slot models.TaskAnswerSlot, grade int, now time.Time) error {
	const query = `
INSERT INTO task_answers (id, task_id, subject_id, respondent_id, question_id, grade, answered, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)
ON CONFLICT (task_id, subject_id, respondent_id, question_id) DO UPDATE
SET grade = EXCLUDED.grade, answered = TRUE, updated_at = EXCLUDED.updated_at`

	if _, err := r.exec(exec).ExecContext(ctx, query,
		uuid.NewString(), slot.TaskID, slot.SubjectID, slot.RespondentID, slot.QuestionID, grade, now,
	); err != nil {
		return fmt.Errorf("upsert task answer: %w", err)
	}
	return nil
}

// CountUnanswered counts placeholder slots still open for a task.
func (r *TaskRepository) CountUnanswered(ctx context.Context, exec sqlx.ExtContext, taskID string) (int, error) {
	const query = `SELECT COUNT(*) FROM task_answers WHERE task_id = $1 AND answered = FALSE`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, taskID); err != nil {
		return 0, fmt.Errorf("count unanswered task answers: %w", err)
	}
	return count, nil
}
