package dto

import (
	"time"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// CreateGoalRequest sets a goal with its tasks for one employee.
type CreateGoalRequest struct {
	OwnerID     string            `json:"owner_id" validate:"required,uuid"`
	CreatorID   *string           `json:"creator_id,omitempty" validate:"omitempty,uuid"`
	Title       string            `json:"title" validate:"required,max=255"`
	Description string            `json:"description"`
	Deadline    string            `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Tasks       []CreateTaskInput `json:"tasks" validate:"required,min=1,dive"`
}

// CreateTaskInput is one task of a new goal.
type CreateTaskInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Priority    int    `json:"priority" validate:"min=0"`
}

// CreateGoalResponse lists the tasks created with a goal.
type CreateGoalResponse struct {
	GoalID string        `json:"goal_id"`
	Tasks  []CreatedTask `json:"tasks"`
}

// CreatedTask reports a new task and the day its review opens.
type CreatedTask struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	ReviewStart string `json:"review_start"`
}

// InitiateTaskReviewRequest opens task reviews. Without task_id every active
// task that ended on or before as_of is reviewed.
type InitiateTaskReviewRequest struct {
	TaskID *string `json:"task_id,omitempty" validate:"omitempty,uuid"`
	AsOf   string  `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

// TaskReviewForm is everything a respondent needs to rate a task.
type TaskReviewForm struct {
	ReviewLogID string              `json:"review_log_id"`
	ReviewType  models.ReviewType   `json:"review_type"`
	Status      models.ReviewStatus `json:"status"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Task        FormTask            `json:"task"`
	Subject     FormPerson          `json:"subject"`
	Respondent  FormPerson          `json:"respondent"`
	Categories  []FormCategory      `json:"categories"`
	Answered    int                 `json:"answered"`
	Total       int                 `json:"total"`
}

// FormTask identifies the task under review.
type FormTask struct {
	ID          string            `json:"id"`
	GoalID      string            `json:"goal_id"`
	GoalTitle   string            `json:"goal_title"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	StartDate   string            `json:"start_date"`
	EndDate     string            `json:"end_date"`
	Status      models.TaskStatus `json:"status"`
}

// SubmitTaskReviewRequest carries the grades of a task review.
type SubmitTaskReviewRequest struct {
	Token   string        `json:"token" validate:"required"`
	Answers []AnswerInput `json:"answers" validate:"dive"`
}

// SubmitTaskReviewResponse reports the outcome of a task review submission.
type SubmitTaskReviewResponse struct {
	ReviewLogID   string    `json:"review_log_id"`
	TaskID        string    `json:"task_id"`
	RespondentID  string    `json:"respondent_id"`
	Updated       int       `json:"updated"`
	SubmittedAt   time.Time `json:"submitted_at"`
	TaskCompleted bool      `json:"task_completed"`
}
