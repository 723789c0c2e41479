package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// Save modes accepted by the submit endpoint.
const (
	SaveModeFinal   = "final"
	SaveModePartial = "partial"
)

// AnswerInput is one submitted answer. Scale questions may send either grade or answer.
type AnswerInput struct {
	QuestionID string          `json:"question_id" validate:"required"`
	Grade      *int            `json:"grade,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty" swaggertype:"object"`
}

// SubmitReviewRequest is the payload of a skill review submission.
type SubmitReviewRequest struct {
	Token    string        `json:"token" validate:"required"`
	Answers  []AnswerInput `json:"answers" validate:"dive"`
	SaveMode string        `json:"save_mode" validate:"omitempty,oneof=final partial"`
}

// IsPartial reports whether the submission keeps the review open.
func (r SubmitReviewRequest) IsPartial() bool {
	return r.SaveMode == SaveModePartial
}

// SubmitReviewResponse reports the outcome of a submission.
type SubmitReviewResponse struct {
	ReviewLogID  string              `json:"review_log_id"`
	Status       models.ReviewStatus `json:"status"`
	SaveMode     string              `json:"save_mode"`
	Updated      int                 `json:"updated"`
	SubmittedAt  *time.Time          `json:"submitted_at,omitempty"`
	Notification string              `json:"notification_id,omitempty"`
}

// InitiateCycleRequest triggers a scheduler run.
type InitiateCycleRequest struct {
	AsOf  string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Async bool   `json:"async"`
}

// InitiateCycleResponse acknowledges an asynchronous run.
type InitiateCycleResponse struct {
	JobID string `json:"job_id"`
	AsOf  string `json:"as_of"`
}

// TokenStatusResponse is returned when a token is still usable.
type TokenStatusResponse struct {
	ReviewLogID string              `json:"review_log_id"`
	SubjectID   string              `json:"subject_id"`
	PeriodID    string              `json:"period_id,omitempty"`
	TaskID      *string             `json:"task_id,omitempty"`
	ReviewType  models.ReviewType   `json:"review_type"`
	Status      models.ReviewStatus `json:"status"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// ReviewForm is everything a respondent needs to fill in a skill review.
type ReviewForm struct {
	ReviewLogID string              `json:"review_log_id"`
	ReviewType  models.ReviewType   `json:"review_type"`
	Status      models.ReviewStatus `json:"status"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Subject     FormPerson          `json:"subject"`
	Respondent  FormPerson          `json:"respondent"`
	Period      FormPeriod          `json:"period"`
	Groups      []FormGroup         `json:"groups"`
	Answered    int                 `json:"answered"`
	Total       int                 `json:"total"`
}

// FormPerson identifies an employee on a form.
type FormPerson struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	Position   *string `json:"position,omitempty"`
	Department *string `json:"department,omitempty"`
}

// FormPeriod identifies the review checkpoint.
type FormPeriod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MonthOffset int    `json:"month_offset"`
}

// FormGroup holds the questions of one skill type.
type FormGroup struct {
	SkillType  models.SkillType `json:"skill_type"`
	Categories []FormCategory   `json:"categories"`
}

// FormCategory holds the questions of one category.
type FormCategory struct {
	Category  string         `json:"category"`
	Questions []FormQuestion `json:"questions"`
}

// FormQuestion is a question joined with any stored answer.
type FormQuestion struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	AnswerType   models.AnswerType `json:"answer_type"`
	Weight       int               `json:"weight"`
	DisplayOrder int               `json:"display_order"`
	ScaleMin     int               `json:"scale_min"`
	ScaleMax     int               `json:"scale_max"`
	Options      json.RawMessage   `json:"options,omitempty" swaggertype:"object"`
	Grade        *int              `json:"grade"`
	Answer       json.RawMessage   `json:"answer,omitempty" swaggertype:"object"`
	Answered     bool              `json:"answered"`
}

// NotificationListQuery filters a recipient's notifications.
type NotificationListQuery struct {
	RecipientID string `form:"recipient_id" validate:"required"`
	UnreadOnly  bool   `form:"unread_only"`
	Page        int    `form:"page" validate:"omitempty,min=1"`
	PageSize    int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}
