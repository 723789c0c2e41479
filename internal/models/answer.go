package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Answer is one graded slot of a review form.
type Answer struct {
	ID           string         `db:"id" json:"id"`
	SubjectID    string         `db:"subject_id" json:"subject_id"`
	RespondentID string         `db:"respondent_id" json:"respondent_id"`
	PeriodID     string         `db:"period_id" json:"period_id"`
	QuestionID   string         `db:"question_id" json:"question_id"`
	Grade        int            `db:"grade" json:"grade"`
	AnswerValue  types.JSONText `db:"answer_value" json:"answer_value,omitempty"`
	IsCorrect    *bool          `db:"is_correct" json:"is_correct,omitempty"`
	Answered     bool           `db:"answered" json:"answered"`
	QuestionType SkillType      `db:"question_type" json:"question_type"`
	Weight       int            `db:"weight" json:"weight"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// PlaceholderAnswer is an unanswered slot created ahead of submission.
type PlaceholderAnswer struct {
	SubjectID    string
	RespondentID string
	PeriodID     string
	QuestionID   string
	QuestionType SkillType
	Weight       int
}

// AnswerWrite is a validated answer ready to be persisted.
type AnswerWrite struct {
	SubjectID    string
	RespondentID string
	PeriodID     string
	QuestionID   string
	Grade        int
	AnswerValue  types.JSONText
	IsCorrect    *bool
	QuestionType SkillType
	Weight       int
}

// ScoredAnswer joins an answer with the question and period data analytics needs.
type ScoredAnswer struct {
	RespondentID string    `db:"respondent_id"`
	PeriodID     string    `db:"period_id"`
	PeriodName   string    `db:"period_name"`
	MonthOffset  int       `db:"month_offset"`
	Category     string    `db:"category"`
	SkillType    SkillType `db:"skill_type"`
	Grade        int       `db:"grade"`
	Weight       int       `db:"weight"`
	Answered     bool      `db:"answered"`
}

// AnswerStats counts answered and placeholder rows for a subject.
type AnswerStats struct {
	Total    int `db:"total"`
	Answered int `db:"answered"`
}

// Unanswered returns the number of placeholder rows.
func (s AnswerStats) Unanswered() int {
	return s.Total - s.Answered
}
