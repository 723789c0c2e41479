package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SkillType splits the skill question bank.
type SkillType string

const (
	SkillTypeHard SkillType = "hard"
	SkillTypeSoft SkillType = "soft"
)

// AnswerType selects how an answer is validated and scored.
type AnswerType string

const (
	AnswerTypeScale        AnswerType = "scale"
	AnswerTypeNumeric      AnswerType = "numeric"
	AnswerTypeSingleChoice AnswerType = "single_choice"
	AnswerTypeBoolean      AnswerType = "boolean"
)

// Question contexts used by the skill and task reviews. Any other context
// names a free-form assessment bank.
const (
	QuestionContextSelf = "self"
	QuestionContextPeer = "peer"
	QuestionContextBoth = "both"
	QuestionContextTask = "task"
)

// Question is an entry of the question bank.
type Question struct {
	ID            string         `db:"id" json:"id"`
	Category      string         `db:"category" json:"category"`
	SkillType     SkillType      `db:"skill_type" json:"skill_type"`
	Context       string         `db:"context" json:"context"`
	DepartmentID  *string        `db:"department_id" json:"department_id,omitempty"`
	DisplayOrder  int            `db:"display_order" json:"display_order"`
	Title         string         `db:"title" json:"title"`
	AnswerType    AnswerType     `db:"answer_type" json:"answer_type"`
	Weight        int            `db:"weight" json:"weight"`
	CorrectAnswer types.JSONText `db:"correct_answer" json:"correct_answer,omitempty"`
	AnswerOptions types.JSONText `db:"answer_options" json:"answer_options,omitempty"`
	Tolerance     float64        `db:"tolerance" json:"tolerance"`
	ScaleMin      int            `db:"scale_min" json:"scale_min"`
	ScaleMax      int            `db:"scale_max" json:"scale_max"`
	MaxScore      float64        `db:"max_score" json:"max_score"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// HasCorrectAnswer reports whether a non-null correct answer is configured.
func (q Question) HasCorrectAnswer() bool {
	s := string(q.CorrectAnswer)
	return s != "" && s != "null"
}

// EffectiveWeight guards against non-positive weights in the bank.
func (q Question) EffectiveWeight() int {
	if q.Weight <= 0 {
		return 1
	}
	return q.Weight
}
