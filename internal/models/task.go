package models

import "time"

// TaskStatus tracks a task through its review.
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusReview    TaskStatus = "review"
	TaskStatusCompleted TaskStatus = "completed"
)

// GoalStatus tracks a goal.
type GoalStatus string

const (
	GoalStatusActive GoalStatus = "active"
	GoalStatusReview GoalStatus = "review"
	GoalStatusDone   GoalStatus = "done"
)

// ReviewGoal groups the tasks set for one employee.
type ReviewGoal struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	CreatorID   *string    `db:"creator_id" json:"creator_id,omitempty"`
	Deadline    *time.Time `db:"deadline" json:"deadline,omitempty"`
	Status      GoalStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ReviewTask is a dated piece of work whose completion is reviewed by the
// owner and their team once the end date passes.
type ReviewTask struct {
	ID          string     `db:"id" json:"id"`
	GoalID      string     `db:"goal_id" json:"goal_id"`
	GoalTitle   string     `db:"goal_title" json:"goal_title"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     time.Time  `db:"end_date" json:"end_date"`
	Status      TaskStatus `db:"status" json:"status"`
	Priority    int        `db:"priority" json:"priority"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TaskAnswer is one graded slot of a task review.
type TaskAnswer struct {
	ID           string    `db:"id" json:"id"`
	TaskID       string    `db:"task_id" json:"task_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	RespondentID string    `db:"respondent_id" json:"respondent_id"`
	QuestionID   string    `db:"question_id" json:"question_id"`
	Grade        int       `db:"grade" json:"grade"`
	Answered     bool      `db:"answered" json:"answered"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TaskAnswerSlot addresses a task answer row.
type TaskAnswerSlot struct {
	TaskID       string
	SubjectID    string
	RespondentID string
	QuestionID   string
}

// TaskReviewSummary reports what triggering one task created.
type TaskReviewSummary struct {
	TaskID               string   `json:"task_id"`
	Respondents          []string `json:"respondents"`
	NotificationsCreated int      `json:"notifications_created"`
}
