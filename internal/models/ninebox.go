package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SignalScale declares the native range of a raw nine-box signal.
type SignalScale string

const (
	ScaleTen     SignalScale = "ten"
	ScaleHundred SignalScale = "hundred"
	// ScaleInferred treats values <= 10 as a 0-10 scale and anything larger as 0-100.
	ScaleInferred SignalScale = "inferred"
)

// Signal is a raw score together with the scale it was recorded on.
type Signal struct {
	Value   float64     `json:"value"`
	Scale   SignalScale `json:"scale"`
	Present bool        `json:"present"`
}

// PotentialAssessment is the latest potential review of an employee.
type PotentialAssessment struct {
	EmployeeID         string    `db:"employee_id"`
	AssessmentID       string    `db:"id"`
	PotentialScore     *float64  `db:"potential_score"`
	RetentionRisk      *float64  `db:"retention_risk"`
	IsSuccessor        bool      `db:"is_successor"`
	SuccessorReadiness *string   `db:"successor_readiness"`
	CreatedAt          time.Time `db:"created_at"`
}

// Completion counts finished items for an employee.
type Completion struct {
	EmployeeID string `db:"employee_id"`
	Total      int    `db:"total"`
	Completed  int    `db:"completed"`
}

// NineBoxSignals holds every source signal collected for one employee.
type NineBoxSignals struct {
	Feedback    Signal
	Self        Signal
	Manager     Signal
	FinalReview Signal
	Potential   *PotentialAssessment
	Goals       Completion
	Tasks       Completion
}

// NineBoxScores are the normalised 0-100 inputs of an entry.
type NineBoxScores struct {
	GoalCompletionRate    float64 `json:"goal_completion_rate"`
	TaskCompletionRate    float64 `json:"task_completion_rate"`
	FeedbackAverage       float64 `json:"feedback_average"`
	ManagerAverage        float64 `json:"manager_average"`
	SelfAssessmentAverage float64 `json:"self_assessment_average"`
	FinalReviewScore      float64 `json:"final_review_score"`
	PotentialSignal       float64 `json:"potential_signal"`
	RetentionRisk         float64 `json:"retention_risk"`
}

// RecommendationPriority orders recommendations.
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

// Recommendation is a rule-based action suggested for an employee.
type Recommendation struct {
	Code        string                 `json:"code"`
	Priority    RecommendationPriority `json:"priority"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Actions     []string               `json:"actions"`
}

// NineBoxEntry places one employee on the grid.
type NineBoxEntry struct {
	EmployeeID       string           `json:"employee_id"`
	EmployeeName     string           `json:"employee_name"`
	DepartmentID     *string          `json:"department_id,omitempty"`
	Department       string           `json:"department"`
	Position         string           `json:"position"`
	PerformanceScore float64          `json:"performance_score"`
	PotentialScore   float64          `json:"potential_score"`
	Scores           NineBoxScores    `json:"scores"`
	X                int              `json:"nine_box_x"`
	Y                int              `json:"nine_box_y"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// EmployeeRecommendation is a recommendation attributed to an employee.
type EmployeeRecommendation struct {
	Recommendation
	EmployeeID       string  `json:"employee_id"`
	EmployeeName     string  `json:"employee_name"`
	Department       string  `json:"department"`
	PerformanceScore float64 `json:"performance_score"`
	PotentialScore   float64 `json:"potential_score"`
}

// NineBoxStats summarises a matrix.
type NineBoxStats struct {
	TotalEmployees     int            `json:"total_employees"`
	AveragePerformance float64        `json:"average_performance"`
	AveragePotential   float64        `json:"average_potential"`
	Distribution       map[string]int `json:"distribution"`
}

// NineBoxMatrix is a computed matrix with its recommendations.
type NineBoxMatrix struct {
	Scope           string                   `json:"scope"`
	Source          string                   `json:"source"`
	GeneratedAt     time.Time                `json:"generated_at"`
	ValidUntil      time.Time                `json:"valid_until"`
	Matrix          []NineBoxEntry           `json:"matrix"`
	Stats           NineBoxStats             `json:"stats"`
	Recommendations []EmployeeRecommendation `json:"recommendations"`
}

// Snapshot sources.
const (
	SnapshotSourceOnDemand  = "on_demand"
	SnapshotSourceScheduled = "scheduled"
)

// NineBoxSnapshot is a persisted matrix for a scope.
type NineBoxSnapshot struct {
	ID              string         `db:"id"`
	Scope           string         `db:"scope"`
	Source          string         `db:"source"`
	GeneratedBy     *string        `db:"generated_by"`
	GeneratedAt     time.Time      `db:"generated_at"`
	ValidUntil      time.Time      `db:"valid_until"`
	Payload         types.JSONText `db:"payload"`
	Stats           types.JSONText `db:"stats"`
	Recommendations types.JSONText `db:"recommendations"`
}
