package models

import "time"

// TimelineStatus describes where a review checkpoint stands for a subject.
type TimelineStatus string

const (
	TimelineScheduled TimelineStatus = "scheduled"
	TimelineOpen      TimelineStatus = "open"
	TimelineDueToday  TimelineStatus = "due_today"
	TimelineOverdue   TimelineStatus = "overdue"
	TimelineCompleted TimelineStatus = "completed"
	TimelineExpired   TimelineStatus = "expired"
	TimelineMissed    TimelineStatus = "missed"
)

// TimelineItem is one checkpoint of a subject's review calendar.
type TimelineItem struct {
	PeriodID     string         `json:"period_id"`
	PeriodName   string         `json:"period_name"`
	MonthOffset  int            `json:"month_offset"`
	ReviewType   ReviewType     `json:"review_type"`
	DueDate      time.Time      `json:"due_date"`
	Status       TimelineStatus `json:"status"`
	Logs         int            `json:"logs"`
	Completed    int            `json:"completed"`
	LinkValidTil *time.Time     `json:"link_valid_until,omitempty"`
}

// ReviewOverview summarises a subject's review history and current standing.
type ReviewOverview struct {
	SubjectID       string           `json:"subject_id"`
	Today           time.Time        `json:"today"`
	ActivationDate  time.Time        `json:"activation_date"`
	Timeline        []TimelineItem   `json:"timeline"`
	NextReview      *TimelineItem    `json:"next_review,omitempty"`
	ActiveReview    *TimelineItem    `json:"active_review,omitempty"`
	DueCount        int              `json:"due_count"`
	CompletedCount  int              `json:"completed_count"`
	CompletionRate  float64          `json:"completion_rate"`
	LastGrowth      *float64         `json:"last_growth"`
	Analytics       *SkillAnalytics  `json:"analytics,omitempty"`
	AdaptationIndex *AdaptationIndex `json:"adaptation_index,omitempty"`
}
