package models

import "time"

// ReviewStatus tracks the token lifecycle.
type ReviewStatus string

const (
	ReviewStatusPendingNotification ReviewStatus = "pending_notification"
	ReviewStatusPending             ReviewStatus = "pending"
	ReviewStatusCompleted           ReviewStatus = "completed"
	ReviewStatusExpired             ReviewStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewStatusCompleted || s == ReviewStatusExpired
}

// ReviewContext names what a review log is about.
type ReviewContext string

const (
	ReviewContextSkill ReviewContext = "skill"
	ReviewContextTask  ReviewContext = "task"
)

// ReviewType distinguishes self from peer skill reviews.
type ReviewType string

const (
	ReviewTypeSelf ReviewType = "self"
	ReviewTypePeer ReviewType = "peer"
)

// Metadata keys written on review logs.
const (
	MetaReviewType  = "review_type"
	MetaDueAt       = "due_at"
	MetaTrigger     = "trigger"
	MetaPeriodName  = "period_name"
	MetaSubmittedAt = "submitted_at"
	MetaSaveMode    = "save_mode"
	MetaExpiredAt   = "expired_at"
	MetaTaskID      = "task_id"
	MetaTaskTitle   = "task_title"
)

// ReviewLog is a one-time access token for a skill review of a period or a
// review of a task. Task logs carry no period.
type ReviewLog struct {
	ID           string        `db:"id" json:"id"`
	SubjectID    string        `db:"subject_id" json:"subject_id"`
	RespondentID string        `db:"respondent_id" json:"respondent_id"`
	PeriodID     string        `db:"period_id" json:"period_id,omitempty"`
	TaskID       *string       `db:"task_id" json:"task_id,omitempty"`
	Context      ReviewContext `db:"context" json:"context"`
	Token        string        `db:"token" json:"-"`
	ExpiresAt    time.Time     `db:"expires_at" json:"expires_at"`
	Status       ReviewStatus  `db:"status" json:"status"`
	Metadata     Metadata      `db:"metadata" json:"metadata"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ReviewType resolves the review type, preferring the stored metadata.
func (l ReviewLog) ReviewType() ReviewType {
	switch ReviewType(l.Metadata.String(MetaReviewType)) {
	case ReviewTypeSelf:
		return ReviewTypeSelf
	case ReviewTypePeer:
		return ReviewTypePeer
	}
	if l.SubjectID == l.RespondentID {
		return ReviewTypeSelf
	}
	return ReviewTypePeer
}

// IsExpiredAt reports whether the link can no longer be used at now.
func (l ReviewLog) IsExpiredAt(now time.Time) bool {
	return l.Status == ReviewStatusExpired || !now.Before(l.ExpiresAt)
}

// ReviewLogUpsert carries the fields written when ensuring a pending log.
type ReviewLogUpsert struct {
	SubjectID    string
	RespondentID string
	PeriodID     string
	TaskID       *string
	Context      ReviewContext
	Token        string
	ExpiresAt    time.Time
	Metadata     Metadata
}

// CycleSummary counts what a scheduler run created.
type CycleSummary struct {
	AsOf                 string `json:"as_of"`
	SelfReviewsCreated   int    `json:"self_reviews_created"`
	PeerReviewsCreated   int    `json:"peer_reviews_created"`
	NotificationsCreated int    `json:"notifications_created"`
}
