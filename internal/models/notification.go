package models

import "time"

// Notification tells a respondent that a review is waiting for them.
type Notification struct {
	ID          string        `db:"id" json:"id"`
	ReviewLogID string        `db:"review_log_id" json:"review_log_id"`
	RecipientID string        `db:"recipient_id" json:"recipient_id"`
	Title       string        `db:"title" json:"title"`
	Message     string        `db:"message" json:"message"`
	Link        string        `db:"link" json:"link"`
	Context     ReviewContext `db:"context" json:"context"`
	Metadata    Metadata      `db:"metadata" json:"metadata"`
	IsRead      bool          `db:"is_read" json:"is_read"`
	ReadAt      *time.Time    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// NotificationFilter scopes notification listings.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	PageSize    int
}
