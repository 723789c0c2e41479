package models

import (
	"fmt"
	"time"
)

// ReviewPeriod is a checkpoint expressed in whole months since activation.
type ReviewPeriod struct {
	ID          string     `db:"id" json:"id"`
	MonthOffset int        `db:"month_offset" json:"month_offset"`
	Name        string     `db:"name" json:"name"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Label returns a display name for the period.
func (p ReviewPeriod) Label() string {
	if p.Name != "" {
		return p.Name
	}
	if p.MonthOffset == 0 {
		return "Start"
	}
	return fmt.Sprintf("%d months", p.MonthOffset)
}

// InWindow reports whether asOf falls within the optional date window.
func (p ReviewPeriod) InWindow(asOf time.Time) bool {
	day := truncateDay(asOf)
	if p.StartDate != nil && day.Before(truncateDay(*p.StartDate)) {
		return false
	}
	if p.EndDate != nil && day.After(truncateDay(*p.EndDate)) {
		return false
	}
	return true
}
