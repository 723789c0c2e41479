package models

import "time"

// Employee is the identity record the review engine reads from the HR directory.
type Employee struct {
	ID             string     `db:"id" json:"id"`
	FullName       string     `db:"full_name" json:"full_name"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Position       *string    `db:"position" json:"position,omitempty"`
	DepartmentID   *string    `db:"department_id" json:"department_id,omitempty"`
	DepartmentName *string    `db:"department_name" json:"department_name,omitempty"`
	HireDate       time.Time  `db:"hire_date" json:"hire_date"`
	ActivationDate time.Time  `db:"activation_date" json:"activation_date"`
	DismissalDate  *time.Time `db:"dismissal_date" json:"dismissal_date,omitempty"`
}

// IsActive reports whether the employee is employed on asOf.
func (e Employee) IsActive(asOf time.Time) bool {
	day := truncateDay(asOf)
	if truncateDay(e.ActivationDate).After(day) {
		return false
	}
	return e.DismissalDate == nil || truncateDay(*e.DismissalDate).After(day)
}

// EmployeeRecord is an externally managed employee pushed into the engine.
type EmployeeRecord struct {
	FullName       string     `json:"full_name" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	Position       *string    `json:"position,omitempty"`
	DepartmentID   *string    `json:"department_id,omitempty" validate:"omitempty,uuid"`
	HireDate       time.Time  `json:"hire_date" validate:"required"`
	ActivationDate *time.Time `json:"activation_date,omitempty"`
	DismissalDate  *time.Time `json:"dismissal_date,omitempty"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
