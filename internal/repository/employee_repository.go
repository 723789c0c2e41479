package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

const employeeSelect = `
SELECT
	e.id,
	e.full_name,
	e.email,
	e.position,
	e.department_id,
	d.name AS department_name,
	e.hire_date,
	COALESCE(e.activation_date, e.hire_date) AS activation_date,
	e.dismissal_date
FROM employees e
LEFT JOIN departments d ON d.id = e.department_id`

// EmployeeRepository is the engine's view of the HR employee directory.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetActiveEmployees returns employees activated on or before asOf and not dismissed by then.
func (r *EmployeeRepository) GetActiveEmployees(ctx context.Context, asOf time.Time) ([]models.Employee, error) {
	query := employeeSelect + `
WHERE COALESCE(e.activation_date, e.hire_date) <= $1
	AND (e.dismissal_date IS NULL OR e.dismissal_date > $1)
ORDER BY e.full_name ASC, e.id ASC`

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, asOf.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return employees, nil
}

// FindByID returns the employee or nil when unknown.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := employeeSelect + ` WHERE e.id = $1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &employee, nil
}

// ListTeamPeers returns the explicit teammates recorded for employeeID.
func (r *EmployeeRepository) ListTeamPeers(ctx context.Context, employeeID string) ([]models.Employee, error) {
	query := employeeSelect + `
JOIN team_relations t ON t.peer_id = e.id
WHERE t.employee_id = $1
ORDER BY e.full_name ASC, e.id ASC`

	var peers []models.Employee
	if err := r.db.SelectContext(ctx, &peers, query, employeeID); err != nil {
		return nil, fmt.Errorf("list team peers: %w", err)
	}
	return peers, nil
}

// GetEmployeeDepartment returns the department of an employee, nil when unassigned.
func (r *EmployeeRepository) GetEmployeeDepartment(ctx context.Context, employeeID string) (*string, error) {
	const query = `SELECT department_id FROM employees WHERE id = $1`
	var departmentID sql.NullString
	if err := r.db.GetContext(ctx, &departmentID, query, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, fmt.Errorf("get employee department: %w", err)
	}
	if !departmentID.Valid {
		return nil, nil
	}
	return &departmentID.String, nil
}

// SyncIdentity upserts an externally managed employee by email and returns its id.
func (r *EmployeeRepository) SyncIdentity(ctx context.Context, record models.EmployeeRecord) (string, error) {
	const query = `
INSERT INTO employees (id, full_name, email, position, department_id, hire_date, activation_date, dismissal_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (email) DO UPDATE
SET full_name = EXCLUDED.full_name,
	position = EXCLUDED.position,
	department_id = EXCLUDED.department_id,
	hire_date = EXCLUDED.hire_date,
	activation_date = EXCLUDED.activation_date,
	dismissal_date = EXCLUDED.dismissal_date,
	updated_at = EXCLUDED.updated_at
RETURNING id`

	var id string
	if err := r.db.GetContext(ctx, &id, query,
		uuid.NewString(), record.FullName, record.Email, record.Position, record.DepartmentID,
		record.HireDate, record.ActivationDate, record.DismissalDate, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("sync employee identity: %w", err)
	}
	return id, nil
}
