package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// NineBoxRepository reads talent signals and stores matrix snapshots.
type NineBoxRepository struct {
	db *sqlx.DB
}

// NewNineBoxRepository constructs the repository.
func NewNineBoxRepository(db *sqlx.DB) *NineBoxRepository {
	return &NineBoxRepository{db: db}
}

type scoreRow struct {
	EmployeeID string          `db:"employee_id"`
	Value      sql.NullFloat64 `db:"value"`
}

// FeedbackAverages returns the mean 360 feedback score per employee.
func (r *NineBoxRepository) FeedbackAverages(ctx context.Context, employeeIDs []string) (map[string]float64, error) {
	return r.scores(ctx, "feedback averages", `
SELECT employee_id, AVG(calculated_score) AS value
FROM feedback_360
WHERE employee_id = ANY($1)
GROUP BY employee_id`, employeeIDs)
}

// SelfAssessmentAverages returns the mean self-assessment score per employee.
func (r *NineBoxRepository) SelfAssessmentAverages(ctx context.Context, employeeIDs []string) (map[string]float64, error) {
	return r.scores(ctx, "self assessment averages", `
SELECT employee_id, AVG(calculated_score) AS value
FROM self_assessments
WHERE employee_id = ANY($1)
GROUP BY employee_id`, employeeIDs)
}

// ManagerReviewAverages returns the mean manager review score per employee.
func (r *NineBoxRepository) ManagerReviewAverages(ctx context.Context, employeeIDs []string) (map[string]float64, error) {
	return r.scores(ctx, "manager review averages", `
SELECT employee_id, AVG(calculated_score) AS value
FROM manager_reviews
WHERE employee_id = ANY($1)
GROUP BY employee_id`, employeeIDs)
}

// FinalReviewTotals returns the highest final review total per employee.
func (r *NineBoxRepository) FinalReviewTotals(ctx context.Context, employeeIDs []string) (map[string]float64, error) {
	return r.scores(ctx, "final review totals", `
SELECT employee_id, MAX(total_score) AS value
FROM final_reviews
WHERE employee_id = ANY($1)
GROUP BY employee_id`, employeeIDs)
}

func (r *NineBoxRepository) scores(ctx context.Context, label, query string, employeeIDs []string) (map[string]float64, error) {
	result := make(map[string]float64)
	if len(employeeIDs) == 0 {
		return result, nil
	}
	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("load %s: %w", label, err)
	}
	for _, row := range rows {
		if row.Value.Valid {
			result[row.EmployeeID] = row.Value.Float64
		}
	}
	return result, nil
}

// LatestPotential returns the most recent potential assessment per employee.
func (r *NineBoxRepository) LatestPotential(ctx context.Context, employeeIDs []string) (map[string]models.PotentialAssessment, error) {
	result := make(map[string]models.PotentialAssessment)
	if len(employeeIDs) == 0 {
		return result, nil
	}
	const query = `
SELECT DISTINCT ON (employee_id)
	employee_id, id, potential_score, retention_risk, is_successor, successor_readiness, created_at
FROM potential_assessments
WHERE employee_id = ANY($1)
ORDER BY employee_id, created_at DESC`

	var rows []models.PotentialAssessment
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("load potential assessments: %w", err)
	}
	for _, row := range rows {
		result[row.EmployeeID] = row
	}
	return result, nil
}

// GoalCompletion counts total and completed goals each employee participates in.
func (r *NineBoxRepository) GoalCompletion(ctx context.Context, employeeIDs []string) (map[string]models.Completion, error) {
	return r.completion(ctx, "goal completion", `
SELECT gp.employee_id,
	COUNT(DISTINCT g.id) AS total,
	COUNT(DISTINCT g.id) FILTER (WHERE g.is_completed) AS completed
FROM goals g
JOIN goal_participants gp ON gp.goal_id = g.id
WHERE gp.employee_id = ANY($1)
GROUP BY gp.employee_id`, employeeIDs)
}

// TaskCompletion counts tasks under the goals each employee participates in.
func (r *NineBoxRepository) TaskCompletion(ctx context.Context, employeeIDs []string) (map[string]models.Completion, error) {
	return r.completion(ctx, "task completion", `
SELECT gp.employee_id,
	COUNT(DISTINCT t.id) AS total,
	COUNT(DISTINCT t.id) FILTER (WHERE t.is_completed) AS completed
FROM tasks t
JOIN goal_participants gp ON gp.goal_id = t.goal_id
WHERE gp.employee_id = ANY($1)
GROUP BY gp.employee_id`, employeeIDs)
}

func (r *NineBoxRepository) completion(ctx context.Context, label, query string, employeeIDs []string) (map[string]models.Completion, error) {
	result := make(map[string]models.Completion)
	if len(employeeIDs) == 0 {
		return result, nil
	}
	var rows []models.Completion
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("load %s: %w", label, err)
	}
	for _, row := range rows {
		result[row.EmployeeID] = row
	}
	return result, nil
}

// FindFreshSnapshot returns the newest snapshot for scope that is still valid
// at now and was generated within the freshness window.
func (r *NineBoxRepository) FindFreshSnapshot(ctx context.Context, scope string, now time.Time, freshness time.Duration) (*models.NineBoxSnapshot, error) {
	const query = `
SELECT id, scope, source, generated_by, generated_at, valid_until, payload, stats, recommendations
FROM nine_box_snapshots
WHERE scope = $1 AND valid_until >= $2 AND generated_at >= $3
ORDER BY generated_at DESC
LIMIT 1`

	var snapshot models.NineBoxSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, scope, now, now.Add(-freshness)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find nine-box snapshot: %w", err)
	}
	return &snapshot, nil
}

// InsertSnapshot persists a computed matrix.
func (r *NineBoxRepository) InsertSnapshot(ctx context.Context, snapshot *models.NineBoxSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	const query = `
INSERT INTO nine_box_snapshots (id, scope, source, generated_by, generated_at, valid_until, payload, stats, recommendations)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.Scope, snapshot.Source, snapshot.GeneratedBy, snapshot.GeneratedAt, snapshot.ValidUntil,
		snapshot.Payload, snapshot.Stats, snapshot.Recommendations,
	); err != nil {
		return fmt.Errorf("insert nine-box snapshot: %w", err)
	}
	return nil
}

// PurgeSnapshots deletes snapshots that expired before the cutoff.
func (r *NineBoxRepository) PurgeSnapshots(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM nine_box_snapshots WHERE valid_until < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge nine-box snapshots: %w", err)
	}
	return res.RowsAffected()
}
