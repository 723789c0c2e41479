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
)

const periodColumns = `id, month_offset, name, start_date, end_date, is_active, created_at`

// PeriodRepository manages review checkpoints.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// ListActive returns active periods in month offset order.
func (r *PeriodRepository) ListActive(ctx context.Context) ([]models.ReviewPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM review_periods WHERE is_active = TRUE ORDER BY month_offset ASC, name ASC`
	var periods []models.ReviewPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list active periods: %w", err)
	}
	return periods, nil
}

// FindByID returns a period or nil when it does not exist.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.ReviewPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM review_periods WHERE id = $1`
	var period models.ReviewPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find period: %w", err)
	}
	return &period, nil
}

// EnsureZero returns the start period, creating it when no zero-offset period exists.
func (r *PeriodRepository) EnsureZero(ctx context.Context, name string) (*models.ReviewPeriod, error) {
	const selectQuery = `SELECT ` + periodColumns + ` FROM review_periods WHERE month_offset = 0 ORDER BY is_active DESC, created_at ASC LIMIT 1`
	var period models.ReviewPeriod
	err := r.db.GetContext(ctx, &period, selectQuery)
	if err == nil {
		return &period, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find zero period: %w", err)
	}

	const insertQuery = `
INSERT INTO review_periods (id, month_offset, name, is_active, created_at)
VALUES ($1, 0, $2, TRUE, $3)
ON CONFLICT (month_offset, name) DO UPDATE SET is_active = review_periods.is_active
RETURNING ` + periodColumns
	if err := r.db.GetContext(ctx, &period, insertQuery, uuid.NewString(), name, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create zero period: %w", err)
	}
	return &period, nil
}

// EnsureDefaults inserts the given checkpoints when absent and returns how many were created.
func (r *PeriodRepository) EnsureDefaults(ctx context.Context, periods []models.ReviewPeriod) (int, error) {
	const query = `
INSERT INTO review_periods (id, month_offset, name, is_active, created_at)
VALUES ($1, $2, $3, TRUE, $4)
ON CONFLICT (month_offset, name) DO NOTHING`

	now := time.Now().UTC()
	created := 0
	for _, p := range periods {
		res, err := r.db.ExecContext(ctx, query, uuid.NewString(), p.MonthOffset, p.Name, now)
		if err != nil {
			return created, fmt.Errorf("ensure period %d: %w", p.MonthOffset, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	return created, nil
}
