package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/perf-review-api/internal/models"
)

var periodTestColumns = []string{"id", "month_offset", "name", "start_date", "end_date", "is_active", "created_at"}

func TestPeriodRepositoryEnsureZeroExisting(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE month_offset = 0")).
		WillReturnRows(sqlmock.NewRows(periodTestColumns).AddRow("p-0", 0, "Start", nil, nil, true, time.Now()))

	period, err := repo.EnsureZero(context.Background(), "Start")
	require.NoError(t, err)
	assert.Equal(t, "p-0", period.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryEnsureZeroCreates(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE month_offset = 0")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO review_periods")).
		WithArgs(sqlmock.AnyArg(), "Start", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(periodTestColumns).AddRow("p-new", 0, "Start", nil, nil, true, time.Now()))

	period, err := repo.EnsureZero(context.Background(), "Start")
	require.NoError(t, err)
	assert.Equal(t, "p-new", period.ID)
	assert.Equal(t, 0, period.MonthOffset)
}

func TestPeriodRepositoryEnsureDefaultsCountsInserted(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (month_offset, name) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), 1, "1 month", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (month_offset, name) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), 3, "3 months", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.EnsureDefaults(context.Background(), []models.ReviewPeriod{
		{MonthOffset: 1, Name: "1 month"},
		{MonthOffset: 3, Name: "3 months"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}
