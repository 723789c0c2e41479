package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/perf-review-api/internal/models"
)

func TestAnswerRepositoryEnsurePlaceholdersCountsOnlyNewRows(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewAnswerRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (subject_id, respondent_id, period_id, question_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "emp-1", "emp-1", "p-0", "q-1", models.SkillTypeHard, 2, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (subject_id, respondent_id, period_id, question_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "emp-1", "emp-1", "p-0", "q-2", models.SkillTypeSoft, 1, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	created, err := repo.EnsurePlaceholders(context.Background(), nil, []models.PlaceholderAnswer{
		{SubjectID: "emp-1", RespondentID: "emp-1", PeriodID: "p-0", QuestionID: "q-1", QuestionType: models.SkillTypeHard, Weight: 2},
		{SubjectID: "emp-1", RespondentID: "emp-1", PeriodID: "p-0", QuestionID: "q-2", QuestionType: models.SkillTypeSoft, Weight: 1},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerRepositoryUpsertMarksAnswered(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewAnswerRepository(db)
	now := time.Now().UTC()
	correct := true

	mock.ExpectExec(regexp.QuoteMeta("answered = TRUE")).
		WithArgs(sqlmock.AnyArg(), "emp-1", "emp-2", "p-3", "q-1", 8, sqlmock.AnyArg(), &correct, models.SkillTypeHard, 2, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), nil, models.AnswerWrite{
		SubjectID: "emp-1", RespondentID: "emp-2", PeriodID: "p-3", QuestionID: "q-1",
		Grade: 8, AnswerValue: types.JSONText(`8`), IsCorrect: &correct, QuestionType: models.SkillTypeHard, Weight: 2,
	}, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerRepositoryListScoredAppliesFilters(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewAnswerRepository(db)
	period := "p-3"

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.subject_id = $1 AND a.answered = TRUE AND a.period_id = $2 AND a.question_type = $3")).
		WithArgs("emp-1", "p-3", "soft").
		WillReturnRows(sqlmock.NewRows([]string{"respondent_id", "period_id", "period_name", "month_offset", "category", "skill_type", "grade", "weight", "answered"}).
			AddRow("emp-2", "p-3", "3 months", 3, "Teamwork", "soft", 7, 1, true))

	rows, err := repo.ListScored(context.Background(), models.AnalyticsFilter{SubjectID: "emp-1", PeriodID: &period, Type: models.AnalyticsTypeSoft})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0].Grade)
	assert.Equal(t, 3, rows[0].MonthOffset)
}

func TestAnswerRepositoryListScoredAllTypes(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewAnswerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.subject_id = $1 AND a.answered = TRUE ORDER BY")).
		WithArgs("emp-1").
		WillReturnRows(sqlmock.NewRows([]string{"respondent_id"}))

	rows, err := repo.ListScored(context.Background(), models.AnalyticsFilter{SubjectID: "emp-1", Type: models.AnalyticsTypeAll})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAnswerRepositoryStats(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewAnswerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE answered)")).
		WithArgs("emp-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "answered"}).AddRow(10, 7))

	stats, err := repo.Stats(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Unanswered())
}
