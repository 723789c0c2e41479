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

var taskTestColumns = []string{"id", "goal_id", "goal_title", "owner_id", "title", "description", "start_date", "end_date", "status", "priority", "created_at", "updated_at"}

func TestTaskRepositoryCreateGoalInsertsTasks(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewTaskRepository(db)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_goals")).
		WithArgs(sqlmock.AnyArg(), "Ship billing", "", "emp-1", nil, "2024-06-30", models.GoalStatusActive, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_tasks")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Invoices", "", "2024-03-01", "2024-03-31", models.TaskStatusActive, 2, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	goal := &models.ReviewGoal{Title: "Ship billing", OwnerID: "emp-1", Deadline: &deadline}
	tasks, err := repo.CreateGoal(context.Background(), nil, goal, []models.ReviewTask{{
		Title:     "Invoices",
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Priority:  2,
	}}, now)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.NotEmpty(t, goal.ID)
	assert.Equal(t, goal.ID, tasks[0].GoalID)
	assert.Equal(t, "emp-1", tasks[0].OwnerID)
	assert.Equal(t, models.TaskStatusActive, tasks[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListDue(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewTaskRepository(db)
	day := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.status = 'active' AND t.end_date <= $1")).
		WithArgs("2024-03-31").
		WillReturnRows(sqlmock.NewRows(taskTestColumns).
			AddRow("task-1", "goal-1", "Ship billing", "emp-1", "Invoices", "", day.AddDate(0, 0, -30), day, "active", 0, day, day))

	tasks, err := repo.ListDue(context.Background(), day.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Ship billing", tasks[0].GoalTitle)
	assert.Equal(t, "emp-1", tasks[0].OwnerID)
}

func TestTaskRepositoryFindByIDMissing(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
		WithArgs("task-9").
		WillReturnError(sql.ErrNoRows)

	task, err := repo.FindByID(context.Background(), "task-9")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestTaskRepositoryEnsureAnswerPlaceholdersCountsOnlyNewRows(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewTaskRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (task_id, subject_id, respondent_id, question_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "task-1", "emp-1", "emp-2", "q-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ta-1"))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (task_id, subject_id, respondent_id, question_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "task-1", "emp-1", "emp-2", "q-2", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	created, err := repo.EnsureAnswerPlaceholders(context.Background(), nil, []models.TaskAnswerSlot{
		{TaskID: "task-1", SubjectID: "emp-1", RespondentID: "emp-2", QuestionID: "q-1"},
		{TaskID: "task-1", SubjectID: "emp-1", RespondentID: "emp-2", QuestionID: "q-2"},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryUpsertAnswerAndCountUnanswered(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewTaskRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET grade = EXCLUDED.grade, answered = TRUE")).
		WithArgs(sqlmock.AnyArg(), "task-1", "emp-1", "emp-2", "q-1", 7, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM task_answers WHERE task_id = $1 AND answered = FALSE")).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	slot := models.TaskAnswerSlot{TaskID: "task-1", SubjectID: "emp-1", RespondentID: "emp-2", QuestionID: "q-1"}
	require.NoError(t, repo.UpsertAnswer(context.Background(), nil, slot, 7, now))

	remaining, err := repo.CountUnanswered(context.Background(), nil, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}
