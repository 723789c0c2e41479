package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/perf-review-api/internal/models"
	"github.com/noah-isme/perf-review-api/pkg/jobs"
)

type chanExecutor struct {
	runs     chan time.Time
	failures int32
}

func (c *chanExecutor) RunCycle(_ context.Context, asOf, _ time.Time) (*models.CycleSummary, error) {
	if atomic.AddInt32(&c.failures, -1) >= 0 {
		return nil, errors.New("database unavailable")
	}
	c.runs <- asOf
	return &models.CycleSummary{AsOf: asOf.Format("2006-01-02")}, nil
}

type chanPurger struct {
	purged chan time.Time
}

func (c *chanPurger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	c.purged <- now
	return 0, nil
}

func startQueue(t *testing.T) *jobs.Queue {
	t.Helper()
	q := jobs.NewQueue("review-test", jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	t.Cleanup(q.Stop)
	return q
}

func TestCycleRunnerEnqueueRunsCycleForDay(t *testing.T) {
	q := startQueue(t)
	exec := &chanExecutor{runs: make(chan time.Time, 1)}
	runner := NewCycleRunner(q, exec, nil, time.Hour, nil)
	q.Start(context.Background())

	id, err := runner.EnqueueCycle(time.Date(2024, 5, 6, 17, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case asOf := <-exec.runs:
		assert.Equal(t, mustDay("2024-05-06"), asOf)
	case <-time.After(time.Second):
		t.Fatal("cycle not executed")
	}
}

func TestCycleRunnerRetriesFailedCycle(t *testing.T) {
	q := startQueue(t)
	exec := &chanExecutor{runs: make(chan time.Time, 1), failures: 1}
	runner := NewCycleRunner(q, exec, nil, time.Hour, nil)
	q.Start(context.Background())

	_, err := runner.EnqueueCycle(mustDay("2024-05-06"))
	require.NoError(t, err)

	select {
	case asOf := <-exec.runs:
		assert.Equal(t, mustDay("2024-05-06"), asOf)
	case <-time.After(2 * time.Second):
		t.Fatal("cycle was not retried")
	}
}

func TestCycleRunnerStartTicksImmediately(t *testing.T) {
	q := startQueue(t)
	exec := &chanExecutor{runs: make(chan time.Time, 4)}
	purger := &chanPurger{purged: make(chan time.Time, 4)}
	runner := NewCycleRunner(q, exec, purger, time.Hour, nil)
	fixed := time.Date(2024, 7, 1, 3, 0, 0, 0, time.UTC)
	runner.clock = func() time.Time { return fixed }
	q.Start(context.Background())

	runner.Start(context.Background())
	defer runner.Stop()

	select {
	case asOf := <-exec.runs:
		assert.Equal(t, mustDay("2024-07-01"), asOf)
	case <-time.After(time.Second):
		t.Fatal("initial cycle not executed")
	}
	select {
	case now := <-purger.purged:
		assert.Equal(t, fixed, now)
	case <-time.After(time.Second):
		t.Fatal("snapshot purge not executed")
	}
}

func TestCycleRunnerStopIsIdempotent(t *testing.T) {
	q := startQueue(t)
	runner := NewCycleRunner(q, &chanExecutor{runs: make(chan time.Time, 4)}, nil, time.Hour, nil)
	q.Start(context.Background())

	runner.Start(context.Background())
	runner.Stop()
	runner.Stop()
}

type chanTasks struct {
	days chan time.Time
}

func (c *chanTasks) TriggerReviews(_ context.Context, taskID *string, asOf, _ time.Time) ([]models.TaskReviewSummary, error) {
	if taskID != nil {
		return nil, errors.New("scheduled runs review every due task")
	}
	c.days <- asOf
	return nil, nil
}

func TestCycleRunnerTickTriggersDueTaskReviews(t *testing.T) {
	q := startQueue(t)
	tasks := &chanTasks{days: make(chan time.Time, 4)}
	runner := NewCycleRunner(q, &chanExecutor{runs: make(chan time.Time, 4)}, nil, time.Hour, nil).WithTaskReviews(tasks)
	runner.clock = func() time.Time { return time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC) }
	q.Start(context.Background())

	runner.Start(context.Background())
	defer runner.Stop()

	select {
	case asOf := <-tasks.days:
		assert.Equal(t, mustDay("2024-03-31"), asOf)
	case <-time.After(time.Second):
		t.Fatal("task reviews not triggered")
	}
}
