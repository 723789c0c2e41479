package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/models"
	"github.com/noah-isme/perf-review-api/pkg/jobs"
)

// Job types handled by the review queue.
const (
	JobTypeReviewCycle  = "review_cycle"
	JobTypeNineBoxPurge = "nine_box_purge"
	JobTypeTaskReviews  = "task_reviews"
)

type cycleExecutor interface {
	RunCycle(ctx context.Context, asOf, now time.Time) (*models.CycleSummary, error)
}

type snapshotPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type taskReviewTrigger interface {
	TriggerReviews(ctx context.Context, taskID *string, asOf, now time.Time) ([]models.TaskReviewSummary, error)
}

// CycleJob is the payload of a review cycle job.
type CycleJob struct {
	AsOf time.Time
}

// CycleRunner schedules review cycles and snapshot housekeeping on the job queue.
// It is the only place that reads the wall clock for scheduled work.
type CycleRunner struct {
	queue    *jobs.Queue
	cycle    cycleExecutor
	purger   snapshotPurger
	tasks    taskReviewTrigger
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCycleRunner registers job handlers on queue.
func NewCycleRunner(queue *jobs.Queue, cycle cycleExecutor, purger snapshotPurger, interval time.Duration, logger *zap.Logger) *CycleRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	r := &CycleRunner{
		queue:    queue,
		cycle:    cycle,
		purger:   purger,
		interval: interval,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	queue.Register(JobTypeReviewCycle, r.handleCycle)
	if purger != nil {
		queue.Register(JobTypeNineBoxPurge, r.handlePurge)
	}
	return r
}

// WithTaskReviews makes every tick also open reviews of tasks that ended.
func (r *CycleRunner) WithTaskReviews(tasks taskReviewTrigger) *CycleRunner {
	r.tasks = tasks
	r.queue.Register(JobTypeTaskReviews, r.handleTasks)
	return r
}

// EnqueueCycle queues a cycle for asOf and returns the job id.
func (r *CycleRunner) EnqueueCycle(asOf time.Time) (string, error) {
	id := uuid.NewString()
	if err := r.queue.Enqueue(jobs.Job{ID: id, Type: JobTypeReviewCycle, Payload: CycleJob{AsOf: DateOnly(asOf)}}); err != nil {
		return "", err
	}
	return id, nil
}

// Start runs a cycle immediately and then once per interval until ctx ends or Stop is called.
func (r *CycleRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		r.tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick()
			}
		}
	}()
	r.logger.Info("review cycle scheduler started", zap.Duration("interval", r.interval))
}

// Stop halts the ticker and waits for it to exit.
func (r *CycleRunner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *CycleRunner) tick() {
	now := r.clock()
	if _, err := r.EnqueueCycle(now); err != nil {
		r.logger.Error("failed to enqueue review cycle", zap.Error(err))
	}
	if r.tasks != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: JobTypeTaskReviews, Payload: CycleJob{AsOf: DateOnly(now)}}
		if err := r.queue.Enqueue(job); err != nil {
			r.logger.Error("failed to enqueue task reviews", zap.Error(err))
		}
	}
	if r.purger == nil {
		return
	}
	if err := r.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeNineBoxPurge}); err != nil {
		r.logger.Error("failed to enqueue snapshot purge", zap.Error(err))
	}
}

func (r *CycleRunner) handleCycle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(CycleJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	summary, err := r.cycle.RunCycle(ctx, payload.AsOf, r.clock())
	if err != nil {
		return err
	}
	r.logger.Info("review cycle job finished",
		zap.String("job_id", job.ID),
		zap.String("as_of", summary.AsOf),
		zap.Int("self_reviews_created", summary.SelfReviewsCreated),
		zap.Int("peer_reviews_created", summary.PeerReviewsCreated),
	)
	return nil
}

func (r *CycleRunner) handleTasks(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(CycleJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	summaries, err := r.tasks.TriggerReviews(ctx, nil, payload.AsOf, r.clock())
	if err != nil {
		return err
	}
	r.logger.Info("task review job finished", zap.String("job_id", job.ID), zap.Int("tasks", len(summaries)))
	return nil
}

func (r *CycleRunner) handlePurge(ctx context.Context, _ jobs.Job) error {
	_, err := r.purger.PurgeExpired(ctx, r.clock())
	return err
}
