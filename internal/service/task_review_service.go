package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

const taskTrigger = "task"

type taskStore interface {
	CreateGoal(ctx context.Context, exec sqlx.ExtContext, goal *models.ReviewGoal, tasks []models.ReviewTask, now time.Time) ([]models.ReviewTask, error)
	ListDue(ctx context.Context, asOf time.Time) ([]models.ReviewTask, error)
	FindByID(ctx context.Context, id string) (*models.ReviewTask, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TaskStatus, now time.Time) error
	EnsureAnswerPlaceholders(ctx context.Context, exec sqlx.ExtContext, slots []models.TaskAnswerSlot, now time.Time) (int, error)
	ListAnswers(ctx context.Context, taskID, subjectID, respondentID string) ([]models.TaskAnswer, error)
	UpsertAnswer(ctx context.Context, exec sqlx.ExtContext, slot models.TaskAnswerSlot, grade int, now time.Time) error
	CountUnanswered(ctx context.Context, exec sqlx.ExtContext, taskID string) (int, error)
}

type taskEmployeeReader interface {
	GetActiveEmployees(ctx context.Context, asOf time.Time) ([]models.Employee, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	ListTeamPeers(ctx context.Context, employeeID string) ([]models.Employee, error)
}

type taskLogStore interface {
	tokenLogStore
	UpsertOpen(ctx context.Context, exec sqlx.ExtContext, in models.ReviewLogUpsert, now time.Time) (*models.ReviewLog, bool, error)
	LockByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*models.ReviewLog, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ReviewStatus, meta models.Metadata, now time.Time) error
}

type taskNotificationStore interface {
	UpsertForLog(ctx context.Context, exec sqlx.ExtContext, n *models.Notification, now time.Time) (string, bool, error)
	SetLink(ctx context.Context, exec sqlx.ExtContext, id, link string) error
	MarkReadByLog(ctx context.Context, exec sqlx.ExtContext, reviewLogID string, now time.Time) error
}

// TaskReviewServiceConfig tunes task review links.
type TaskReviewServiceConfig struct {
	TokenTTL     time.Duration
	TaskLinkPath string
}

// TaskReviewService runs reviews of finished tasks: the owner rates their own
// work and their team, or everyone active when no team is recorded, rates it too.
type TaskReviewService struct {
	tx            txRunner
	tasks         taskStore
	employees     taskEmployeeReader
	questions     reviewQuestionReader
	logs          taskLogStore
	notifications taskNotificationStore
	tokens        tokenGuard
	validator     *validator.Validate
	metrics       *MetricsService
	logger        *zap.Logger
	cfg           TaskReviewServiceConfig
	newToken      func() string
}

// NewTaskReviewService constructs the task review service.
func NewTaskReviewService(
	tx txRunner,
	tasks taskStore,
	employees taskEmployeeReader,
	questions reviewQuestionReader,
	logs taskLogStore,
	notifications taskNotificationStore,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg TaskReviewServiceConfig,
) *TaskReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.TaskLinkPath == "" {
		cfg.TaskLinkPath = "/reviews/tasks"
	}
	return &TaskReviewService{
		tx:            tx,
		tasks:         tasks,
		employees:     employees,
		questions:     questions,
		logs:          logs,
		notifications: notifications,
		tokens:        tokenGuard{logs: logs, metrics: metrics, logger: logger},
		validator:     validate,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		newToken:      uuid.NewString,
	}
}

// CreateGoal stores a goal and its tasks for the owner.
func (s *TaskReviewService) CreateGoal(ctx context.Context, req dto.CreateGoalRequest, now time.Time) (*dto.CreateGoalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid goal payload")
	}

	goal := &models.ReviewGoal{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		OwnerID:     req.OwnerID,
		CreatorID:   req.CreatorID,
	}
	if req.Deadline != "" {
		deadline, _ := time.Parse("2006-01-02", req.Deadline)
		goal.Deadline = &deadline
	}
	tasks := make([]models.ReviewTask, 0, len(req.Tasks))
	for i, in := range req.Tasks {
		start, _ := time.Parse("2006-01-02", in.StartDate)
		end, _ := time.Parse("2006-01-02", in.EndDate)
		if end.Before(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("task %d ends before it starts", i+1))
		}
		tasks = append(tasks, models.ReviewTask{
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			StartDate:   start,
			EndDate:     end,
			Priority:    in.Priority,
		})
	}

	if _, err := s.employee(ctx, req.OwnerID); err != nil {
		return nil, err
	}
	if req.CreatorID != nil {
		if _, err := s.employee(ctx, *req.CreatorID); err != nil {
			return nil, err
		}
	}

	var created []models.ReviewTask
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		created, err = s.tasks.CreateGoal(ctx, exec, goal, tasks, now)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create goal")
	}

	resp := &dto.CreateGoalResponse{GoalID: goal.ID, Tasks: make([]dto.CreatedTask, 0, len(created))}
	for _, t := range created {
		resp.Tasks = append(resp.Tasks, dto.CreatedTask{TaskID: t.ID, Title: t.Title, ReviewStart: t.EndDate.Format("2006-01-02")})
	}
	s.logger.Info("goal created", zap.String("goal_id", goal.ID), zap.String("owner_id", goal.OwnerID), zap.Int("tasks", len(created)))
	return resp, nil
}

// TriggerReviews opens task reviews. With taskID only that task is reviewed;
// otherwise every active task that ended on or before asOf. Re-triggering a
// task creates nothing new.
func (s *TaskReviewService) TriggerReviews(ctx context.Context, taskID *string, asOf, now time.Time) ([]models.TaskReviewSummary, error) {
	asOf = DateOnly(asOf)

	var tasks []models.ReviewTask
	if taskID != nil {
		if _, err := uuid.Parse(*taskID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid task id")
		}
		task, err := s.tasks.FindByID(ctx, *taskID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
		}
		if task == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		if task.Status == models.TaskStatusCompleted {
			return nil, appErrors.Clone(appErrors.ErrValidation, "task review already completed")
		}
		tasks = []models.ReviewTask{*task}
	} else {
		due, err := s.tasks.ListDue(ctx, asOf)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load due tasks")
		}
		tasks = due
	}

	summaries := make([]models.TaskReviewSummary, 0, len(tasks))
	if len(tasks) == 0 {
		return summaries, nil
	}
	active, err := s.employees.GetActiveEmployees(ctx, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary, err := s.triggerTask(ctx, task, active, now)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			summaries = append(summaries, *summary)
		}
	}
	return summaries, nil
}

func (s *TaskReviewService) triggerTask(ctx context.Context, task models.ReviewTask, active []models.Employee, now time.Time) (*models.TaskReviewSummary, error) {
	owner, err := s.employee(ctx, task.OwnerID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionsFor(ctx, owner.DepartmentID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		s.logger.Info("task review skipped: no active task questions", zap.String("task_id", task.ID))
		return nil, nil
	}
	peers, err := s.employees.ListTeamPeers(ctx, owner.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}

	summary := &models.TaskReviewSummary{TaskID: task.ID}
	created := 0
	for _, respondent := range taskRespondents(*owner, peers, active) {
		outcome, err := s.ensureTaskSlot(ctx, task, *owner, respondent, questions, now)
		if err != nil {
			return nil, err
		}
		summary.Respondents = append(summary.Respondents, respondent.ID)
		if outcome.created {
			created++
		}
		if outcome.notified {
			summary.NotificationsCreated++
		}
	}

	if task.Status == models.TaskStatusActive {
		if err := s.tasks.UpdateStatus(ctx, nil, task.ID, models.TaskStatusReview, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
		}
	}
	s.metrics.RecordTaskReviews(created)
	s.logger.Info("task review started",
		zap.String("task_id", task.ID),
		zap.Int("respondents", len(summary.Respondents)),
		zap.Int("notifications_created", summary.NotificationsCreated),
	)
	return summary, nil
}

// taskRespondents returns the owner followed by their explicit team, or by
// every other active employee when no team is recorded.
func taskRespondents(owner models.Employee, team, active []models.Employee) []models.Employee {
	pool := team
	if len(pool) == 0 {
		pool = active
	}
	out := []models.Employee{owner}
	seen := map[string]struct{}{owner.ID: {}}
	for _, e := range pool {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (s *TaskReviewService) ensureTaskSlot(ctx context.Context, task models.ReviewTask, owner, respondent models.Employee, questions []models.Question, now time.Time) (slotOutcome, error) {
	var outcome slotOutcome
	slots := make([]models.TaskAnswerSlot, 0, len(questions))
	for _, q := range questions {
		slots = append(slots, models.TaskAnswerSlot{TaskID: task.ID, SubjectID: owner.ID, RespondentID: respondent.ID, QuestionID: q.ID})
	}

	reviewType := models.ReviewTypePeer
	if respondent.ID == owner.ID {
		reviewType = models.ReviewTypeSelf
	}
	taskID := task.ID

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		created, err := s.tasks.EnsureAnswerPlaceholders(ctx, exec, slots, now)
		if err != nil {
			return err
		}
		if created == 0 {
			return nil
		}
		outcome.created = true

		log, _, err := s.logs.UpsertOpen(ctx, exec, models.ReviewLogUpsert{
			SubjectID:    owner.ID,
			RespondentID: respondent.ID,
			TaskID:       &taskID,
			Context:      models.ReviewContextTask,
			Token:        s.newToken(),
			ExpiresAt:    now.Add(s.cfg.TokenTTL),
			Metadata: models.Metadata{
				models.MetaReviewType: string(reviewType),
				models.MetaTaskID:     task.ID,
				models.MetaTaskTitle:  task.Title,
				models.MetaDueAt:      task.EndDate.Format("2006-01-02"),
				models.MetaTrigger:    taskTrigger,
			},
		}, now)
		if err != nil {
			return err
		}

		notificationID, inserted, err := s.notifications.UpsertForLog(ctx, exec, &models.Notification{
			ReviewLogID: log.ID,
			RecipientID: respondent.ID,
			Context:     models.ReviewContextTask,
			Title:       fmt.Sprintf("Task review %q", task.Title),
			Message:     fmt.Sprintf("Please rate how the task %q was completed.", task.Title),
			Metadata: models.Metadata{
				"subject_id":          owner.ID,
				models.MetaTaskID:     task.ID,
				models.MetaTaskTitle:  task.Title,
				models.MetaReviewType: string(reviewType),
			},
		}, now)
		if err != nil {
			return err
		}
		outcome.notified = inserted
		link := fmt.Sprintf("%s/%s?notification_id=%s", strings.TrimRight(s.cfg.TaskLinkPath, "/"), log.Token, notificationID)
		if err := s.notifications.SetLink(ctx, exec, notificationID, link); err != nil {
			return err
		}
		if log.Status == models.ReviewStatusPendingNotification {
			return s.logs.UpdateStatus(ctx, exec, log.ID, models.ReviewStatusPending, nil, now)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to ensure task review",
			zap.String("task_id", task.ID),
			zap.String("respondent_id", respondent.ID),
			zap.Error(err),
		)
		return slotOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure task review")
	}
	return outcome, nil
}

// FetchForm returns the task questions of the review behind token with any saved grades.
func (s *TaskReviewService) FetchForm(ctx context.Context, token string, now time.Time) (*dto.TaskReviewForm, error) {
	log, err := s.tokens.validate(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if err := requireContext(log, models.ReviewContextTask); err != nil {
		return nil, err
	}
	task, err := s.taskOf(ctx, log)
	if err != nil {
		return nil, err
	}

	subject, err := s.employee(ctx, log.SubjectID)
	if err != nil {
		return nil, err
	}
	respondent := subject
	if log.RespondentID != log.SubjectID {
		if respondent, err = s.employee(ctx, log.RespondentID); err != nil {
			return nil, err
		}
	}
	questions, err := s.questionsFor(ctx, subject.DepartmentID)
	if err != nil {
		return nil, err
	}
	answers, err := s.tasks.ListAnswers(ctx, task.ID, log.SubjectID, log.RespondentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}

	form := &dto.TaskReviewForm{
		ReviewLogID: log.ID,
		ReviewType:  log.ReviewType(),
		Status:      log.Status,
		ExpiresAt:   log.ExpiresAt,
		Task: dto.FormTask{
			ID:          task.ID,
			GoalID:      task.GoalID,
			GoalTitle:   task.GoalTitle,
			Title:       task.Title,
			Description: task.Description,
			StartDate:   task.StartDate.Format("2006-01-02"),
			EndDate:     task.EndDate.Format("2006-01-02"),
			Status:      task.Status,
		},
		Subject:    formPerson(subject),
		Respondent: formPerson(respondent),
		Total:      len(questions),
	}
	form.Categories, form.Answered = groupTaskForm(questions, answers)
	return form, nil
}

// SubmitAnswers stores the grades of the task review behind the token and
// completes it. The task completes once no respondent has an open slot left.
func (s *TaskReviewService) SubmitAnswers(ctx context.Context, req dto.SubmitTaskReviewRequest, now time.Time) (*dto.SubmitTaskReviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if len(req.Answers) == 0 {
		return nil, appErrors.ErrEmptyPayload
	}
	if _, err := uuid.Parse(req.Token); err != nil {
		return nil, appErrors.ErrInvalidToken
	}

	var (
		result  *dto.SubmitTaskReviewResponse
		expired error
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		log, err := s.logs.LockByToken(ctx, exec, req.Token)
		if err != nil {
			return err
		}
		if log == nil {
			return appErrors.ErrInvalidToken
		}
		if err := requireContext(log, models.ReviewContextTask); err != nil {
			return err
		}
		if err := s.tokens.ensureUsable(ctx, exec, log, now); err != nil {
			if errors.Is(err, appErrors.ErrLinkExpired) {
				// keep the expiry flip
				expired = err
				return nil
			}
			return err
		}
		task, err := s.taskOf(ctx, log)
		if err != nil {
			return err
		}
		subject, err := s.employee(ctx, log.SubjectID)
		if err != nil {
			return err
		}
		questions, err := s.questionsFor(ctx, subject.DepartmentID)
		if err != nil {
			return err
		}
		writes, err := gradeAnswers(log, questions, req.Answers)
		if err != nil {
			return err
		}
		for _, w := range writes {
			slot := models.TaskAnswerSlot{TaskID: task.ID, SubjectID: log.SubjectID, RespondentID: log.RespondentID, QuestionID: w.QuestionID}
			if err := s.tasks.UpsertAnswer(ctx, exec, slot, w.Grade, now); err != nil {
				return err
			}
		}

		submittedAt := now.UTC()
		if err := s.logs.UpdateStatus(ctx, exec, log.ID, models.ReviewStatusCompleted, models.Metadata{
			models.MetaSaveMode:    dto.SaveModeFinal,
			models.MetaSubmittedAt: submittedAt.Format(time.RFC3339),
		}, now); err != nil {
			return err
		}
		if err := s.notifications.MarkReadByLog(ctx, exec, log.ID, now); err != nil {
			return err
		}

		remaining, err := s.tasks.CountUnanswered(ctx, exec, task.ID)
		if err != nil {
			return err
		}
		result = &dto.SubmitTaskReviewResponse{
			ReviewLogID:   log.ID,
			TaskID:        task.ID,
			RespondentID:  log.RespondentID,
			Updated:       len(writes),
			SubmittedAt:   submittedAt,
			TaskCompleted: remaining == 0,
		}
		if remaining > 0 {
			return nil
		}
		return s.tasks.UpdateStatus(ctx, exec, task.ID, models.TaskStatusCompleted, now)
	})
	if err != nil {
		appErr := asAppError(err, "failed to submit task review")
		if appErr.Status >= 500 {
			s.logger.Error("task review submission failed", zap.Error(err))
		}
		return nil, appErr
	}
	if expired != nil {
		return nil, expired
	}

	s.metrics.RecordSubmission(dto.SaveModeFinal)
	s.logger.Info("task review submitted",
		zap.String("review_log_id", result.ReviewLogID),
		zap.String("task_id", result.TaskID),
		zap.Bool("task_completed", result.TaskCompleted),
	)
	return result, nil
}

func (s *TaskReviewService) taskOf(ctx context.Context, log *models.ReviewLog) (*models.ReviewTask, error) {
	taskID := log.Metadata.String(models.MetaTaskID)
	if log.TaskID != nil {
		taskID = *log.TaskID
	}
	if taskID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if task == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	return task, nil
}

func (s *TaskReviewService) employee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if employee == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}
	return employee, nil
}

func (s *TaskReviewService) questionsFor(ctx context.Context, departmentID *string) ([]models.Question, error) {
	contexts := []string{models.QuestionContextTask}
	questions, err := s.questions.ListByContexts(ctx, contexts, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	return effectiveQuestions(questions, contexts, departmentID), nil
}

// groupTaskForm groups questions by category in first-seen order.
func groupTaskForm(questions []models.Question, answers []models.TaskAnswer) ([]dto.FormCategory, int) {
	stored := make(map[string]models.TaskAnswer, len(answers))
	for _, a := range answers {
		stored[a.QuestionID] = a
	}

	answered := 0
	categories := []dto.FormCategory{}
	index := make(map[string]int)
	for _, q := range questions {
		category := q.Category
		if category == "" {
			category = defaultCategory
		}
		ci, ok := index[category]
		if !ok {
			ci = len(categories)
			index[category] = ci
			categories = append(categories, dto.FormCategory{Category: category})
		}
		item := dto.FormQuestion{
			ID:           q.ID,
			Title:        q.Title,
			AnswerType:   q.AnswerType,
			Weight:       q.EffectiveWeight(),
			DisplayOrder: q.DisplayOrder,
			ScaleMin:     q.ScaleMin,
			ScaleMax:     q.ScaleMax,
		}
		if len(q.AnswerOptions) > 0 && string(q.AnswerOptions) != "null" {
			item.Options = []byte(q.AnswerOptions)
		}
		if a, ok := stored[q.ID]; ok && a.Answered {
			grade := a.Grade
			item.Grade = &grade
			item.Answered = true
			answered++
		}
		categories[ci].Questions = append(categories[ci].Questions, item)
	}
	return categories, answered
}
