package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

type reviewLogStore interface {
	FindByToken(ctx context.Context, token string) (*models.ReviewLog, error)
	LockByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*models.ReviewLog, error)
	ExpireIfOpen(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) (bool, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ReviewStatus, meta models.Metadata, now time.Time) error
}

type reviewAnswerStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, w models.AnswerWrite, now time.Time) error
	ListForForm(ctx context.Context, subjectID, respondentID, periodID string) ([]models.Answer, error)
}

type reviewQuestionReader interface {
	ListByContexts(ctx context.Context, contexts []string, departmentID *string) ([]models.Question, error)
}

type reviewPeriodReader interface {
	FindByID(ctx context.Context, id string) (*models.ReviewPeriod, error)
}

type reviewEmployeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type reviewNotificationStore interface {
	MarkReadByLog(ctx context.Context, exec sqlx.ExtContext, reviewLogID string, now time.Time) error
	MarkRead(ctx context.Context, id string, now time.Time) (bool, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

type analyticsInvalidator interface {
	InvalidateSubject(ctx context.Context, subjectID string)
}

// ReviewService serves token-guarded review forms and accepts submissions.
type ReviewService struct {
	tx            txRunner
	logs          reviewLogStore
	answers       reviewAnswerStore
	questions     reviewQuestionReader
	periods       reviewPeriodReader
	employees     reviewEmployeeReader
	notifications reviewNotificationStore
	analytics     analyticsInvalidator
	tokens        tokenGuard
	validator     *validator.Validate
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewReviewService constructs the review service.
func NewReviewService(
	tx txRunner,
	logs reviewLogStore,
	answers reviewAnswerStore,
	questions reviewQuestionReader,
	periods reviewPeriodReader,
	employees reviewEmployeeReader,
	notifications reviewNotificationStore,
	analytics analyticsInvalidator,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		tx:            tx,
		logs:          logs,
		answers:       answers,
		questions:     questions,
		periods:       periods,
		employees:     employees,
		notifications: notifications,
		analytics:     analytics,
		tokens:        tokenGuard{logs: logs, metrics: metrics, logger: logger},
		validator:     validate,
		metrics:       metrics,
		logger:        logger,
	}
}

// ValidateToken returns the open log behind token. An expired link is flipped
// to expired on first use and reported as LINK_EXPIRED from then on.
func (s *ReviewService) ValidateToken(ctx context.Context, token string, now time.Time) (*models.ReviewLog, error) {
	return s.tokens.validate(ctx, token, now)
}

// FetchForm returns the questions of the review behind token with any saved answers.
func (s *ReviewService) FetchForm(ctx context.Context, token string, now time.Time) (*dto.ReviewForm, error) {
	log, err := s.ValidateToken(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if err := requireContext(log, models.ReviewContextSkill); err != nil {
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
	period, err := s.periods.FindByID(ctx, log.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	if period == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "review period not found")
	}

	questions, err := s.questionsFor(ctx, log, subject.DepartmentID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListForForm(ctx, log.SubjectID, log.RespondentID, log.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}

	form := &dto.ReviewForm{
		ReviewLogID: log.ID,
		ReviewType:  log.ReviewType(),
		Status:      log.Status,
		ExpiresAt:   log.ExpiresAt,
		Subject:     formPerson(subject),
		Respondent:  formPerson(respondent),
		Period:      dto.FormPeriod{ID: period.ID, Name: period.Label(), MonthOffset: period.MonthOffset},
	}
	form.Groups, form.Answered = groupForm(questions, answers)
	form.Total = len(questions)
	return form, nil
}

func (s *ReviewService) employee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if employee == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}
	return employee, nil
}

func (s *ReviewService) questionsFor(ctx context.Context, log *models.ReviewLog, departmentID *string) ([]models.Question, error) {
	contexts := skillContexts(log.ReviewType())
	questions, err := s.questions.ListByContexts(ctx, contexts, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	return effectiveQuestions(questions, contexts, departmentID), nil
}

// SubmitAnswers validates and stores answers for the review behind the token.
// A final submission completes the review; a partial one keeps it open.
func (s *ReviewService) SubmitAnswers(ctx context.Context, req dto.SubmitReviewRequest, now time.Time) (*dto.SubmitReviewResponse, error) {
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
		result  *dto.SubmitReviewResponse
		subject string
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
		if err := requireContext(log, models.ReviewContextSkill); err != nil {
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

		departmentID, err := s.subjectDepartment(ctx, log.SubjectID)
		if err != nil {
			return err
		}
		questions, err := s.questionsFor(ctx, log, departmentID)
		if err != nil {
			return err
		}
		writes, err := gradeAnswers(log, questions, req.Answers)
		if err != nil {
			return err
		}
		for _, w := range writes {
			if err := s.answers.Upsert(ctx, exec, w, now); err != nil {
				return err
			}
		}

		result = &dto.SubmitReviewResponse{ReviewLogID: log.ID, Updated: len(writes)}
		subject = log.SubjectID
		if req.IsPartial() {
			result.Status = models.ReviewStatusPending
			result.SaveMode = dto.SaveModePartial
			return s.logs.UpdateStatus(ctx, exec, log.ID, models.ReviewStatusPending, models.Metadata{
				models.MetaSaveMode: dto.SaveModePartial,
			}, now)
		}

		submittedAt := now.UTC()
		result.Status = models.ReviewStatusCompleted
		result.SaveMode = dto.SaveModeFinal
		result.SubmittedAt = &submittedAt
		if err := s.logs.UpdateStatus(ctx, exec, log.ID, models.ReviewStatusCompleted, models.Metadata{
			models.MetaSaveMode:    dto.SaveModeFinal,
			models.MetaSubmittedAt: submittedAt.Format(time.RFC3339),
		}, now); err != nil {
			return err
		}
		return s.notifications.MarkReadByLog(ctx, exec, log.ID, now)
	})
	if err != nil {
		appErr := asAppError(err, "failed to submit review")
		if appErr.Status >= 500 {
			s.logger.Error("review submission failed", zap.Error(err))
		}
		return nil, appErr
	}
	if expired != nil {
		return nil, expired
	}

	if s.analytics != nil {
		s.analytics.InvalidateSubject(ctx, subject)
	}
	s.metrics.RecordSubmission(result.SaveMode)
	s.logger.Info("review submitted",
		zap.String("review_log_id", result.ReviewLogID),
		zap.String("save_mode", result.SaveMode),
		zap.Int("answers", result.Updated),
	)
	return result, nil
}

func (s *ReviewService) subjectDepartment(ctx context.Context, subjectID string) (*string, error) {
	subject, err := s.employee(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return subject.DepartmentID, nil
}

// gradeAnswers validates every answer before anything is written.
func gradeAnswers(log *models.ReviewLog, questions []models.Question, inputs []dto.AnswerInput) ([]models.AnswerWrite, error) {
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	seen := make(map[string]struct{}, len(inputs))
	writes := make([]models.AnswerWrite, 0, len(inputs))
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %s is not part of this review", in.QuestionID))
		}
		if _, dup := seen[in.QuestionID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %s answered twice", in.QuestionID))
		}
		seen[in.QuestionID] = struct{}{}

		evaluator, err := evaluatorFor(q.AnswerType)
		if err != nil {
			return nil, err
		}
		graded, err := evaluator.Grade(q, in)
		if err != nil {
			return nil, err
		}
		writes = append(writes, models.AnswerWrite{
			SubjectID:    log.SubjectID,
			RespondentID: log.RespondentID,
			PeriodID:     log.PeriodID,
			QuestionID:   q.ID,
			Grade:        graded.Grade,
			AnswerValue:  graded.Value,
			IsCorrect:    graded.IsCorrect,
			QuestionType: q.SkillType,
			Weight:       q.EffectiveWeight(),
		})
	}
	return writes, nil
}

func groupForm(questions []models.Question, answers []models.Answer) ([]dto.FormGroup, int) {
	stored := make(map[string]models.Answer, len(answers))
	for _, a := range answers {
		stored[a.QuestionID] = a
	}

	answered := 0
	var groups []dto.FormGroup
	groupIndex := make(map[models.SkillType]int)
	categoryIndex := make(map[string]int)
	for _, skillType := range []models.SkillType{models.SkillTypeHard, models.SkillTypeSoft} {
		groupIndex[skillType] = len(groups)
		groups = append(groups, dto.FormGroup{SkillType: skillType})
	}

	for _, q := range questions {
		gi, ok := groupIndex[q.SkillType]
		if !ok {
			gi = len(groups)
			groupIndex[q.SkillType] = gi
			groups = append(groups, dto.FormGroup{SkillType: q.SkillType})
		}
		category := q.Category
		if category == "" {
			category = defaultCategory
		}
		key := string(q.SkillType) + "\x00" + category
		ci, ok := categoryIndex[key]
		if !ok {
			ci = len(groups[gi].Categories)
			categoryIndex[key] = ci
			groups[gi].Categories = append(groups[gi].Categories, dto.FormCategory{Category: category})
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
			if len(a.AnswerValue) > 0 {
				item.Answer = []byte(a.AnswerValue)
			}
			answered++
		}
		groups[gi].Categories[ci].Questions = append(groups[gi].Categories[ci].Questions, item)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Categories) > 0 {
			out = append(out, g)
		}
	}
	return out, answered
}

func formPerson(e *models.Employee) dto.FormPerson {
	return dto.FormPerson{ID: e.ID, FullName: e.FullName, Position: e.Position, Department: e.DepartmentName}
}

// ListNotifications pages through a recipient's notifications.
func (s *ReviewService) ListNotifications(ctx context.Context, query dto.NotificationListQuery) ([]models.Notification, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification query")
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.PageSize == 0 {
		query.PageSize = 20
	}
	items, total, err := s.notifications.List(ctx, models.NotificationFilter{
		RecipientID: query.RecipientID,
		UnreadOnly:  query.UnreadOnly,
		Page:        query.Page,
		PageSize:    query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// MarkNotificationRead marks a notification as read.
func (s *ReviewService) MarkNotificationRead(ctx context.Context, id string, now time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid notification id")
	}
	found, err := s.notifications.MarkRead(ctx, id, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// asAppError keeps typed errors and wraps anything else as internal.
func asAppError(err error, message string) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
