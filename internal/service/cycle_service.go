package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

const (
	defaultZeroPeriodName = "Start"
	cycleTrigger          = "scheduler"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type cycleEmployeeReader interface {
	GetActiveEmployees(ctx context.Context, asOf time.Time) ([]models.Employee, error)
}

type cyclePeriodStore interface {
	ListActive(ctx context.Context) ([]models.ReviewPeriod, error)
	EnsureZero(ctx context.Context, name string) (*models.ReviewPeriod, error)
	EnsureDefaults(ctx context.Context, periods []models.ReviewPeriod) (int, error)
}

type cycleQuestionReader interface {
	ListActive(ctx context.Context) ([]models.Question, error)
}

type cyclePlaceholderWriter interface {
	EnsurePlaceholders(ctx context.Context, exec sqlx.ExtContext, placeholders []models.PlaceholderAnswer, now time.Time) (int, error)
}

type cycleLogWriter interface {
	UpsertOpen(ctx context.Context, exec sqlx.ExtContext, in models.ReviewLogUpsert, now time.Time) (*models.ReviewLog, bool, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ReviewStatus, meta models.Metadata, now time.Time) error
}

type cycleNotificationWriter interface {
	UpsertForLog(ctx context.Context, exec sqlx.ExtContext, n *models.Notification, now time.Time) (string, bool, error)
	SetLink(ctx context.Context, exec sqlx.ExtContext, id, link string) error
}

// CycleServiceConfig tunes token lifetime and notification links.
type CycleServiceConfig struct {
	TokenTTL       time.Duration
	SkillLinkPath  string
	ZeroPeriodName string
}

// CycleService generates due self and peer reviews for active employees.
type CycleService struct {
	tx            txRunner
	employees     cycleEmployeeReader
	periods       cyclePeriodStore
	questions     cycleQuestionReader
	answers       cyclePlaceholderWriter
	logs          cycleLogWriter
	notifications cycleNotificationWriter
	analytics     analyticsInvalidator
	metrics       *MetricsService
	logger        *zap.Logger
	cfg           CycleServiceConfig
	newToken      func() string
}

// NewCycleService constructs the scheduler service.
func NewCycleService(
	tx txRunner,
	employees cycleEmployeeReader,
	periods cyclePeriodStore,
	questions cycleQuestionReader,
	answers cyclePlaceholderWriter,
	logs cycleLogWriter,
	notifications cycleNotificationWriter,
	analytics analyticsInvalidator,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg CycleServiceConfig,
) *CycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.SkillLinkPath == "" {
		cfg.SkillLinkPath = "/reviews/skills"
	}
	if cfg.ZeroPeriodName == "" {
		cfg.ZeroPeriodName = defaultZeroPeriodName
	}
	return &CycleService{
		tx:            tx,
		employees:     employees,
		periods:       periods,
		questions:     questions,
		answers:       answers,
		logs:          logs,
		notifications: notifications,
		analytics:     analytics,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		newToken:      uuid.NewString,
	}
}

// reviewSlot is one (subject, respondent, period) review the cycle ensures.
type reviewSlot struct {
	subject    models.Employee
	respondent models.Employee
	period     models.ReviewPeriod
	reviewType models.ReviewType
	questions  []models.Question
	dueAt      time.Time
}

type slotOutcome struct {
	created  bool
	notified bool
}

// RunCycle creates the reviews due on asOf. Newly activated employees get a
// self-review on the start period; every non-zero period whose offset matches
// the months elapsed since activation gets a peer review from each other
// active employee. Re-running for the same day creates nothing new.
func (s *CycleService) RunCycle(ctx context.Context, asOf, now time.Time) (summary *models.CycleSummary, err error) {
	asOf = DateOnly(asOf)
	defer func() { s.metrics.RecordCycleRun(summary, err) }()

	summary = &models.CycleSummary{AsOf: asOf.Format("2006-01-02")}

	questions, err := s.questions.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	if !hasSkillQuestions(questions) {
		s.logger.Info("review cycle skipped: no active skill questions", zap.String("as_of", summary.AsOf))
		return summary, nil
	}

	employees, err := s.employees.GetActiveEmployees(ctx, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	if len(employees) == 0 {
		return summary, nil
	}

	periods, err := s.periods.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	zero := findZeroPeriod(periods)
	if zero == nil {
		if zero, err = s.periods.EnsureZero(ctx, s.cfg.ZeroPeriodName); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure start period")
		}
	}

	for _, subject := range employees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		days := DaysBetween(subject.ActivationDate, asOf)
		if days < 0 {
			continue
		}

		if days == 0 {
			outcome, err := s.ensureSlot(ctx, reviewSlot{
				subject:    subject,
				respondent: subject,
				period:     *zero,
				reviewType: models.ReviewTypeSelf,
				questions:  effectiveQuestions(questions, skillContexts(models.ReviewTypeSelf), subject.DepartmentID),
				dueAt:      DateOnly(subject.ActivationDate),
			}, now)
			if err != nil {
				return nil, err
			}
			recordOutcome(summary, models.ReviewTypeSelf, outcome)
		}

		peerQuestions := effectiveQuestions(questions, skillContexts(models.ReviewTypePeer), subject.DepartmentID)
		for _, period := range periods {
			if period.MonthOffset <= 0 || !period.InWindow(asOf) || !IsDueOn(subject.ActivationDate, asOf, period.MonthOffset) {
				continue
			}
			for _, respondent := range employees {
				if respondent.ID == subject.ID || DaysBetween(respondent.ActivationDate, asOf) <= 0 {
					continue
				}
				outcome, err := s.ensureSlot(ctx, reviewSlot{
					subject:    subject,
					respondent: respondent,
					period:     period,
					reviewType: models.ReviewTypePeer,
					questions:  peerQuestions,
					dueAt:      DueDate(subject.ActivationDate, period.MonthOffset),
				}, now)
				if err != nil {
					return nil, err
				}
				recordOutcome(summary, models.ReviewTypePeer, outcome)
			}
		}
	}

	s.logger.Info("review cycle completed",
		zap.String("as_of", summary.AsOf),
		zap.Int("self_reviews_created", summary.SelfReviewsCreated),
		zap.Int("peer_reviews_created", summary.PeerReviewsCreated),
		zap.Int("notifications_created", summary.NotificationsCreated),
	)
	return summary, nil
}

// ensureSlot creates missing placeholders for a slot and, when any were new,
// ensures the open log and its notification in the same transaction.
func (s *CycleService) ensureSlot(ctx context.Context, slot reviewSlot, now time.Time) (slotOutcome, error) {
	var outcome slotOutcome
	if len(slot.questions) == 0 {
		return outcome, nil
	}

	placeholders := make([]models.PlaceholderAnswer, 0, len(slot.questions))
	for _, q := range slot.questions {
		placeholders = append(placeholders, models.PlaceholderAnswer{
			SubjectID:    slot.subject.ID,
			RespondentID: slot.respondent.ID,
			PeriodID:     slot.period.ID,
			QuestionID:   q.ID,
			QuestionType: q.SkillType,
			Weight:       q.EffectiveWeight(),
		})
	}

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		created, err := s.answers.EnsurePlaceholders(ctx, exec, placeholders, now)
		if err != nil {
			return err
		}
		if created == 0 {
			return nil
		}
		outcome.created = true

		log, _, err := s.logs.UpsertOpen(ctx, exec, models.ReviewLogUpsert{
			SubjectID:    slot.subject.ID,
			RespondentID: slot.respondent.ID,
			PeriodID:     slot.period.ID,
			Context:      models.ReviewContextSkill,
			Token:        s.newToken(),
			ExpiresAt:    now.Add(s.cfg.TokenTTL),
			Metadata: models.Metadata{
				models.MetaReviewType: string(slot.reviewType),
				models.MetaDueAt:      slot.dueAt.Format("2006-01-02"),
				models.MetaTrigger:    cycleTrigger,
				models.MetaPeriodName: slot.period.Label(),
			},
		}, now)
		if err != nil {
			return err
		}

		notification := s.buildNotification(slot, log)
		notificationID, inserted, err := s.notifications.UpsertForLog(ctx, exec, notification, now)
		if err != nil {
			return err
		}
		outcome.notified = inserted
		if err := s.notifications.SetLink(ctx, exec, notificationID, s.reviewLink(log.Token, notificationID)); err != nil {
			return err
		}

		if log.Status == models.ReviewStatusPendingNotification {
			return s.logs.UpdateStatus(ctx, exec, log.ID, models.ReviewStatusPending, nil, now)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to ensure review",
			zap.String("subject_id", slot.subject.ID),
			zap.String("respondent_id", slot.respondent.ID),
			zap.String("period_id", slot.period.ID),
			zap.Error(err),
		)
		return slotOutcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure review")
	}
	// new placeholders shift the subject's unanswered ratio
	if outcome.created && s.analytics != nil {
		s.analytics.InvalidateSubject(ctx, slot.subject.ID)
	}
	return outcome, nil
}

func (s *CycleService) buildNotification(slot reviewSlot, log *models.ReviewLog) *models.Notification {
	n := &models.Notification{
		ReviewLogID: log.ID,
		RecipientID: slot.respondent.ID,
		Context:     models.ReviewContextSkill,
		Metadata: models.Metadata{
			"subject_id":          slot.subject.ID,
			"period_id":           slot.period.ID,
			models.MetaReviewType: string(slot.reviewType),
			models.MetaDueAt:      slot.dueAt.Format("2006-01-02"),
		},
	}
	if slot.reviewType == models.ReviewTypeSelf {
		n.Title = "Skill self-assessment"
		n.Message = fmt.Sprintf("Update your skill self-assessment for %s", slot.period.Label())
	} else {
		n.Title = "Colleague review"
		n.Message = fmt.Sprintf("Rate the skills of %s for %s", slot.subject.FullName, slot.period.Label())
	}
	return n
}

func (s *CycleService) reviewLink(token, notificationID string) string {
	return fmt.Sprintf("%s/%s?notification_id=%s", strings.TrimRight(s.cfg.SkillLinkPath, "/"), token, notificationID)
}

// EnsureDefaultPeriods seeds the standard checkpoints: start, 1, 3 and 6
// months, then yearly up to ten years.
func (s *CycleService) EnsureDefaultPeriods(ctx context.Context) (int, error) {
	created, err := s.periods.EnsureDefaults(ctx, DefaultPeriods(s.cfg.ZeroPeriodName))
	if err != nil {
		return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed review periods")
	}
	if created > 0 {
		s.logger.Info("seeded review periods", zap.Int("created", created))
	}
	return created, nil
}

// DefaultPeriods returns the standard checkpoint list.
func DefaultPeriods(zeroName string) []models.ReviewPeriod {
	if zeroName == "" {
		zeroName = defaultZeroPeriodName
	}
	periods := []models.ReviewPeriod{
		{MonthOffset: 0, Name: zeroName},
		{MonthOffset: 1, Name: "1 month"},
		{MonthOffset: 3, Name: "3 months"},
		{MonthOffset: 6, Name: "6 months"},
		{MonthOffset: 12, Name: "1 year"},
	}
	for years := 2; years <= 10; years++ {
		periods = append(periods, models.ReviewPeriod{MonthOffset: years * 12, Name: fmt.Sprintf("%d years", years)})
	}
	return periods
}

func recordOutcome(summary *models.CycleSummary, reviewType models.ReviewType, outcome slotOutcome) {
	if outcome.created {
		if reviewType == models.ReviewTypeSelf {
			summary.SelfReviewsCreated++
		} else {
			summary.PeerReviewsCreated++
		}
	}
	if outcome.notified {
		summary.NotificationsCreated++
	}
}

func findZeroPeriod(periods []models.ReviewPeriod) *models.ReviewPeriod {
	for i := range periods {
		if periods[i].MonthOffset == 0 {
			return &periods[i]
		}
	}
	return nil
}

func hasSkillQuestions(questions []models.Question) bool {
	for _, q := range questions {
		if !q.IsActive {
			continue
		}
		switch q.Context {
		case models.QuestionContextSelf, models.QuestionContextPeer, models.QuestionContextBoth:
			return true
		}
	}
	return false
}
