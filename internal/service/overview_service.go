package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

type overviewPeriodReader interface {
	ListActive(ctx context.Context) ([]models.ReviewPeriod, error)
}

type overviewLogReader interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.ReviewLog, error)
}

type overviewAnswerReader interface {
	ListScored(ctx context.Context, filter models.AnalyticsFilter) ([]models.ScoredAnswer, error)
}

type overviewScorer interface {
	SkillAnalytics(ctx context.Context, filter models.AnalyticsFilter) (*models.SkillAnalytics, bool, error)
	AdaptationIndex(ctx context.Context, filter models.AnalyticsFilter) (*models.AdaptationIndex, bool, error)
}

// OverviewService assembles a subject's review timeline and headline scores.
type OverviewService struct {
	employees reviewEmployeeReader
	periods   overviewPeriodReader
	logs      overviewLogReader
	answers   overviewAnswerReader
	scoring   overviewScorer
	logger    *zap.Logger
}

// NewOverviewService constructs the overview service.
func NewOverviewService(employees reviewEmployeeReader, periods overviewPeriodReader, logs overviewLogReader, answers overviewAnswerReader, scoring overviewScorer, logger *zap.Logger) *OverviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewService{employees: employees, periods: periods, logs: logs, answers: answers, scoring: scoring, logger: logger}
}

// Overview returns the review calendar of a subject as seen at now.
func (s *OverviewService) Overview(ctx context.Context, subjectID string, now time.Time) (*models.ReviewOverview, error) {
	filter, err := normalizeAnalyticsFilter(models.AnalyticsFilter{SubjectID: subjectID})
	if err != nil {
		return nil, err
	}
	subject, err := s.employees.FindByID(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if subject == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}

	periods, err := s.periods.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	logs, err := s.logs.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review logs")
	}
	rows, err := s.answers.ListScored(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}

	today := DateOnly(now)
	overview := &models.ReviewOverview{
		SubjectID:      subjectID,
		Today:          today,
		ActivationDate: DateOnly(subject.ActivationDate),
		Timeline:       buildTimeline(*subject, periods, logs, now),
		LastGrowth:     lastGrowth(rows),
	}
	for i := range overview.Timeline {
		item := &overview.Timeline[i]
		if !item.DueDate.After(today) {
			overview.DueCount++
		}
		if item.Status == models.TimelineCompleted {
			overview.CompletedCount++
		}
		if overview.NextReview == nil && item.DueDate.After(today) {
			next := *item
			overview.NextReview = &next
		}
		if overview.ActiveReview == nil && isActiveStatus(item.Status) {
			active := *item
			overview.ActiveReview = &active
		}
	}
	if overview.DueCount > 0 {
		overview.CompletionRate = round(float64(overview.CompletedCount)/float64(overview.DueCount)*100, 1)
	}

	if overview.Analytics, _, err = s.scoring.SkillAnalytics(ctx, filter); err != nil {
		return nil, err
	}
	if overview.AdaptationIndex, _, err = s.scoring.AdaptationIndex(ctx, filter); err != nil {
		return nil, err
	}
	return overview, nil
}

// buildTimeline places every active period on the subject's calendar. The start
// period tracks the self-review; later periods track peer reviews about the subject.
func buildTimeline(subject models.Employee, periods []models.ReviewPeriod, logs []models.ReviewLog, now time.Time) []models.TimelineItem {
	sorted := append([]models.ReviewPeriod(nil), periods...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MonthOffset < sorted[j].MonthOffset })

	today := DateOnly(now)
	items := make([]models.TimelineItem, 0, len(sorted))
	for _, p := range sorted {
		reviewType := models.ReviewTypePeer
		if p.MonthOffset == 0 {
			reviewType = models.ReviewTypeSelf
		}
		item := models.TimelineItem{
			PeriodID:    p.ID,
			PeriodName:  p.Label(),
			MonthOffset: p.MonthOffset,
			ReviewType:  reviewType,
			DueDate:     DueDate(subject.ActivationDate, p.MonthOffset),
		}

		var open, completed, expired int
		for _, l := range logs {
			if l.PeriodID != p.ID || l.ReviewType() != reviewType {
				continue
			}
			item.Logs++
			switch {
			case l.Status == models.ReviewStatusCompleted:
				completed++
			case !l.Status.IsTerminal() && !l.IsExpiredAt(now):
				open++
				if item.LinkValidTil == nil || l.ExpiresAt.Before(*item.LinkValidTil) {
					expiresAt := l.ExpiresAt
					item.LinkValidTil = &expiresAt
				}
			default:
				expired++
			}
		}
		item.Completed = completed

		switch {
		case item.Logs == 0 && item.DueDate.After(today):
			item.Status = models.TimelineScheduled
		case item.Logs == 0 && item.DueDate.Equal(today):
			item.Status = models.TimelineDueToday
		case item.Logs == 0:
			item.Status = models.TimelineMissed
		case open > 0 && today.Equal(item.DueDate):
			item.Status = models.TimelineDueToday
		case open > 0 && today.After(item.DueDate):
			item.Status = models.TimelineOverdue
		case open > 0:
			item.Status = models.TimelineOpen
		case completed > 0:
			item.Status = models.TimelineCompleted
		default:
			item.Status = models.TimelineExpired
		}
		items = append(items, item)
	}
	return items
}

func isActiveStatus(status models.TimelineStatus) bool {
	switch status {
	case models.TimelineOpen, models.TimelineDueToday, models.TimelineOverdue:
		return true
	}
	return false
}

// lastGrowth compares the combined average of the two most recent periods.
func lastGrowth(rows []models.ScoredAnswer) *float64 {
	byPeriod := make(map[string][]models.ScoredAnswer)
	offsets := make(map[string]int)
	for _, r := range rows {
		if !r.Answered {
			continue
		}
		byPeriod[r.PeriodID] = append(byPeriod[r.PeriodID], r)
		offsets[r.PeriodID] = r.MonthOffset
	}
	if len(byPeriod) < 2 {
		return nil
	}
	ids := make([]string, 0, len(byPeriod))
	for id := range byPeriod {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if offsets[ids[i]] != offsets[ids[j]] {
			return offsets[ids[i]] < offsets[ids[j]]
		}
		return ids[i] < ids[j]
	})
	last := weightedAverage(byPeriod[ids[len(ids)-1]])
	prev := weightedAverage(byPeriod[ids[len(ids)-2]])
	return difference(last, prev)
}
