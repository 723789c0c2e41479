package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

const (
	cacheNamespaceAnalytics  = "analytics"
	cacheNamespaceAdaptation = "adaptation"
)

type scoringAnswerReader interface {
	ListScored(ctx context.Context, filter models.AnalyticsFilter) ([]models.ScoredAnswer, error)
	Stats(ctx context.Context, subjectID string) (models.AnswerStats, error)
}

// ScoringService computes skill analytics and the adaptation index.
type ScoringService struct {
	answers scoringAnswerReader
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewScoringService constructs the scoring service.
func NewScoringService(answers scoringAnswerReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{answers: answers, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// SkillAnalytics returns the category breakdown for a subject. The bool reports a cache hit.
func (s *ScoringService) SkillAnalytics(ctx context.Context, filter models.AnalyticsFilter) (*models.SkillAnalytics, bool, error) {
	filter, err := normalizeAnalyticsFilter(filter)
	if err != nil {
		return nil, false, err
	}

	key := analyticsCacheKey(filter, cacheNamespaceAnalytics)
	var cached models.SkillAnalytics
	if s.cache.Get(ctx, cacheNamespaceAnalytics, key, &cached) {
		return &cached, true, nil
	}

	analytics, err := s.loadAnalytics(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, analytics, s.ttl)
	return analytics, false, nil
}

// AdaptationIndex returns the 0-100 adaptation index for a subject.
func (s *ScoringService) AdaptationIndex(ctx context.Context, filter models.AnalyticsFilter) (*models.AdaptationIndex, bool, error) {
	filter, err := normalizeAnalyticsFilter(filter)
	if err != nil {
		return nil, false, err
	}

	key := analyticsCacheKey(filter, cacheNamespaceAdaptation)
	var cached models.AdaptationIndex
	if s.cache.Get(ctx, cacheNamespaceAdaptation, key, &cached) {
		return &cached, true, nil
	}

	analytics, err := s.loadAnalytics(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	start := time.Now()
	stats, err := s.answers.Stats(ctx, filter.SubjectID)
	s.metrics.ObserveDBQuery("answer_stats", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answer statistics")
	}

	index := computeAdaptationIndex(*analytics, stats)
	s.cache.Set(ctx, key, index, s.ttl)
	return &index, false, nil
}

// InvalidateSubject drops every cached analytics payload of a subject.
func (s *ScoringService) InvalidateSubject(ctx context.Context, subjectID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("review:analytics:%s*", subjectID)); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.String("subject_id", subjectID), zap.Error(err))
	}
}

func (s *ScoringService) loadAnalytics(ctx context.Context, filter models.AnalyticsFilter) (*models.SkillAnalytics, error) {
	start := time.Now()
	rows, err := s.answers.ListScored(ctx, filter)
	s.metrics.ObserveDBQuery("scored_answers", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}
	analytics := buildSkillAnalytics(filter, rows)
	return &analytics, nil
}

func normalizeAnalyticsFilter(filter models.AnalyticsFilter) (models.AnalyticsFilter, error) {
	if _, err := uuid.Parse(filter.SubjectID); err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid subject id")
	}
	if filter.PeriodID != nil {
		if *filter.PeriodID == "" {
			filter.PeriodID = nil
		} else if _, err := uuid.Parse(*filter.PeriodID); err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid period id")
		}
	}
	filter.Type = normalizeAnalyticsType(filter.Type)
	switch filter.Type {
	case models.AnalyticsTypeAll, models.AnalyticsTypeHard, models.AnalyticsTypeSoft:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "type must be one of all, hard, soft")
	}
	return filter, nil
}

func analyticsCacheKey(filter models.AnalyticsFilter, namespace string) string {
	period := "all"
	if filter.PeriodID != nil {
		period = *filter.PeriodID
	}
	return fmt.Sprintf("review:analytics:%s:%s:%s:%s", filter.SubjectID, namespace, period, filter.Type)
}
