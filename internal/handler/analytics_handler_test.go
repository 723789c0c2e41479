package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/perf-review-api/internal/middleware"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

type fakeScoring struct {
	filter models.AnalyticsFilter
	hit    bool
	err    error
}

func (f *fakeScoring) SkillAnalytics(_ context.Context, filter models.AnalyticsFilter) (*models.SkillAnalytics, bool, error) {
	f.filter = filter
	if f.err != nil {
		return nil, false, f.err
	}
	return &models.SkillAnalytics{SubjectID: filter.SubjectID, Type: filter.Type}, f.hit, nil
}

func (f *fakeScoring) AdaptationIndex(_ context.Context, filter models.AnalyticsFilter) (*models.AdaptationIndex, bool, error) {
	f.filter = filter
	if f.err != nil {
		return nil, false, f.err
	}
	return &models.AdaptationIndex{SubjectID: filter.SubjectID, Value: 80, Zone: models.ZoneGreen}, f.hit, nil
}

type fakeSnapshotter struct{}

func (fakeSnapshotter) Snapshot(now time.Time) models.SystemMetrics {
	return models.SystemMetrics{CycleRuns: 3, GeneratedAt: now}
}

func TestAnalyticsHandlerSkillsParsesFilter(t *testing.T) {
	scoring := &fakeScoring{hit: true}
	handler := NewAnalyticsHandler(scoring, nil)

	c, rec := newTestContext(http.MethodGet, "/review/analytics?subject=emp-1&period=p-3&type=HARD", nil)
	middleware.WithResponseMeta()(c)
	handler.Skills(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "emp-1", scoring.filter.SubjectID)
	require.NotNil(t, scoring.filter.PeriodID)
	assert.Equal(t, "p-3", *scoring.filter.PeriodID)
	assert.Equal(t, "hard", scoring.filter.Type)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestAnalyticsHandlerRequiresSubject(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeScoring{}, nil)

	c, rec := newTestContext(http.MethodGet, "/review/analytics", nil)
	handler.Skills(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlerAdaptation(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeScoring{}, nil)

	c, rec := newTestContext(http.MethodGet, "/review/adaptation-index?subject=emp-1", nil)
	handler.Adaptation(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "green", env.Data["zone"])
	assert.Equal(t, false, env.Meta["cache_hit"])
}

func TestAnalyticsHandlerPropagatesErrors(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeScoring{err: appErrors.Clone(appErrors.ErrValidation, "invalid type")}, nil)

	c, rec := newTestContext(http.MethodGet, "/review/adaptation-index?subject=emp-1&type=other", nil)
	handler.Adaptation(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlerSystem(t *testing.T) {
	handler := NewAnalyticsHandler(nil, fakeSnapshotter{})

	c, rec := newTestContext(http.MethodGet, "/analytics/system", nil)
	handler.System(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, float64(3), env.Data["cycle_runs"])

	handler = NewAnalyticsHandler(nil, nil)
	c, rec = newTestContext(http.MethodGet, "/analytics/system", nil)
	handler.System(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
