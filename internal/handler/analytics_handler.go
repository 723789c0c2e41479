package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/perf-review-api/internal/middleware"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
	"github.com/noah-isme/perf-review-api/pkg/response"
)

type scoringProvider interface {
	SkillAnalytics(ctx context.Context, filter models.AnalyticsFilter) (*models.SkillAnalytics, bool, error)
	AdaptationIndex(ctx context.Context, filter models.AnalyticsFilter) (*models.AdaptationIndex, bool, error)
}

type metricsSnapshotter interface {
	Snapshot(now time.Time) models.SystemMetrics
}

// AnalyticsHandler exposes skill analytics, the adaptation index and system metrics.
type AnalyticsHandler struct {
	scoring scoringProvider
	metrics metricsSnapshotter
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(scoring scoringProvider, metrics metricsSnapshotter) *AnalyticsHandler {
	return &AnalyticsHandler{scoring: scoring, metrics: metrics}
}

// Skills godoc
// @Summary Skill analytics of a subject
// @Tags Analytics
// @Produce json
// @Param subject query string true "Subject employee ID"
// @Param period query string false "Period ID"
// @Param type query string false "all, hard or soft"
// @Success 200 {object} response.Envelope
// @Router /review/analytics [get]
func (h *AnalyticsHandler) Skills(c *gin.Context) {
	if h.scoring == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	analytics, cacheHit, err := h.scoring.SkillAnalytics(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, analytics, cacheHit)
}

// Adaptation godoc
// @Summary Adaptation index of a subject
// @Tags Analytics
// @Produce json
// @Param subject query string true "Subject employee ID"
// @Param period query string false "Period ID"
// @Param type query string false "all, hard or soft"
// @Success 200 {object} response.Envelope
// @Router /review/adaptation-index [get]
func (h *AnalyticsHandler) Adaptation(c *gin.Context) {
	if h.scoring == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	index, cacheHit, err := h.scoring.AdaptationIndex(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithMeta(c, index, cacheHit)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(time.Now()), nil, middleware.ResponseMeta(c))
}

func parseAnalyticsFilter(c *gin.Context) (models.AnalyticsFilter, error) {
	filter := models.AnalyticsFilter{
		SubjectID: strings.TrimSpace(c.Query("subject")),
		Type:      strings.ToLower(strings.TrimSpace(c.Query("type"))),
	}
	if filter.SubjectID == "" {
		return filter, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	if period := strings.TrimSpace(c.Query("period")); period != "" {
		filter.PeriodID = &period
	}
	return filter, nil
}

func respondWithMeta(c *gin.Context, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ResponseMeta(c))
}
