package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
	"github.com/noah-isme/perf-review-api/pkg/response"
)

type cycleTrigger interface {
	RunCycle(ctx context.Context, asOf, now time.Time) (*models.CycleSummary, error)
}

type cycleEnqueuer interface {
	EnqueueCycle(asOf time.Time) (string, error)
}

type reviewFlowService interface {
	ValidateToken(ctx context.Context, token string, now time.Time) (*models.ReviewLog, error)
	FetchForm(ctx context.Context, token string, now time.Time) (*dto.ReviewForm, error)
	SubmitAnswers(ctx context.Context, req dto.SubmitReviewRequest, now time.Time) (*dto.SubmitReviewResponse, error)
	ListNotifications(ctx context.Context, query dto.NotificationListQuery) ([]models.Notification, *models.Pagination, error)
	MarkNotificationRead(ctx context.Context, id string, now time.Time) error
}

type overviewProvider interface {
	Overview(ctx context.Context, subjectID string, now time.Time) (*models.ReviewOverview, error)
}

type identitySyncer interface {
	SyncIdentity(ctx context.Context, record models.EmployeeRecord) (string, error)
}

// ReviewHandler exposes the skill review lifecycle: scheduling, token-guarded
// forms, submissions and notifications.
type ReviewHandler struct {
	cycle    cycleTrigger
	queue    cycleEnqueuer
	reviews  reviewFlowService
	overview overviewProvider
	identity identitySyncer
	clock    func() time.Time
}

// NewReviewHandler constructs the handler. queue may be nil, in which case
// async initiation runs inline.
func NewReviewHandler(cycle cycleTrigger, queue cycleEnqueuer, reviews reviewFlowService, overview overviewProvider, identity identitySyncer) *ReviewHandler {
	return &ReviewHandler{
		cycle:    cycle,
		queue:    queue,
		reviews:  reviews,
		overview: overview,
		identity: identity,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Initiate godoc
// @Summary Run the review cycle
// @Description Creates due self and peer reviews for the given day. With async=true the run is queued.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body dto.InitiateCycleRequest false "Cycle options"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /review/initiate [post]
func (h *ReviewHandler) Initiate(c *gin.Context) {
	if h.cycle == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.InitiateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cycle payload"))
		return
	}
	now := h.clock()
	asOf := now
	if raw := strings.TrimSpace(req.AsOf); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid as_of, expected YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}

	if req.Async && h.queue != nil {
		jobID, err := h.queue.EnqueueCycle(asOf)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue review cycle"))
			return
		}
		response.Accepted(c, dto.InitiateCycleResponse{JobID: jobID, AsOf: asOf.Format("2006-01-02")})
		return
	}

	summary, err := h.cycle.RunCycle(c.Request.Context(), asOf, now)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// TokenStatus godoc
// @Summary Check a review link
// @Tags Reviews
// @Produce json
// @Param token path string true "Review token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /review/token/{token} [get]
func (h *ReviewHandler) TokenStatus(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	log, err := h.reviews.ValidateToken(c.Request.Context(), c.Param("token"), h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TokenStatusResponse{
		ReviewLogID: log.ID,
		SubjectID:   log.SubjectID,
		PeriodID:    log.PeriodID,
		TaskID:      log.TaskID,
		ReviewType:  log.ReviewType(),
		Status:      log.Status,
		ExpiresAt:   log.ExpiresAt,
	}, nil)
}

// Form godoc
// @Summary Fetch a review form
// @Tags Reviews
// @Produce json
// @Param token query string true "Review token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /review/form [get]
func (h *ReviewHandler) Form(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	form, err := h.reviews.FetchForm(c.Request.Context(), token, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Submit godoc
// @Summary Submit review answers
// @Description save_mode=partial stores answers and keeps the link open.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body dto.SubmitReviewRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /review/submit [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	result, err := h.reviews.SubmitAnswers(c.Request.Context(), req, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Notifications godoc
// @Summary List review notifications
// @Tags Reviews
// @Produce json
// @Param recipient_id query string true "Recipient employee ID"
// @Param unread_only query bool false "Only unread notifications"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /review/notifications [get]
func (h *ReviewHandler) Notifications(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query dto.NotificationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notification query"))
		return
	}
	items, pagination, err := h.reviews.ListNotifications(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// MarkNotificationRead godoc
// @Summary Mark a notification read
// @Tags Reviews
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /review/notifications/{id}/read [post]
func (h *ReviewHandler) MarkNotificationRead(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if err := h.reviews.MarkNotificationRead(c.Request.Context(), c.Param("id"), h.clock()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Overview godoc
// @Summary Review calendar of a subject
// @Tags Reviews
// @Produce json
// @Param subject query string true "Subject employee ID"
// @Success 200 {object} response.Envelope
// @Router /review/overview [get]
func (h *ReviewHandler) Overview(c *gin.Context) {
	if h.overview == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	subject := strings.TrimSpace(c.Query("subject"))
	if subject == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subject is required"))
		return
	}
	overview, err := h.overview.Overview(c.Request.Context(), subject, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// SyncSubject godoc
// @Summary Upsert an employee from the HR system
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body models.EmployeeRecord true "Employee"
// @Success 200 {object} response.Envelope
// @Router /review/subjects/sync [post]
func (h *ReviewHandler) SyncSubject(c *gin.Context) {
	if h.identity == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var record models.EmployeeRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid employee payload"))
		return
	}
	id, err := h.identity.SyncIdentity(c.Request.Context(), record)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"subject_id": id}, nil)
}
