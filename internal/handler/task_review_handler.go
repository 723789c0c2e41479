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

type taskReviewService interface {
	CreateGoal(ctx context.Context, req dto.CreateGoalRequest, now time.Time) (*dto.CreateGoalResponse, error)
	TriggerReviews(ctx context.Context, taskID *string, asOf, now time.Time) ([]models.TaskReviewSummary, error)
	FetchForm(ctx context.Context, token string, now time.Time) (*dto.TaskReviewForm, error)
	SubmitAnswers(ctx context.Context, req dto.SubmitTaskReviewRequest, now time.Time) (*dto.SubmitTaskReviewResponse, error)
}

// TaskReviewHandler exposes goals and the reviews of finished tasks.
type TaskReviewHandler struct {
	tasks taskReviewService
	clock func() time.Time
}

// NewTaskReviewHandler constructs the handler.
func NewTaskReviewHandler(tasks taskReviewService) *TaskReviewHandler {
	return &TaskReviewHandler{tasks: tasks, clock: func() time.Time { return time.Now().UTC() }}
}

// CreateGoal godoc
// @Summary Create a goal with tasks
// @Description Each task is reviewed once its end date is reached.
// @Tags Task Reviews
// @Accept json
// @Produce json
// @Param payload body dto.CreateGoalRequest true "Goal"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /review/goals [post]
func (h *TaskReviewHandler) CreateGoal(c *gin.Context) {
	if h.tasks == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid goal payload"))
		return
	}
	res, err := h.tasks.CreateGoal(c.Request.Context(), req, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res, nil)
}

// Initiate godoc
// @Summary Start task reviews
// @Description Opens reviews for one task, or for every active task that ended on or before as_of.
// @Tags Task Reviews
// @Accept json
// @Produce json
// @Param payload body dto.InitiateTaskReviewRequest false "Task review options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /review/tasks/initiate [post]
func (h *TaskReviewHandler) Initiate(c *gin.Context) {
	if h.tasks == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.InitiateTaskReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid task review payload"))
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
	summaries, err := h.tasks.TriggerReviews(c.Request.Context(), req.TaskID, asOf, now)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Form godoc
// @Summary Fetch a task review form
// @Tags Task Reviews
// @Produce json
// @Param token query string true "Review token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /review/tasks/form [get]
func (h *TaskReviewHandler) Form(c *gin.Context) {
	if h.tasks == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	form, err := h.tasks.FetchForm(c.Request.Context(), token, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Submit godoc
// @Summary Submit a task review
// @Tags Task Reviews
// @Accept json
// @Produce json
// @Param payload body dto.SubmitTaskReviewRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /review/tasks/submit [post]
func (h *TaskReviewHandler) Submit(c *gin.Context) {
	if h.tasks == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.SubmitTaskReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	result, err := h.tasks.SubmitAnswers(c.Request.Context(), req, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
