package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
	"github.com/noah-isme/perf-review-api/pkg/response"
)

type answerEvaluator interface {
	EvaluateAnswers(ctx context.Context, req dto.EvaluateAnswersRequest) (*models.EvaluationResult, error)
}

// EvaluationHandler scores standalone assessments.
type EvaluationHandler struct {
	svc answerEvaluator
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(svc answerEvaluator) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

// Evaluate godoc
// @Summary Score assessment answers
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body dto.EvaluateAnswersRequest true "Answers keyed by question ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assessments/evaluate [post]
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	if h.svc == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.EvaluateAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assessment payload"))
		return
	}
	result, err := h.svc.EvaluateAnswers(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
