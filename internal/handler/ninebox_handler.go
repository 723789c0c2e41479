package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/middleware"
	"github.com/noah-isme/perf-review-api/internal/models"
	"github.com/noah-isme/perf-review-api/internal/service"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
	"github.com/noah-isme/perf-review-api/pkg/response"
)

type nineBoxProvider interface {
	GetMatrix(ctx context.Context, query dto.NineBoxQuery, now time.Time) (*models.NineBoxMatrix, bool, error)
	Export(ctx context.Context, query dto.NineBoxExportQuery, now time.Time) (*service.NineBoxExport, error)
}

// NineBoxHandler serves the talent matrix.
type NineBoxHandler struct {
	svc   nineBoxProvider
	clock func() time.Time
}

// NewNineBoxHandler constructs the handler.
func NewNineBoxHandler(svc nineBoxProvider) *NineBoxHandler {
	return &NineBoxHandler{svc: svc, clock: func() time.Time { return time.Now().UTC() }}
}

// Matrix godoc
// @Summary Nine-box talent matrix
// @Tags NineBox
// @Produce json
// @Param scope query string false "global or department:<id>"
// @Param ttlMinutes query int false "Snapshot freshness window in minutes"
// @Param refresh query bool false "Ignore stored snapshots"
// @Success 200 {object} response.Envelope
// @Router /nine-box/matrix [get]
func (h *NineBoxHandler) Matrix(c *gin.Context) {
	if h.svc == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query dto.NineBoxQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid nine-box query"))
		return
	}
	if raw := c.Query("ttlMinutes"); raw != "" && query.TTLMinutes == 0 {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ttlMinutes must be an integer"))
			return
		}
		query.TTLMinutes = minutes
	}
	matrix, reused, err := h.svc.GetMatrix(c.Request.Context(), query, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "snapshot_reused", reused)
	response.JSON(c, http.StatusOK, matrix, nil, middleware.ResponseMeta(c))
}

// Export godoc
// @Summary Download the nine-box matrix
// @Tags NineBox
// @Produce text/csv
// @Produce application/pdf
// @Param scope query string false "global or department:<id>"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /nine-box/export [get]
func (h *NineBoxHandler) Export(c *gin.Context) {
	if h.svc == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query dto.NineBoxExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.svc.Export(c.Request.Context(), query, h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
