package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

type tokenLogStore interface {
	FindByToken(ctx context.Context, token string) (*models.ReviewLog, error)
	ExpireIfOpen(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) (bool, error)
}

// tokenGuard enforces the review link lifecycle shared by skill and task reviews.
type tokenGuard struct {
	logs    tokenLogStore
	metrics *MetricsService
	logger  *zap.Logger
}

func (g tokenGuard) validate(ctx context.Context, token string, now time.Time) (*models.ReviewLog, error) {
	log, err := g.lookup(ctx, token)
	if err != nil {
		g.metrics.RecordTokenCheck(resultLabel(err))
		return nil, err
	}
	if err := g.ensureUsable(ctx, nil, log, now); err != nil {
		g.metrics.RecordTokenCheck(resultLabel(err))
		return nil, err
	}
	g.metrics.RecordTokenCheck("valid")
	return log, nil
}

func (g tokenGuard) lookup(ctx context.Context, token string) (*models.ReviewLog, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, appErrors.ErrInvalidToken
	}
	log, err := g.logs.FindByToken(ctx, token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if log == nil {
		return nil, appErrors.ErrInvalidToken
	}
	return log, nil
}

// ensureUsable rejects completed logs and expires stale ones.
func (g tokenGuard) ensureUsable(ctx context.Context, exec sqlx.ExtContext, log *models.ReviewLog, now time.Time) error {
	if log.Status == models.ReviewStatusCompleted {
		return appErrors.ErrAlreadySubmitted
	}
	if !log.IsExpiredAt(now) {
		return nil
	}
	flipped, err := g.logs.ExpireIfOpen(ctx, exec, log.ID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire review")
	}
	if flipped {
		g.logger.Info("review link expired", zap.String("review_log_id", log.ID), zap.Time("expires_at", log.ExpiresAt))
	}
	return appErrors.Clone(appErrors.ErrLinkExpired, fmt.Sprintf("link expired at %s", log.ExpiresAt.UTC().Format(time.RFC3339)))
}

func requireContext(log *models.ReviewLog, want models.ReviewContext) error {
	if log.Context != want {
		return appErrors.Clone(appErrors.ErrInvalidContext, fmt.Sprintf("token does not belong to a %s review", want))
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, appErrors.ErrAlreadySubmitted):
		return "submitted"
	case errors.Is(err, appErrors.ErrLinkExpired):
		return "expired"
	}
	return "error"
}
