package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

type identityDirectory interface {
	SyncIdentity(ctx context.Context, record models.EmployeeRecord) (string, error)
	GetEmployeeDepartment(ctx context.Context, employeeID string) (*string, error)
}

// IdentityService keeps the engine's employee directory in step with the HR system.
type IdentityService struct {
	directory identityDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIdentityService constructs the identity service.
func NewIdentityService(directory identityDirectory, validate *validator.Validate, logger *zap.Logger) *IdentityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{directory: directory, validator: validate, logger: logger}
}

// SyncIdentity upserts an employee record keyed by email and returns its id.
// Activation defaults to the hire date.
func (s *IdentityService) SyncIdentity(ctx context.Context, record models.EmployeeRecord) (string, error) {
	record.FullName = strings.TrimSpace(record.FullName)
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	if err := s.validator.Struct(record); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee record")
	}
	hire := DateOnly(record.HireDate)
	record.HireDate = hire
	if record.ActivationDate == nil {
		record.ActivationDate = &hire
	} else {
		activation := DateOnly(*record.ActivationDate)
		record.ActivationDate = &activation
	}
	if record.DismissalDate != nil {
		if record.DismissalDate.Before(*record.ActivationDate) {
			return "", appErrors.Clone(appErrors.ErrValidation, "dismissal date precedes activation date")
		}
		dismissal := DateOnly(*record.DismissalDate)
		record.DismissalDate = &dismissal
	}

	id, err := s.directory.SyncIdentity(ctx, record)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync employee")
	}
	s.logger.Info("employee synced", zap.String("employee_id", id))
	return id, nil
}

// GetEmployeeDepartment returns the employee's department, nil when unassigned.
func (s *IdentityService) GetEmployeeDepartment(ctx context.Context, employeeID string) (*string, error) {
	dept, err := s.directory.GetEmployeeDepartment(ctx, employeeID)
	if err != nil {
		return nil, asAppError(err, "failed to load employee department")
	}
	return dept, nil
}
