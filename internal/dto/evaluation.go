package dto

import "encoding/json"

// EvaluateAnswersRequest scores a free-form assessment against a question bank context.
type EvaluateAnswersRequest struct {
	Context      string                     `json:"context" validate:"required"`
	DepartmentID *string                    `json:"department_id,omitempty" validate:"omitempty,uuid"`
	EmployeeID   *string                    `json:"employee_id,omitempty" validate:"omitempty,uuid"`
	Answers      map[string]json.RawMessage `json:"answers" swaggertype:"object"`
}
