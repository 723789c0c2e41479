package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

const defaultCategory = "General"

type evaluationQuestionReader interface {
	ListByContexts(ctx context.Context, contexts []string, departmentID *string) ([]models.Question, error)
}

type evaluationDepartmentReader interface {
	GetEmployeeDepartment(ctx context.Context, employeeID string) (*string, error)
}

// EvaluationService scores free-form assessments against a question bank context.
type EvaluationService struct {
	questions   evaluationQuestionReader
	departments evaluationDepartmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(questions evaluationQuestionReader, departments evaluationDepartmentReader, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{questions: questions, departments: departments, validator: validate, logger: logger}
}

// EvaluateAnswers scores answers keyed by question id. Every question of the
// effective bank counts toward the maximum, answered or not.
func (s *EvaluationService) EvaluateAnswers(ctx context.Context, req dto.EvaluateAnswersRequest) (*models.EvaluationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	departmentID := req.DepartmentID
	if departmentID == nil && req.EmployeeID != nil {
		dept, err := s.departments.GetEmployeeDepartment(ctx, *req.EmployeeID)
		if err != nil {
			return nil, asAppError(err, "failed to resolve employee department")
		}
		departmentID = dept
	}

	contexts := []string{req.Context}
	bank, err := s.questions.ListByContexts(ctx, contexts, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	questions := assessmentQuestions(bank, req.Context, departmentID)
	if len(questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no questions for context %q", req.Context))
	}

	return evaluate(req.Context, questions, req.Answers, s.logger), nil
}

func evaluate(bankContext string, questions []models.Question, answers map[string]json.RawMessage, logger *zap.Logger) *models.EvaluationResult {
	result := &models.EvaluationResult{Context: bankContext, Answers: make([]models.QuestionEvaluation, 0, len(questions))}
	categories := make(map[string]*models.CategoryBreakdown)

	for _, q := range questions {
		value := decodeRaw(answers[q.ID])
		weight := q.EffectiveWeight()
		item := models.QuestionEvaluation{
			QuestionID: q.ID,
			Title:      q.Title,
			Category:   q.Category,
			AnswerType: q.AnswerType,
			Answer:     value,
			MaxScore:   q.MaxScore * float64(weight),
			Weight:     weight,
		}
		if item.Category == "" {
			item.Category = defaultCategory
		}

		if evaluator, err := evaluatorFor(q.AnswerType); err != nil {
			logger.Warn("question has unsupported answer type", zap.String("question_id", q.ID), zap.String("answer_type", string(q.AnswerType)))
		} else {
			scored := evaluator.Score(q, value)
			item.Score = round(scored.Score*float64(weight), 2)
			item.IsCorrect = scored.Correct
		}

		result.Answers = append(result.Answers, item)
		result.Score += item.Score
		result.MaxScore += item.MaxScore

		b, ok := categories[item.Category]
		if !ok {
			b = &models.CategoryBreakdown{Category: item.Category}
			categories[item.Category] = b
		}
		b.Score += item.Score
		b.MaxScore += item.MaxScore
		b.Questions++
	}

	result.Categories = make([]models.CategoryBreakdown, 0, len(categories))
	for _, b := range categories {
		b.Accuracy = accuracy(b.Score, b.MaxScore)
		b.Score = round(b.Score, 2)
		b.MaxScore = round(b.MaxScore, 2)
		result.Categories = append(result.Categories, *b)
	}
	sort.Slice(result.Categories, func(i, j int) bool {
		if result.Categories[i].Accuracy != result.Categories[j].Accuracy {
			return result.Categories[i].Accuracy < result.Categories[j].Accuracy
		}
		return result.Categories[i].Category < result.Categories[j].Category
	})

	result.Accuracy = accuracy(result.Score, result.MaxScore)
	result.Score = round(result.Score, 2)
	result.MaxScore = round(result.MaxScore, 2)
	return result
}

func accuracy(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return round(score/total*100, 2)
}
