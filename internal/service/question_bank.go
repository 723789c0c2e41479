package service

import (
	"sort"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// skillContexts returns the question contexts shown for a review type.
func skillContexts(reviewType models.ReviewType) []string {
	if reviewType == models.ReviewTypeSelf {
		return []string{models.QuestionContextSelf, models.QuestionContextBoth}
	}
	return []string{models.QuestionContextPeer, models.QuestionContextBoth}
}

// effectiveQuestions selects the questions of the given contexts that apply to
// departmentID. A department question replaces every global question sharing
// its display order; questions of other departments are dropped.
func effectiveQuestions(questions []models.Question, contexts []string, departmentID *string) []models.Question {
	allowed := make(map[string]struct{}, len(contexts))
	for _, c := range contexts {
		allowed[c] = struct{}{}
	}

	overridden := make(map[int]struct{})
	var global, department []models.Question
	for _, q := range questions {
		if _, ok := allowed[q.Context]; !ok || !q.IsActive {
			continue
		}
		switch {
		case q.DepartmentID == nil:
			global = append(global, q)
		case departmentID != nil && *q.DepartmentID == *departmentID:
			department = append(department, q)
			overridden[q.DisplayOrder] = struct{}{}
		}
	}

	out := make([]models.Question, 0, len(global)+len(department))
	for _, q := range global {
		if _, ok := overridden[q.DisplayOrder]; !ok {
			out = append(out, q)
		}
	}
	out = append(out, department...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// assessmentQuestions resolves a single-context assessment bank to one
// question per display order. A department question wins its position;
// otherwise the most recently created global question does.
func assessmentQuestions(questions []models.Question, bankContext string, departmentID *string) []models.Question {
	candidates := effectiveQuestions(questions, []string{bankContext}, departmentID)

	byOrder := make(map[int]models.Question, len(candidates))
	orders := make([]int, 0, len(candidates))
	for _, q := range candidates {
		if _, seen := byOrder[q.DisplayOrder]; !seen {
			orders = append(orders, q.DisplayOrder)
		}
		// candidates are sorted oldest first within an order
		byOrder[q.DisplayOrder] = q
	}

	sort.Ints(orders)
	out := make([]models.Question, 0, len(orders))
	for _, order := range orders {
		out = append(out, byOrder[order])
	}
	return out
}
