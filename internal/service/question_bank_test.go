package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/perf-review-api/internal/models"
)

func strPtr(v string) *string { return &v }

func questionIDs(questions []models.Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestEffectiveQuestionsDepartmentOverride(t *testing.T) {
	questions := []models.Question{
		{ID: "g1", Context: "both", DisplayOrder: 1, IsActive: true},
		{ID: "g2", Context: "both", DisplayOrder: 2, IsActive: true},
		{ID: "g2b", Context: "self", DisplayOrder: 2, IsActive: true},
		{ID: "d2", Context: "both", DisplayOrder: 2, DepartmentID: strPtr("dep-1"), IsActive: true},
		{ID: "o3", Context: "both", DisplayOrder: 3, DepartmentID: strPtr("dep-2"), IsActive: true},
		{ID: "p4", Context: "peer", DisplayOrder: 4, IsActive: true},
	}

	self := effectiveQuestions(questions, skillContexts(models.ReviewTypeSelf), strPtr("dep-1"))
	assert.Equal(t, []string{"g1", "d2"}, questionIDs(self))

	peer := effectiveQuestions(questions, skillContexts(models.ReviewTypePeer), nil)
	assert.Equal(t, []string{"g1", "g2", "p4"}, questionIDs(peer))
}

func TestEffectiveQuestionsSkipsInactive(t *testing.T) {
	questions := []models.Question{
		{ID: "a", Context: "both", DisplayOrder: 1, IsActive: false},
		{ID: "b", Context: "both", DisplayOrder: 1, IsActive: true},
		{ID: "c", Context: "onboarding", DisplayOrder: 0, IsActive: true},
	}

	assert.Equal(t, []string{"b"}, questionIDs(effectiveQuestions(questions, skillContexts(models.ReviewTypeSelf), nil)))
	assert.Equal(t, []string{"c"}, questionIDs(effectiveQuestions(questions, []string{"onboarding"}, nil)))
}

func TestAssessmentQuestionsKeepOnePerOrder(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	questions := []models.Question{
		{ID: "g1-new", Context: "onboarding", DisplayOrder: 1, IsActive: true, CreatedAt: newer},
		{ID: "g1-old", Context: "onboarding", DisplayOrder: 1, IsActive: true, CreatedAt: older},
		{ID: "g2", Context: "onboarding", DisplayOrder: 2, IsActive: true, CreatedAt: older},
		{ID: "g2b", Context: "onboarding", DisplayOrder: 2, IsActive: true, CreatedAt: newer},
		{ID: "d2", Context: "onboarding", DisplayOrder: 2, DepartmentID: strPtr("dep-1"), IsActive: true, CreatedAt: older},
		{ID: "x3", Context: "exit", DisplayOrder: 3, IsActive: true},
	}

	assert.Equal(t, []string{"g1-new", "g2b"}, questionIDs(assessmentQuestions(questions, "onboarding", nil)))
	assert.Equal(t, []string{"g1-new", "d2"}, questionIDs(assessmentQuestions(questions, "onboarding", strPtr("dep-1"))))
	assert.Empty(t, assessmentQuestions(questions, "missing", nil))
}
