package service

import (
	"encoding/json"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

func TestScaleEvaluatorGrade(t *testing.T) {
	q := models.Question{ID: "q1", AnswerType: models.AnswerTypeScale, ScaleMin: 1, ScaleMax: 5}
	cases := []struct {
		name    string
		in      dto.AnswerInput
		want    int
		wantErr bool
	}{
		{name: "grade", in: dto.AnswerInput{Grade: gradeOf(4)}, want: 4},
		{name: "numeric string", in: dto.AnswerInput{Answer: json.RawMessage(`"3"`)}, want: 3},
		{name: "below range", in: dto.AnswerInput{Grade: gradeOf(0)}, wantErr: true},
		{name: "above range", in: dto.AnswerInput{Grade: gradeOf(6)}, wantErr: true},
		{name: "fraction", in: dto.AnswerInput{Answer: json.RawMessage(`2.5`)}, wantErr: true},
		{name: "missing", in: dto.AnswerInput{}, wantErr: true},
		{name: "text", in: dto.AnswerInput{Answer: json.RawMessage(`"great"`)}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := scaleEvaluator{}.Grade(q, tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, appErrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Grade)
			assert.Nil(t, got.IsCorrect)
		})
	}
}

func TestScaleEvaluatorDefaultsBounds(t *testing.T) {
	q := models.Question{ID: "q1", AnswerType: models.AnswerTypeScale}
	_, err := scaleEvaluator{}.Grade(q, dto.AnswerInput{Grade: gradeOf(10)})
	assert.NoError(t, err)
	_, err = scaleEvaluator{}.Grade(q, dto.AnswerInput{Grade: gradeOf(11)})
	assert.Error(t, err)
}

func TestNumericEvaluatorTolerance(t *testing.T) {
	q := models.Question{ID: "q2", AnswerType: models.AnswerTypeNumeric, CorrectAnswer: types.JSONText(`3.14`), Tolerance: 0.01, MaxScore: 5}

	got, err := numericEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`"3,145"`)})
	require.NoError(t, err)
	require.NotNil(t, got.IsCorrect)
	assert.True(t, *got.IsCorrect)
	assert.Equal(t, objectiveFullGrade, got.Grade)

	got, err = numericEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`3.2`)})
	require.NoError(t, err)
	assert.False(t, *got.IsCorrect)
	assert.Zero(t, got.Grade)

	assert.Equal(t, questionScore{Score: 5, Correct: true}, numericEvaluator{}.Score(q, "3.14"))
	assert.Equal(t, questionScore{}, numericEvaluator{}.Score(q, 4.0))
	assert.Equal(t, questionScore{}, numericEvaluator{}.Score(q, "abc"))
}

func TestNumericEvaluatorWithoutCorrectAnswer(t *testing.T) {
	q := models.Question{ID: "q2", AnswerType: models.AnswerTypeNumeric, CorrectAnswer: types.JSONText(`null`)}
	got, err := numericEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`42`)})
	require.NoError(t, err)
	assert.Nil(t, got.IsCorrect)
	assert.Zero(t, got.Grade)
	assert.Equal(t, "42", got.Value.String())
}

func TestChoiceEvaluator(t *testing.T) {
	q := models.Question{
		ID:            "q3",
		AnswerType:    models.AnswerTypeSingleChoice,
		AnswerOptions: types.JSONText(`["go","rust","java"]`),
		CorrectAnswer: types.JSONText(`["go","rust"]`),
		MaxScore:      2,
	}

	got, err := choiceEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`"rust"`)})
	require.NoError(t, err)
	assert.True(t, *got.IsCorrect)
	assert.Equal(t, `"rust"`, got.Value.String())

	got, err = choiceEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`"java"`)})
	require.NoError(t, err)
	assert.False(t, *got.IsCorrect)

	_, err = choiceEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`"cobol"`)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = choiceEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`["go"]`)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, questionScore{Score: 2, Correct: true}, choiceEvaluator{}.Score(q, "go"))
	assert.Equal(t, questionScore{}, choiceEvaluator{}.Score(q, nil))
}

func TestBooleanEvaluator(t *testing.T) {
	q := models.Question{ID: "q4", AnswerType: models.AnswerTypeBoolean, CorrectAnswer: types.JSONText(`true`), MaxScore: 1}

	for _, raw := range []string{`true`, `"yes"`, `"1"`, `1`} {
		got, err := booleanEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(raw)})
		require.NoError(t, err, raw)
		assert.True(t, *got.IsCorrect, raw)
		assert.Equal(t, "true", got.Value.String())
	}

	got, err := booleanEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`"no"`)})
	require.NoError(t, err)
	assert.False(t, *got.IsCorrect)

	_, err = booleanEvaluator{}.Grade(q, dto.AnswerInput{Answer: json.RawMessage(`"maybe"`)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, questionScore{Score: 1, Correct: true}, booleanEvaluator{}.Score(q, "TRUE"))
}

func TestScaleEvaluatorScore(t *testing.T) {
	q := models.Question{AnswerType: models.AnswerTypeScale, MaxScore: 10}
	assert.Equal(t, questionScore{Score: 7, Correct: true}, scaleEvaluator{}.Score(q, 7.0))
	assert.Equal(t, questionScore{Score: 6.9, Correct: false}, scaleEvaluator{}.Score(q, "6,9"))
	assert.Equal(t, questionScore{Score: 10, Correct: true}, scaleEvaluator{}.Score(q, 14.0))
	assert.Equal(t, questionScore{Score: 0, Correct: false}, scaleEvaluator{}.Score(q, -3.0))
}

func TestEvaluatorForUnknownType(t *testing.T) {
	_, err := evaluatorFor(models.AnswerType("essay"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
