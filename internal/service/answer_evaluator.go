package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/perf-review-api/internal/dto"
	"github.com/noah-isme/perf-review-api/internal/models"
	appErrors "github.com/noah-isme/perf-review-api/pkg/errors"
)

// objectiveFullGrade is the grade stored for a correct objective answer.
const objectiveFullGrade = 10

// gradedAnswer is a submitted answer after validation.
type gradedAnswer struct {
	Grade     int
	Value     types.JSONText
	IsCorrect *bool
}

// questionScore is the assessment score of one question before weighting.
type questionScore struct {
	Score   float64
	Correct bool
}

// answerEvaluator validates skill review answers and scores assessment answers
// for one answer type.
type answerEvaluator interface {
	Grade(q models.Question, in dto.AnswerInput) (gradedAnswer, error)
	Score(q models.Question, value interface{}) questionScore
}

var answerEvaluators = map[models.AnswerType]answerEvaluator{
	models.AnswerTypeScale:        scaleEvaluator{},
	models.AnswerTypeNumeric:      numericEvaluator{},
	models.AnswerTypeSingleChoice: choiceEvaluator{},
	models.AnswerTypeBoolean:      booleanEvaluator{},
}

func evaluatorFor(t models.AnswerType) (answerEvaluator, error) {
	evaluator, ok := answerEvaluators[t]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported answer type %q", t))
	}
	return evaluator, nil
}

type scaleEvaluator struct{}

func (scaleEvaluator) Grade(q models.Question, in dto.AnswerInput) (gradedAnswer, error) {
	var value float64
	switch {
	case in.Grade != nil:
		value = float64(*in.Grade)
	case hasRaw(in.Answer):
		parsed, ok := parseNumber(decodeRaw(in.Answer))
		if !ok {
			return gradedAnswer{}, invalidAnswer(q, "expects a number")
		}
		value = parsed
	default:
		return gradedAnswer{}, invalidAnswer(q, "requires a grade")
	}
	if value != math.Trunc(value) {
		return gradedAnswer{}, invalidAnswer(q, "expects a whole number")
	}
	lo, hi := scaleBounds(q)
	if value < float64(lo) || value > float64(hi) {
		return gradedAnswer{}, invalidAnswer(q, fmt.Sprintf("grade must be between %d and %d", lo, hi))
	}
	grade := int(value)
	return gradedAnswer{Grade: grade, Value: types.JSONText(strconv.Itoa(grade))}, nil
}

func (scaleEvaluator) Score(q models.Question, value interface{}) questionScore {
	limit := q.MaxScore
	n, ok := parseNumber(value)
	if !ok {
		return questionScore{}
	}
	score := clamp(n, 0, limit)
	return questionScore{Score: score, Correct: limit > 0 && score >= 0.7*limit}
}

type numericEvaluator struct{}

func (numericEvaluator) Grade(q models.Question, in dto.AnswerInput) (gradedAnswer, error) {
	var value float64
	switch {
	case hasRaw(in.Answer):
		parsed, ok := parseNumber(decodeRaw(in.Answer))
		if !ok {
			return gradedAnswer{}, invalidAnswer(q, "expects a number")
		}
		value = parsed
	case in.Grade != nil:
		value = float64(*in.Grade)
	default:
		return gradedAnswer{}, invalidAnswer(q, "requires an answer")
	}
	encoded, _ := json.Marshal(value)
	out := gradedAnswer{Value: types.JSONText(encoded)}
	if expected, ok := parseNumber(decodeRaw(json.RawMessage(q.CorrectAnswer))); ok && q.HasCorrectAnswer() {
		out.setCorrect(math.Abs(value-expected) <= q.Tolerance)
	}
	return out, nil
}

func (numericEvaluator) Score(q models.Question, value interface{}) questionScore {
	actual, ok := parseNumber(value)
	if !ok || !q.HasCorrectAnswer() {
		return questionScore{}
	}
	expected, ok := parseNumber(decodeRaw(json.RawMessage(q.CorrectAnswer)))
	if !ok {
		return questionScore{}
	}
	return fullOrNothing(q, math.Abs(actual-expected) <= q.Tolerance)
}

type choiceEvaluator struct{}

func (choiceEvaluator) Grade(q models.Question, in dto.AnswerInput) (gradedAnswer, error) {
	if !hasRaw(in.Answer) {
		return gradedAnswer{}, invalidAnswer(q, "requires an option")
	}
	value := decodeRaw(in.Answer)
	switch value.(type) {
	case string, float64:
	default:
		return gradedAnswer{}, invalidAnswer(q, "expects a single option")
	}
	if options, ok := decodeRaw(json.RawMessage(q.AnswerOptions)).([]interface{}); ok && len(options) > 0 {
		if !containsScalar(options, value) {
			return gradedAnswer{}, invalidAnswer(q, "option is not offered")
		}
	}
	out := gradedAnswer{Value: types.JSONText(compactRaw(in.Answer))}
	if q.HasCorrectAnswer() {
		out.setCorrect(choiceMatches(decodeRaw(json.RawMessage(q.CorrectAnswer)), value))
	}
	return out, nil
}

func (choiceEvaluator) Score(q models.Question, value interface{}) questionScore {
	if value == nil || !q.HasCorrectAnswer() {
		return questionScore{}
	}
	return fullOrNothing(q, choiceMatches(decodeRaw(json.RawMessage(q.CorrectAnswer)), value))
}

type booleanEvaluator struct{}

func (booleanEvaluator) Grade(q models.Question, in dto.AnswerInput) (gradedAnswer, error) {
	var raw interface{}
	switch {
	case hasRaw(in.Answer):
		raw = decodeRaw(in.Answer)
	case in.Grade != nil:
		raw = float64(*in.Grade)
	}
	value, ok := parseBool(raw)
	if !ok {
		return gradedAnswer{}, invalidAnswer(q, "expects true or false")
	}
	out := gradedAnswer{Value: types.JSONText(strconv.FormatBool(value))}
	if expected, ok := parseBool(decodeRaw(json.RawMessage(q.CorrectAnswer))); ok {
		out.setCorrect(value == expected)
	}
	return out, nil
}

func (booleanEvaluator) Score(q models.Question, value interface{}) questionScore {
	actual, ok := parseBool(value)
	if !ok {
		return questionScore{}
	}
	expected, ok := parseBool(decodeRaw(json.RawMessage(q.CorrectAnswer)))
	if !ok {
		return questionScore{}
	}
	return fullOrNothing(q, actual == expected)
}

func (g *gradedAnswer) setCorrect(correct bool) {
	g.IsCorrect = &correct
	if correct {
		g.Grade = objectiveFullGrade
	}
}

func fullOrNothing(q models.Question, correct bool) questionScore {
	if !correct {
		return questionScore{}
	}
	return questionScore{Score: q.MaxScore, Correct: true}
}

func scaleBounds(q models.Question) (int, int) {
	lo, hi := q.ScaleMin, q.ScaleMax
	if hi <= lo {
		return 0, 10
	}
	return lo, hi
}

func invalidAnswer(q models.Question, reason string) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %s %s", q.ID, reason))
}

func hasRaw(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func compactRaw(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// decodeRaw returns the generic JSON value of raw, or nil when absent or malformed.
func decodeRaw(raw json.RawMessage) interface{} {
	if !hasRaw(raw) {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return value
}

// parseNumber accepts JSON numbers and numeric strings, with a comma as decimal separator.
func parseNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func parseBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}

// choiceMatches compares against a single expected option or membership in a list of them.
func choiceMatches(expected, actual interface{}) bool {
	if list, ok := expected.([]interface{}); ok {
		return containsScalar(list, actual)
	}
	return scalarEqual(expected, actual)
}

func containsScalar(list []interface{}, value interface{}) bool {
	for _, item := range list {
		if scalarEqual(item, value) {
			return true
		}
	}
	return false
}

func scalarEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
