package models

// QuestionEvaluation is the scored result of one assessment question.
type QuestionEvaluation struct {
	QuestionID string      `json:"question_id"`
	Title      string      `json:"title"`
	Category   string      `json:"category"`
	AnswerType AnswerType  `json:"answer_type"`
	Answer     interface{} `json:"answer"`
	Score      float64     `json:"score"`
	MaxScore   float64     `json:"max_score"`
	Weight     int         `json:"weight"`
	IsCorrect  bool        `json:"is_correct"`
}

// CategoryBreakdown aggregates evaluation scores per category.
type CategoryBreakdown struct {
	Category  string  `json:"category"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Accuracy  float64 `json:"accuracy"`
	Questions int     `json:"questions"`
}

// EvaluationResult is the outcome of scoring a free-form assessment.
type EvaluationResult struct {
	Context    string               `json:"context"`
	Answers    []QuestionEvaluation `json:"answers"`
	Score      float64              `json:"score"`
	MaxScore   float64              `json:"max_score"`
	Accuracy   float64              `json:"accuracy"`
	Categories []CategoryBreakdown  `json:"categories"`
}
