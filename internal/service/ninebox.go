package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// Nine-box weights. Performance and potential are each a weighted sum of 0-100 signals.
const (
	weightPerfManager    = 0.35
	weightPerfFeedback   = 0.20
	weightPerfGoals      = 0.20
	weightPerfTasks      = 0.10
	weightPerfFinal      = 0.15
	weightPotSelf        = 0.30
	weightPotFeedback    = 0.20
	weightPotPotential   = 0.30
	weightPotRetention   = 0.20
	axisHighThreshold    = 70.0
	axisMidThreshold     = 40.0
	successorBonus       = 10.0
	defaultRetentionRisk = 50.0
)

var axisLabels = [3]string{"low", "mid", "high"}

// normalizeSignal maps a raw signal onto 0-100. Missing signals count as 0.
func normalizeSignal(s models.Signal) float64 {
	if !s.Present {
		return 0
	}
	switch s.Scale {
	case models.ScaleTen:
		return clamp(s.Value, 0, 10) * 10
	case models.ScaleHundred:
		return clamp(s.Value, 0, 100)
	default:
		if s.Value <= 10 {
			return clamp(s.Value, 0, 10) * 10
		}
		return clamp(s.Value, 0, 100)
	}
}

func completionRate(c models.Completion) float64 {
	if c.Total <= 0 {
		return 0
	}
	return clamp(float64(c.Completed)/float64(c.Total)*100, 0, 100)
}

// potentialSignal scales a 0-10 potential score and rewards named successors.
func potentialSignal(p *models.PotentialAssessment) float64 {
	if p == nil {
		return 0
	}
	var score float64
	if p.PotentialScore != nil {
		score = clamp(*p.PotentialScore*10, 0, 100)
	}
	if p.IsSuccessor {
		score = clamp(score+successorBonus, 0, 100)
	}
	return score
}

// retentionRiskPercent maps a 0-10 retention risk to a percentage; unknown risk is neutral.
func retentionRiskPercent(p *models.PotentialAssessment) float64 {
	if p == nil || p.RetentionRisk == nil {
		return defaultRetentionRisk
	}
	return clamp(*p.RetentionRisk/10*100, 0, 100)
}

// AxisPosition buckets a 0-100 score into 0 (low), 1 (mid) or 2 (high).
func AxisPosition(score float64) int {
	switch {
	case score >= axisHighThreshold:
		return 2
	case score >= axisMidThreshold:
		return 1
	default:
		return 0
	}
}

func buildNineBoxEntry(e models.Employee, sig models.NineBoxSignals) models.NineBoxEntry {
	scores := models.NineBoxScores{
		GoalCompletionRate:    round(completionRate(sig.Goals), 2),
		TaskCompletionRate:    round(completionRate(sig.Tasks), 2),
		FeedbackAverage:       round(normalizeSignal(sig.Feedback), 2),
		ManagerAverage:        round(normalizeSignal(sig.Manager), 2),
		SelfAssessmentAverage: round(normalizeSignal(sig.Self), 2),
		FinalReviewScore:      round(normalizeSignal(sig.FinalReview), 2),
		PotentialSignal:       round(potentialSignal(sig.Potential), 2),
		RetentionRisk:         round(retentionRiskPercent(sig.Potential), 2),
	}

	performance := round(
		scores.ManagerAverage*weightPerfManager+
			scores.FeedbackAverage*weightPerfFeedback+
			scores.GoalCompletionRate*weightPerfGoals+
			scores.TaskCompletionRate*weightPerfTasks+
			scores.FinalReviewScore*weightPerfFinal, 2)
	potential := round(
		scores.SelfAssessmentAverage*weightPotSelf+
			scores.FeedbackAverage*weightPotFeedback+
			scores.PotentialSignal*weightPotPotential+
			(100-scores.RetentionRisk)*weightPotRetention, 2)

	entry := models.NineBoxEntry{
		EmployeeID:       e.ID,
		EmployeeName:     e.FullName,
		DepartmentID:     e.DepartmentID,
		Department:       stringOr(e.DepartmentName, ""),
		Position:         stringOr(e.Position, ""),
		PerformanceScore: performance,
		PotentialScore:   potential,
		Scores:           scores,
		X:                AxisPosition(performance),
		Y:                AxisPosition(potential),
	}
	entry.Recommendations = recommendationsFor(entry)
	return entry
}

// recommendationsFor applies every matching rule, falling back to a low-priority keep-going note.
func recommendationsFor(entry models.NineBoxEntry) []models.Recommendation {
	s := entry.Scores
	var recs []models.Recommendation
	if entry.PotentialScore >= 70 && entry.PerformanceScore < 45 {
		recs = append(recs, models.Recommendation{
			Code:        "develop_hidden_potential",
			Priority:    models.PriorityHigh,
			Title:       "Develop hidden potential",
			Description: "High potential is not yet reflected in performance.",
			Actions:     []string{"Agree on a stretch assignment", "Pair with a mentor", "Review blockers monthly"},
		})
	}
	if s.RetentionRisk >= 60 {
		recs = append(recs, models.Recommendation{
			Code:        "retention_conversation",
			Priority:    models.PriorityHigh,
			Title:       "Hold a retention conversation",
			Description: "Retention risk is elevated.",
			Actions:     []string{"Schedule a stay interview", "Review compensation and growth path"},
		})
	}
	if entry.PerformanceScore >= 80 && entry.PotentialScore >= 80 {
		recs = append(recs, models.Recommendation{
			Code:        "promotion_readiness",
			Priority:    models.PriorityMedium,
			Title:       "Assess promotion readiness",
			Description: "Consistently high performance and potential.",
			Actions:     []string{"Nominate for the succession pool", "Expand scope of responsibility"},
		})
	}
	if s.GoalCompletionRate < 50 || s.TaskCompletionRate < 50 {
		recs = append(recs, models.Recommendation{
			Code:        "focus_on_delivery",
			Priority:    models.PriorityMedium,
			Title:       "Focus on delivery",
			Description: "Goal or task completion is below half.",
			Actions:     []string{"Re-prioritise open goals", "Set weekly delivery check-ins"},
		})
	}
	if s.ManagerAverage < 45 && entry.PerformanceScore < 45 {
		recs = append(recs, models.Recommendation{
			Code:        "improvement_plan",
			Priority:    models.PriorityHigh,
			Title:       "Start an improvement plan",
			Description: "Manager assessment and overall performance are both low.",
			Actions:     []string{"Define measurable improvement targets", "Agree on a review date"},
		})
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Code:        "maintain_momentum",
			Priority:    models.PriorityLow,
			Title:       "Maintain momentum",
			Description: "No risks detected.",
			Actions:     []string{"Keep regular one-on-ones"},
		})
	}
	return recs
}

func priorityRank(p models.RecommendationPriority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}

// aggregateRecommendations flattens entry recommendations ordered by priority,
// then potential and performance descending, capped at limit.
func aggregateRecommendations(entries []models.NineBoxEntry, limit int) []models.EmployeeRecommendation {
	out := []models.EmployeeRecommendation{}
	for _, e := range entries {
		for _, r := range e.Recommendations {
			out = append(out, models.EmployeeRecommendation{
				Recommendation:   r,
				EmployeeID:       e.EmployeeID,
				EmployeeName:     e.EmployeeName,
				Department:       e.Department,
				PerformanceScore: e.PerformanceScore,
				PotentialScore:   e.PotentialScore,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := priorityRank(a.Priority), priorityRank(b.Priority); pa != pb {
			return pa < pb
		}
		if a.PotentialScore != b.PotentialScore {
			return a.PotentialScore > b.PotentialScore
		}
		return a.PerformanceScore > b.PerformanceScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func nineBoxStats(entries []models.NineBoxEntry) models.NineBoxStats {
	stats := models.NineBoxStats{TotalEmployees: len(entries), Distribution: make(map[string]int, 9)}
	for _, x := range axisLabels {
		for _, y := range axisLabels {
			stats.Distribution[x+"-"+y] = 0
		}
	}
	if len(entries) == 0 {
		return stats
	}
	var perf, pot float64
	for _, e := range entries {
		perf += e.PerformanceScore
		pot += e.PotentialScore
		stats.Distribution[distributionKey(e.X, e.Y)]++
	}
	stats.AveragePerformance = round(perf/float64(len(entries)), 2)
	stats.AveragePotential = round(pot/float64(len(entries)), 2)
	return stats
}

func distributionKey(x, y int) string {
	return fmt.Sprintf("%s-%s", axisLabels[x], axisLabels[y])
}

// buildNineBox computes the entries, stats and recommendations for employees.
func buildNineBox(employees []models.Employee, signals map[string]models.NineBoxSignals, maxRecommendations int) ([]models.NineBoxEntry, models.NineBoxStats, []models.EmployeeRecommendation) {
	entries := make([]models.NineBoxEntry, 0, len(employees))
	for _, e := range employees {
		entries = append(entries, buildNineBoxEntry(e, signals[e.ID]))
	}
	return entries, nineBoxStats(entries), aggregateRecommendations(entries, maxRecommendations)
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
