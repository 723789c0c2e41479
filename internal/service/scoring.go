package service

import (
	"math"
	"sort"

	"github.com/noah-isme/perf-review-api/internal/models"
)

// Adaptation index tuning.
const (
	adaptationScale           = 10.0
	negativeDeltaThreshold    = -1.0
	negativeDeltaFactor       = 2.5
	positiveDeltaThreshold    = 1.0
	positiveDeltaFactor       = 1.5
	trendFactor               = 3.0
	unansweredRatioThreshold  = 0.2
	missingAnswersAdjustment  = -10.0
	adaptationMin             = 0.0
	adaptationMax             = 100.0
	adaptationYellowThreshold = 50.0
	adaptationGreenThreshold  = 70.0
	adaptationBlueThreshold   = 86.0
)

// weightedAverage returns Σ(grade×weight)/Σweight, or nil without rows.
func weightedAverage(rows []models.ScoredAnswer) *float64 {
	var sum, weights float64
	for _, r := range rows {
		w := float64(r.Weight)
		if w <= 0 {
			w = 1
		}
		sum += float64(r.Grade) * w
		weights += w
	}
	if weights == 0 {
		return nil
	}
	avg := round(sum/weights, 2)
	return &avg
}

type bucketKey struct {
	skillType models.SkillType
	category  string
	periodID  string
}

type bucket struct {
	score models.CategoryPeriodScore
	self  []models.ScoredAnswer
	peer  []models.ScoredAnswer
}

// buildSkillAnalytics averages answered rows per (skill type, category, period)
// split by self and peer respondents, and computes period-over-period trends
// within each category.
func buildSkillAnalytics(filter models.AnalyticsFilter, rows []models.ScoredAnswer) models.SkillAnalytics {
	result := models.SkillAnalytics{
		SubjectID: filter.SubjectID,
		PeriodID:  filter.PeriodID,
		Type:      normalizeAnalyticsType(filter.Type),
		Periods:   []models.PeriodRef{},
		Entries:   []models.CategoryPeriodScore{},
	}

	buckets := make(map[bucketKey]*bucket)
	periods := make(map[string]models.PeriodRef)
	var allSelf, allPeer []models.ScoredAnswer
	for _, r := range rows {
		if !r.Answered {
			continue
		}
		category := r.Category
		if category == "" {
			category = defaultCategory
		}
		key := bucketKey{skillType: r.SkillType, category: category, periodID: r.PeriodID}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{score: models.CategoryPeriodScore{
				SkillType:   r.SkillType,
				Category:    category,
				PeriodID:    r.PeriodID,
				PeriodName:  r.PeriodName,
				MonthOffset: r.MonthOffset,
			}}
			buckets[key] = b
		}
		periods[r.PeriodID] = models.PeriodRef{ID: r.PeriodID, Name: r.PeriodName, MonthOffset: r.MonthOffset}
		if r.RespondentID == filter.SubjectID {
			b.self = append(b.self, r)
			allSelf = append(allSelf, r)
		} else {
			b.peer = append(b.peer, r)
			allPeer = append(allPeer, r)
		}
	}

	for _, b := range buckets {
		b.score.SelfAverage = weightedAverage(b.self)
		b.score.PeerAverage = weightedAverage(b.peer)
		b.score.SelfCount = len(b.self)
		b.score.PeerCount = len(b.peer)
		result.Entries = append(result.Entries, b.score)
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		a, b := result.Entries[i], result.Entries[j]
		if a.SkillType != b.SkillType {
			return a.SkillType < b.SkillType
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.MonthOffset != b.MonthOffset {
			return a.MonthOffset < b.MonthOffset
		}
		return a.PeriodID < b.PeriodID
	})

	for i := 1; i < len(result.Entries); i++ {
		prev, cur := result.Entries[i-1], &result.Entries[i]
		if prev.SkillType != cur.SkillType || prev.Category != cur.Category {
			continue
		}
		cur.TrendSelf = difference(cur.SelfAverage, prev.SelfAverage)
		cur.TrendPeer = difference(cur.PeerAverage, prev.PeerAverage)
	}

	for _, p := range periods {
		result.Periods = append(result.Periods, p)
	}
	sort.Slice(result.Periods, func(i, j int) bool {
		if result.Periods[i].MonthOffset != result.Periods[j].MonthOffset {
			return result.Periods[i].MonthOffset < result.Periods[j].MonthOffset
		}
		return result.Periods[i].ID < result.Periods[j].ID
	})

	result.OverallSelf = weightedAverage(allSelf)
	result.OverallPeer = weightedAverage(allPeer)
	result.Delta = difference(result.OverallPeer, result.OverallSelf)
	return result
}

// difference returns a-b rounded to two places when both are present.
func difference(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := round(*a-*b, 2)
	return &d
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// computeAdaptationIndex folds overall scores, self/peer gap, trends and
// unanswered slots into a 0-100 index.
func computeAdaptationIndex(analytics models.SkillAnalytics, stats models.AnswerStats) models.AdaptationIndex {
	c := models.AdaptationComponents{
		OverallSelf: analytics.OverallSelf,
		OverallPeer: analytics.OverallPeer,
		Delta:       analytics.Delta,
	}

	// Absent overalls count as zero.
	self, peer := valueOrZero(analytics.OverallSelf), valueOrZero(analytics.OverallPeer)
	c.Base = (self + peer) / 2 * adaptationScale
	if analytics.OverallSelf != nil || analytics.OverallPeer != nil {
		d := round(peer-self, 2)
		c.Delta = &d
		switch {
		case d < negativeDeltaThreshold:
			c.DeltaAdjustment = -math.Abs(d) * negativeDeltaFactor
		case d > positiveDeltaThreshold:
			c.DeltaAdjustment = math.Abs(d) * positiveDeltaFactor
		}
	}

	for _, e := range analytics.Entries {
		if e.TrendSelf != nil {
			c.TrendSum += *e.TrendSelf
		}
		if e.TrendPeer != nil {
			c.TrendSum += *e.TrendPeer
		}
	}
	c.TrendSum = round(c.TrendSum, 2)
	c.TrendAdjustment = round(c.TrendSum*trendFactor, 2)

	if stats.Total > 0 {
		c.UnansweredRatio = round(float64(stats.Unanswered())/float64(stats.Total), 4)
		if c.UnansweredRatio > unansweredRatioThreshold {
			c.MissingAdjustment = missingAnswersAdjustment
		}
	}

	value := clamp(c.Base+c.DeltaAdjustment+c.TrendAdjustment+c.MissingAdjustment, adaptationMin, adaptationMax)
	value = round(value, 1)
	c.Base = round(c.Base, 2)
	c.DeltaAdjustment = round(c.DeltaAdjustment, 2)

	zone, interpretation := adaptationZone(value)
	return models.AdaptationIndex{
		SubjectID:      analytics.SubjectID,
		Value:          value,
		Zone:           zone,
		Interpretation: interpretation,
		Components:     c,
	}
}

func adaptationZone(value float64) (models.AdaptationZone, string) {
	switch {
	case value < adaptationYellowThreshold:
		return models.ZoneRed, "Signs of low adaptation or engagement."
	case value < adaptationGreenThreshold:
		return models.ZoneYellow, "Attention needed: instability or conflicting feedback."
	case value < adaptationBlueThreshold:
		return models.ZoneGreen, "Healthy adaptation trajectory."
	default:
		return models.ZoneBlue, "High engagement and leadership potential."
	}
}

func normalizeAnalyticsType(t string) string {
	if t == "" {
		return models.AnalyticsTypeAll
	}
	return t
}
