package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/perf-review-api/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func scoredRow(respondent, period string, offset int, category string, grade, weight int) models.ScoredAnswer {
	return models.ScoredAnswer{
		RespondentID: respondent,
		PeriodID:     period,
		PeriodName:   period,
		MonthOffset:  offset,
		SkillType:    models.SkillTypeHard,
		Category:     category,
		Grade:        grade,
		Weight:       weight,
		Answered:     true,
	}
}

func TestWeightedAverage(t *testing.T) {
	avg := weightedAverage([]models.ScoredAnswer{{Grade: 6, Weight: 1}, {Grade: 7, Weight: 2}})
	require.NotNil(t, avg)
	assert.Equal(t, 6.67, *avg)

	avg = weightedAverage([]models.ScoredAnswer{{Grade: 4, Weight: 0}, {Grade: 8, Weight: -3}})
	require.NotNil(t, avg)
	assert.Equal(t, 6.0, *avg)

	assert.Nil(t, weightedAverage(nil))
}

func sampleAnalytics() models.SkillAnalytics {
	rows := []models.ScoredAnswer{
		scoredRow("s", "p0", 0, "Go", 6, 1),
		scoredRow("s", "p0", 0, "Go", 7, 2),
		scoredRow("s", "p3", 3, "Go", 7, 1),
		scoredRow("r1", "p3", 3, "Go", 8, 1),
		{RespondentID: "r1", PeriodID: "p3", SkillType: models.SkillTypeHard, Category: "Go", Grade: 0, Weight: 1},
	}
	return buildSkillAnalytics(models.AnalyticsFilter{SubjectID: "s"}, rows)
}

func TestBuildSkillAnalytics(t *testing.T) {
	a := sampleAnalytics()

	assert.Equal(t, models.AnalyticsTypeAll, a.Type)
	require.Len(t, a.Entries, 2)
	require.Len(t, a.Periods, 2)
	assert.Equal(t, "p0", a.Periods[0].ID)

	first, second := a.Entries[0], a.Entries[1]
	assert.Equal(t, "p0", first.PeriodID)
	assert.Equal(t, floatPtr(6.67), first.SelfAverage)
	assert.Nil(t, first.PeerAverage)
	assert.Nil(t, first.TrendSelf)

	assert.Equal(t, "p3", second.PeriodID)
	assert.Equal(t, floatPtr(7), second.SelfAverage)
	assert.Equal(t, floatPtr(8), second.PeerAverage)
	assert.Equal(t, 1, second.PeerCount)
	assert.Equal(t, floatPtr(0.33), second.TrendSelf)
	assert.Nil(t, second.TrendPeer)

	assert.Equal(t, floatPtr(6.75), a.OverallSelf)
	assert.Equal(t, floatPtr(8), a.OverallPeer)
	assert.Equal(t, floatPtr(1.25), a.Delta)
}

func TestBuildSkillAnalyticsEmpty(t *testing.T) {
	a := buildSkillAnalytics(models.AnalyticsFilter{SubjectID: "s", Type: models.AnalyticsTypeSoft}, nil)
	assert.Equal(t, models.AnalyticsTypeSoft, a.Type)
	assert.Empty(t, a.Entries)
	assert.NotNil(t, a.Entries)
	assert.Nil(t, a.OverallSelf)
	assert.Nil(t, a.Delta)
}

func TestAdaptationIndexCombinesComponents(t *testing.T) {
	index := computeAdaptationIndex(sampleAnalytics(), models.AnswerStats{Total: 4, Answered: 4})

	assert.InDelta(t, 73.75, index.Components.Base, 0.001)
	assert.InDelta(t, 1.88, index.Components.DeltaAdjustment, 0.011)
	assert.InDelta(t, 0.33, index.Components.TrendSum, 0.001)
	assert.InDelta(t, 0.99, index.Components.TrendAdjustment, 0.001)
	assert.Zero(t, index.Components.MissingAdjustment)
	assert.InDelta(t, 76.6, index.Value, 0.05)
	assert.Equal(t, models.ZoneGreen, index.Zone)
	assert.Equal(t, "s", index.SubjectID)
}

func TestAdaptationIndexPerfectScoresAreBlue(t *testing.T) {
	a := models.SkillAnalytics{SubjectID: "s", OverallSelf: floatPtr(10), OverallPeer: floatPtr(10), Delta: floatPtr(0)}
	index := computeAdaptationIndex(a, models.AnswerStats{Total: 6, Answered: 6})
	assert.Equal(t, 100.0, index.Value)
	assert.Equal(t, models.ZoneBlue, index.Zone)
}

func TestAdaptationIndexPenalties(t *testing.T) {
	a := models.SkillAnalytics{SubjectID: "s", OverallSelf: floatPtr(9), OverallPeer: floatPtr(7), Delta: floatPtr(-2)}
	index := computeAdaptationIndex(a, models.AnswerStats{Total: 10, Answered: 7})

	assert.Equal(t, -5.0, index.Components.DeltaAdjustment)
	assert.Equal(t, 0.3, index.Components.UnansweredRatio)
	assert.Equal(t, -10.0, index.Components.MissingAdjustment)
	assert.Equal(t, 65.0, index.Value)
	assert.Equal(t, models.ZoneYellow, index.Zone)
}

func TestAdaptationIndexClampsAndHandlesMissingData(t *testing.T) {
	index := computeAdaptationIndex(models.SkillAnalytics{SubjectID: "s"}, models.AnswerStats{Total: 3})
	assert.Equal(t, 0.0, index.Value)
	assert.Equal(t, models.ZoneRed, index.Zone)

	selfOnly := computeAdaptationIndex(models.SkillAnalytics{OverallSelf: floatPtr(6)}, models.AnswerStats{})
	assert.Equal(t, 30.0, selfOnly.Components.Base)
	assert.Equal(t, -15.0, selfOnly.Components.DeltaAdjustment)
	assert.Equal(t, 15.0, selfOnly.Value)
}

func TestAdaptationIndexTreatsMissingSideAsZero(t *testing.T) {
	selfOnly := computeAdaptationIndex(models.SkillAnalytics{OverallSelf: floatPtr(8)}, models.AnswerStats{})
	assert.Equal(t, 40.0, selfOnly.Components.Base)
	if assert.NotNil(t, selfOnly.Components.Delta) {
		assert.Equal(t, -8.0, *selfOnly.Components.Delta)
	}
	assert.Equal(t, -20.0, selfOnly.Components.DeltaAdjustment)
	assert.Equal(t, 20.0, selfOnly.Value)
	assert.Equal(t, models.ZoneRed, selfOnly.Zone)

	peerOnly := computeAdaptationIndex(models.SkillAnalytics{OverallPeer: floatPtr(8)}, models.AnswerStats{})
	assert.Equal(t, 40.0, peerOnly.Components.Base)
	assert.Equal(t, 12.0, peerOnly.Components.DeltaAdjustment)
	assert.Equal(t, 52.0, peerOnly.Value)
	assert.Equal(t, models.ZoneYellow, peerOnly.Zone)
}

func TestAdaptationZoneBoundaries(t *testing.T) {
	cases := map[float64]models.AdaptationZone{
		0:     models.ZoneRed,
		49.9:  models.ZoneRed,
		50:    models.ZoneYellow,
		69.9:  models.ZoneYellow,
		70:    models.ZoneGreen,
		85.9:  models.ZoneGreen,
		86:    models.ZoneBlue,
		100.0: models.ZoneBlue,
	}
	for value, want := range cases {
		zone, interpretation := adaptationZone(value)
		assert.Equal(t, want, zone, value)
		assert.NotEmpty(t, interpretation)
	}
}
