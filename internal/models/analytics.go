package models

// Skill analytics type filters.
const (
	AnalyticsTypeAll  = "all"
	AnalyticsTypeHard = "hard"
	AnalyticsTypeSoft = "soft"
)

// AnalyticsFilter scopes skill analytics for one subject.
type AnalyticsFilter struct {
	SubjectID string
	PeriodID  *string
	Type      string
}

// CategoryPeriodScore is the weighted average of one (skill type, category, period) bucket.
type CategoryPeriodScore struct {
	SkillType   SkillType `json:"skill_type"`
	Category    string    `json:"category"`
	PeriodID    string    `json:"period_id"`
	PeriodName  string    `json:"period_name"`
	MonthOffset int       `json:"month_offset"`
	SelfAverage *float64  `json:"self_average"`
	PeerAverage *float64  `json:"peer_average"`
	SelfCount   int       `json:"self_count"`
	PeerCount   int       `json:"peer_count"`
	TrendSelf   *float64  `json:"trend_self"`
	TrendPeer   *float64  `json:"trend_peer"`
}

// PeriodRef lists a period that contributed to analytics.
type PeriodRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MonthOffset int    `json:"month_offset"`
}

// SkillAnalytics is the per-category, per-period score breakdown of a subject.
type SkillAnalytics struct {
	SubjectID   string                `json:"subject_id"`
	PeriodID    *string               `json:"period_id,omitempty"`
	Type        string                `json:"type"`
	Periods     []PeriodRef           `json:"periods"`
	Entries     []CategoryPeriodScore `json:"entries"`
	OverallSelf *float64              `json:"overall_self"`
	OverallPeer *float64              `json:"overall_peer"`
	Delta       *float64              `json:"delta"`
}

// AdaptationZone is the qualitative band of an adaptation index.
type AdaptationZone string

const (
	ZoneRed    AdaptationZone = "red"
	ZoneYellow AdaptationZone = "yellow"
	ZoneGreen  AdaptationZone = "green"
	ZoneBlue   AdaptationZone = "blue"
)

// AdaptationComponents exposes how an index was assembled.
type AdaptationComponents struct {
	Base              float64  `json:"base"`
	Delta             *float64 `json:"delta"`
	DeltaAdjustment   float64  `json:"delta_adjustment"`
	TrendSum          float64  `json:"trend_sum"`
	TrendAdjustment   float64  `json:"trend_adjustment"`
	UnansweredRatio   float64  `json:"unanswered_ratio"`
	MissingAdjustment float64  `json:"missing_adjustment"`
	OverallSelf       *float64 `json:"overall_self"`
	OverallPeer       *float64 `json:"overall_peer"`
}

// AdaptationIndex is a bounded 0-100 composite score with its zone.
type AdaptationIndex struct {
	SubjectID      string               `json:"subject_id"`
	Value          float64              `json:"value"`
	Zone           AdaptationZone       `json:"zone"`
	Interpretation string               `json:"interpretation"`
	Components     AdaptationComponents `json:"components"`
}
