// Package wellness computes addiction-risk and wellness scores from daily
// watch aggregates. The engine is deliberately pure: every score is a function
// of a metrics snapshot plus the current wall-clock hour, with no store access
// and no hidden state, so the numeric contract can be tested in isolation.
package wellness

import (
	"fmt"
	"math"
)

// Defaults for the scoring constants. All of them are overridable through
// Engine fields (wired from config).
const (
	DefaultDailyGoalMinutes  = 120
	DefaultBreakInterval     = 30
	DefaultBingeThreshold    = 180
	DefaultCriticalThreshold = 300

	// highFrequencySessions is the session count treated as 100% on the
	// frequency factor.
	highFrequencySessions = 5
)

// Factor weights. They sum to 1.0 so the composite stays in [0,100].
const (
	weightTimeVsGoal = 0.40
	weightFrequency  = 0.30
	weightBinge      = 0.20
	weightLateHours  = 0.10
)

// Addiction levels, from the score ladder in Level.
const (
	LevelHealthy  = "Healthy"
	LevelModerate = "Moderate"
	LevelHigh     = "High"
	LevelVeryHigh = "Very High"
	LevelCritical = "Critical"
)

// Snapshot is the slice of DailyMetrics the engine reads. Keeping it a plain
// value type means callers can score hypothetical days without touching the
// store.
type Snapshot struct {
	TotalWatchMinutes  int
	SessionCount       int
	MaxSessionDuration int
}

// Engine holds the scoring constants. The zero value is not usable; construct
// with NewEngine.
type Engine struct {
	DailyGoalMinutes  int
	BreakInterval     int
	BingeThreshold    int
	CriticalThreshold int
}

// NewEngine returns an Engine with the default constants.
func NewEngine() *Engine {
	return &Engine{
		DailyGoalMinutes:  DefaultDailyGoalMinutes,
		BreakInterval:     DefaultBreakInterval,
		BingeThreshold:    DefaultBingeThreshold,
		CriticalThreshold: DefaultCriticalThreshold,
	}
}

// RiskScore computes the 0-100 composite addiction-risk score for a day.
//
// Four weighted factors, each clamped to [0,100] before weighting:
//  1. time vs goal (0.40): total minutes against the daily goal
//  2. session frequency (0.30): session count against 5/day
//  3. binge pattern (0.20): ladder over the longest single session
//  4. unhealthy hours (0.10): 50 when watching happened with hour ≥23 or <5
//
// hour is the current wall-clock hour [0,23]; it only feeds factor 4.
func (e *Engine) RiskScore(s Snapshot, hour int) float64 {
	f1 := clamp100(float64(s.TotalWatchMinutes) / float64(e.DailyGoalMinutes) * 100)
	f2 := clamp100(float64(s.SessionCount) / highFrequencySessions * 100)
	f3 := e.bingeFactor(s.MaxSessionDuration)
	f4 := e.lateHoursFactor(s, hour)

	total := f1*weightTimeVsGoal + f2*weightFrequency + f3*weightBinge + f4*weightLateHours
	return round2(clamp100(total))
}

// WellnessScore is the complement of RiskScore; the two always sum to 100.
func (e *Engine) WellnessScore(s Snapshot, hour int) float64 {
	return round2(100 - e.RiskScore(s, hour))
}

// bingeFactor maps the longest single session to the monotone four-band
// ladder: 0 below the binge threshold, then 50 / 80 / 100 at 180 / 240 / 300
// minutes with the defaults.
func (e *Engine) bingeFactor(maxSession int) float64 {
	mid := (e.BingeThreshold + e.CriticalThreshold) / 2 // 240 with defaults
	switch {
	case maxSession >= e.CriticalThreshold:
		return 100
	case maxSession >= mid:
		return 80
	case maxSession >= e.BingeThreshold:
		return 50
	default:
		return 0
	}
}

// lateHoursFactor returns 50 when any watching occurred and the current hour
// is in the unhealthy window [23,24) ∪ [0,5), else 0.
func (e *Engine) lateHoursFactor(s Snapshot, hour int) float64 {
	if s.TotalWatchMinutes <= 0 && s.SessionCount == 0 {
		return 0
	}
	if hour >= 23 || hour < 5 {
		return 50
	}
	return 0
}

// Level maps a risk score onto the qualitative ladder.
func (e *Engine) Level(score float64) string {
	switch {
	case score < 20:
		return LevelHealthy
	case score < 40:
		return LevelModerate
	case score < 60:
		return LevelHigh
	case score < 80:
		return LevelVeryHigh
	default:
		return LevelCritical
	}
}

// ShouldBreak reports whether an absolute session duration lands exactly on a
// break boundary: a positive multiple of the break interval. The rule works on
// the absolute value, not a delta, so updates at 30/60/90 each trigger while
// an update at 45 does not.
func (e *Engine) ShouldBreak(durationMinutes int) bool {
	return durationMinutes > 0 && durationMinutes%e.BreakInterval == 0
}

// ThrottleFactor returns the fraction of requested recommendation slots to
// actually serve, driven by the risk score: everything below 60, half through
// 75, and a fifth beyond.
func (e *Engine) ThrottleFactor(score float64) float64 {
	switch {
	case score < 60:
		return 1.0
	case score <= 75:
		return 0.5
	default:
		return 0.2
	}
}

// ThrottleReason returns the human-readable explanation paired with a
// throttle factor.
func (e *Engine) ThrottleReason(score float64) string {
	switch f := e.ThrottleFactor(score); f {
	case 1.0:
		return "no throttling"
	case 0.5:
		return "partial throttling due to elevated addiction risk"
	default:
		return "strong throttling due to high addiction risk"
	}
}

// TrendPoint is one day in the trailing dashboard trend.
type TrendPoint struct {
	Date          string  `json:"date"`
	RiskScore     float64 `json:"risk_score"`
	WellnessScore float64 `json:"wellness_score"`
}

// Dashboard is the assembled wellness view for one user-day.
type Dashboard struct {
	TodayWatchMinutes  int          `json:"today_watch_time"`
	DailyGoalMinutes   int          `json:"daily_goal"`
	RemainingGoal      int          `json:"remaining_goal"`
	ExceededGoal       bool         `json:"exceeded_goal"`
	SessionCount       int          `json:"session_count"`
	MaxSessionDuration int          `json:"max_session_duration"`
	BreakCount         int          `json:"break_count"`
	RiskScore          float64      `json:"addiction_risk_score"`
	Level              string       `json:"addiction_level"`
	WellnessScore      float64      `json:"wellness_score"`
	ThrottleFactor     float64      `json:"throttle_factor"`
	ThrottleReason     string       `json:"throttle_reason"`
	WeekTrend          []TrendPoint `json:"week_trend"`
	StatusMessage      string       `json:"status_message"`
	Recommendations    []string     `json:"recommendations"`
}

// DashboardInput carries everything Assemble needs: today's snapshot, the
// stored break count, and up to seven trailing days of persisted scores keyed
// by date (missing days are treated as risk 0 / wellness 100).
type DashboardInput struct {
	Today      Snapshot
	BreakCount int
	Hour       int

	// TrendDates is the trailing window, oldest first; TrendScores maps a
	// date to its stored risk score.
	TrendDates  []string
	TrendScores map[string]float64
}

// Assemble builds the dashboard from a snapshot without touching any store.
func (e *Engine) Assemble(in DashboardInput) Dashboard {
	risk := e.RiskScore(in.Today, in.Hour)
	level := e.Level(risk)

	remaining := e.DailyGoalMinutes - in.Today.TotalWatchMinutes
	if remaining < 0 {
		remaining = 0
	}

	trend := make([]TrendPoint, 0, len(in.TrendDates))
	for _, d := range in.TrendDates {
		s := in.TrendScores[d] // zero for missing days
		trend = append(trend, TrendPoint{Date: d, RiskScore: s, WellnessScore: round2(100 - s)})
	}

	return Dashboard{
		TodayWatchMinutes:  in.Today.TotalWatchMinutes,
		DailyGoalMinutes:   e.DailyGoalMinutes,
		RemainingGoal:      remaining,
		ExceededGoal:       in.Today.TotalWatchMinutes > e.DailyGoalMinutes,
		SessionCount:       in.Today.SessionCount,
		MaxSessionDuration: in.Today.MaxSessionDuration,
		BreakCount:         in.BreakCount,
		RiskScore:          risk,
		Level:              level,
		WellnessScore:      round2(100 - risk),
		ThrottleFactor:     e.ThrottleFactor(risk),
		ThrottleReason:     e.ThrottleReason(risk),
		WeekTrend:          trend,
		StatusMessage:      statusMessage(level, remaining),
		Recommendations:    recommendationsFor(level, e.BreakInterval),
	}
}

// statusMessage keys a short status line off the addiction level.
func statusMessage(level string, remainingGoal int) string {
	switch level {
	case LevelHealthy:
		if remainingGoal > 0 {
			return fmt.Sprintf("Great habits! You have %d min left in your daily goal.", remainingGoal)
		}
		return "Goal reached. Good job pacing yourself!"
	case LevelModerate:
		return "You're watching a bit more than usual. Take breaks!"
	case LevelHigh, LevelVeryHigh:
		return "Warning: high screen time detected. Consider stopping for today."
	default:
		return "Critical: seek moderation. Watching more today is not recommended."
	}
}

// recommendationsFor picks actionable suggestions by level.
func recommendationsFor(level string, breakInterval int) []string {
	base := fmt.Sprintf("Take a 5 minute break every %d minutes", breakInterval)
	switch level {
	case LevelHealthy:
		return []string{base}
	case LevelModerate:
		return []string{base, "Prefer shorter content"}
	case LevelHigh:
		return []string{base, "Prefer shorter content", "Set a hard stop time for tonight"}
	default:
		return []string{
			"Stop watching for today",
			"Stand up, stretch, grab water",
			"Prefer shorter content tomorrow",
		}
	}
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
