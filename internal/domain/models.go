// Package domain defines the persistence models for mood tracking, watch
// sessions, daily wellness metrics, and the mood-genre affinity matrix.
// These types are mapped with GORM and form the core data layer of the
// WatchWell backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Moods accepted by the system. Samples outside this set are rejected at the
// service layer before they reach the database.
const (
	MoodHappy   = "happy"
	MoodSad     = "sad"
	MoodNeutral = "neutral"
)

// Sources a mood sample can originate from.
const (
	MoodSourceUser     = "user_input"
	MoodSourceInferred = "inferred"
)

// UserInputConfidence is the fixed confidence attached to samples the user
// reported directly.
const UserInputConfidence = 0.95

// ValidMood reports whether mood is one of the accepted values.
func ValidMood(mood string) bool {
	switch mood {
	case MoodHappy, MoodSad, MoodNeutral:
		return true
	}
	return false
}

// MoodSample is one recorded or inferred emotional-state observation for a
// user. Samples are append-only: rows are never updated once written, and the
// full history per user is retained for trend analysis.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the observed user; indexed for history queries.
//   - Mood: one of "happy", "sad", "neutral" (enforced by DB constraint).
//   - Confidence: observation confidence in [0,1]; user input is fixed at 0.95.
//   - Source: "user_input" or "inferred".
//   - CreatedAt: observation timestamp.
type MoodSample struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_mood_samples_user,priority:1"`
	Mood       string    `json:"mood"       gorm:"type:varchar(16);not null;check:mood IN ('happy','sad','neutral')"`
	Confidence float64   `json:"confidence" gorm:"not null"`
	Source     string    `json:"source"     gorm:"type:varchar(16);not null;check:source IN ('user_input','inferred')"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_mood_samples_user,priority:2"`
}

// TableName returns the database table name for MoodSample.
func (MoodSample) TableName() string { return "mood_samples" }

// MoodProfile is the single live mood row per user. It is derived state:
// always the most recent MoodSample for the user, overwritten (never appended)
// whenever a new sample is recorded.
type MoodProfile struct {
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);primaryKey"`
	CurrentMood string    `json:"current_mood" gorm:"type:varchar(16);not null"`
	UpdatedAt   time.Time `json:"last_updated"`
}

// TableName returns the database table name for MoodProfile.
func (MoodProfile) TableName() string { return "mood_profiles" }

// WatchSession is one continuous watch event for one user and one content
// item. A session is created open, its duration may only move forward, and it
// is closed exactly once; a closed session is immutable.
//
// Fields:
//   - ID: opaque UUID primary key. The structured key (UserID, ContentID,
//     StartTime) is retained as separate indexed columns so the identifier is
//     never parsed to recover its components.
//   - MoodAtStart / TimePeriod: context captured when the session began.
//   - DurationMinutes: last reported absolute duration; monotonic while open.
//   - Completed: false while OPEN, true once CLOSED.
//   - UserSatisfied: set on close only.
type WatchSession struct {
	ID              string     `json:"session_id" gorm:"type:char(36);primaryKey"`
	UserID          string     `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_session_key,priority:1"`
	ContentID       string     `json:"content_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_session_key,priority:2"`
	MoodAtStart     string     `json:"mood_at_start" gorm:"type:varchar(16);not null"`
	TimePeriod      string     `json:"time_period"   gorm:"type:varchar(16);not null"`
	StartTime       time.Time  `json:"start_time"    gorm:"not null;uniqueIndex:ux_session_key,priority:3"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null;default:0"`
	Completed       bool       `json:"completed"        gorm:"not null;default:false"`
	UserSatisfied   *bool      `json:"user_satisfied,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for WatchSession.
func (WatchSession) TableName() string { return "watch_sessions" }

// DailyMetrics is the per-user, per-calendar-day rollup of session activity
// and derived wellness scores. One row per (user_id, date), created lazily on
// the first session of the day and updated incrementally as sessions close.
//
// Invariant: WellnessScore is always 100 − RiskScore; both are rewritten in
// the same transaction as the totals they are derived from, so a reader never
// observes a stale score relative to the row's own totals.
type DailyMetrics struct {
	ID                 string         `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID             string         `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_metrics_user_date,priority:1"`
	Date               string         `json:"date"    gorm:"type:char(10);not null;uniqueIndex:ux_metrics_user_date,priority:2"` // YYYY-MM-DD (UTC)
	TotalWatchMinutes  int            `json:"total_watch_minutes"  gorm:"not null;default:0"`
	SessionCount       int            `json:"session_count"        gorm:"not null;default:0"`
	MaxSessionDuration int            `json:"max_session_duration" gorm:"not null;default:0"`
	RiskScore          float64        `json:"addiction_risk_score" gorm:"not null;default:0"`
	WellnessScore      float64        `json:"wellness_score"       gorm:"not null;default:100"`
	BreakCount         int            `json:"break_count"          gorm:"not null;default:0"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for DailyMetrics.
func (DailyMetrics) TableName() string { return "daily_metrics" }

// AffinityEntry is one cell of the mood-genre affinity matrix. The matrix is
// seeded once at startup and immutable at runtime except through an explicit
// administrative row edit.
type AffinityEntry struct {
	Mood      string    `json:"mood"  gorm:"type:varchar(16);primaryKey"`
	Genre     string    `json:"genre" gorm:"type:varchar(32);primaryKey"`
	Score     float64   `json:"score" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for AffinityEntry.
func (AffinityEntry) TableName() string { return "mood_affinity" }
