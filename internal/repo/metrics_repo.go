// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the DailyMetrics
// rollup. Increments are expressed as SQL arithmetic on the row (not
// read-modify-write in Go) so two sessions closing simultaneously cannot lose
// an update.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
)

// DateKey formats t (UTC) as the YYYY-MM-DD key used by daily_metrics rows.
// Midnight rollover is the key itself: the first touch of a new date lazily
// creates a fresh row, no scheduled job involved.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// EnsureDailyMetrics creates the (userID, date) row when missing and returns
// it. Safe under concurrency: the insert ignores unique-key conflicts and the
// row is re-read afterwards.
func EnsureDailyMetrics(ctx context.Context, db *gorm.DB, userID, date string) (*domain.DailyMetrics, error) {
	row := &domain.DailyMetrics{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          date,
		WellnessScore: 100,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return GetDailyMetrics(ctx, db, userID, date)
}

// GetDailyMetrics fetches the rollup row for (userID, date), or ErrNotFound.
func GetDailyMetrics(ctx context.Context, db *gorm.DB, userID, date string) (*domain.DailyMetrics, error) {
	var m domain.DailyMetrics
	err := db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ApplySessionClose folds one closed session into the day's aggregates using
// atomic column arithmetic: total minutes += duration, session count += 1,
// max session duration raised when exceeded. Callers run this inside the same
// transaction that closes the session and rewrites the scores.
func ApplySessionClose(ctx context.Context, db *gorm.DB, userID, date string, durationMinutes int) error {
	return db.WithContext(ctx).
		Model(&domain.DailyMetrics{}).
		Where("user_id = ? AND date = ?", userID, date).
		Updates(map[string]any{
			"total_watch_minutes":  gorm.Expr("total_watch_minutes + ?", durationMinutes),
			"session_count":        gorm.Expr("session_count + 1"),
			"max_session_duration": gorm.Expr("MAX(max_session_duration, ?)", durationMinutes),
		}).Error
}

// UpdateScores rewrites the derived risk and wellness scores for (userID,
// date). Must run in the same transaction as the aggregate write it is
// derived from, so no reader observes a row whose scores are stale relative
// to its own totals.
func UpdateScores(ctx context.Context, db *gorm.DB, userID, date string, risk, wellnessScore float64) error {
	res := db.WithContext(ctx).
		Model(&domain.DailyMetrics{}).
		Where("user_id = ? AND date = ?", userID, date).
		Updates(map[string]any{
			"risk_score":     risk,
			"wellness_score": wellnessScore,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementBreakCount records that a break boundary was hit for (userID, date).
// The row is created lazily when the day has no metrics yet.
func IncrementBreakCount(ctx context.Context, db *gorm.DB, userID, date string) error {
	if _, err := EnsureDailyMetrics(ctx, db, userID, date); err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.DailyMetrics{}).
		Where("user_id = ? AND date = ?", userID, date).
		Update("break_count", gorm.Expr("break_count + 1")).Error
}

// RiskScoresByDate returns the persisted risk scores for userID on the given
// dates, keyed by date. Dates with no row are simply absent from the map.
func RiskScoresByDate(ctx context.Context, db *gorm.DB, userID string, dates []string) (map[string]float64, error) {
	var rows []domain.DailyMetrics
	err := db.WithContext(ctx).
		Select("date", "risk_score").
		Where("user_id = ? AND date IN ?", userID, dates).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Date] = r.RiskScore
	}
	return out, nil
}
