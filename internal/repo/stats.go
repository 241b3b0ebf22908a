// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
)

// MoodStats returns aggregate metadata for a user's mood history: the total
// number of samples and the timestamp of the newest one.
//
// It executes two lightweight queries against the mood_samples table scoped
// to the provided userID. When the user has no samples, the returned count is
// 0 and latest is nil.
func MoodStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.MoodSample{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
