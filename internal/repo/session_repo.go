// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// WatchSession model. State-transition rules (monotonic duration, single
// close) are enforced in the service layer; these functions only guard the
// raw row operations with WHERE clauses so concurrent writers cannot undo a
// committed transition.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
)

// ErrSessionKeyConflict indicates a second session row for the same
// (user, content, start instant) tuple.
var ErrSessionKeyConflict = errors.New("session key conflict")

// CreateWatchSession inserts a new open session row. The row ID is an opaque
// UUID; the structured key (user, content, start time) is kept in separate
// indexed columns whose unique index turns a sub-second duplicate start into
// ErrSessionKeyConflict rather than a silent overwrite.
func CreateWatchSession(ctx context.Context, db *gorm.DB, userID, contentID, mood, period string, start time.Time) (*domain.WatchSession, error) {
	s := &domain.WatchSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContentID:   contentID,
		MoodAtStart: mood,
		TimePeriod:  period,
		StartTime:   start,
		CreatedAt:   start,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrSessionKeyConflict
		}
		return nil, err
	}
	return s, nil
}

// GetWatchSession fetches a session by its ID, or ErrNotFound.
func GetWatchSession(ctx context.Context, db *gorm.DB, id string) (*domain.WatchSession, error) {
	var s domain.WatchSession
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionDuration advances the duration of an open session. The guarded
// WHERE clause refuses closed sessions and duration regressions at the row
// level; zero rows affected means the caller must re-read to find out which
// rule fired.
func UpdateSessionDuration(ctx context.Context, db *gorm.DB, id string, minutes int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.WatchSession{}).
		Where("id = ? AND completed = ? AND duration_minutes <= ?", id, false, minutes).
		Update("duration_minutes", minutes)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CloseWatchSession marks an open session as completed, recording end time
// and satisfaction. It is a no-op (zero rows) when the session is already
// closed, which the service layer translates into an invalid-transition
// error. Returns whether a row transitioned.
func CloseWatchSession(ctx context.Context, db *gorm.DB, id string, end time.Time, satisfied bool) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.WatchSession{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]any{
			"end_time":       end,
			"completed":      true,
			"user_satisfied": satisfied,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListOpenSessions returns the user's currently open sessions, oldest first.
func ListOpenSessions(ctx context.Context, db *gorm.DB, userID string) ([]domain.WatchSession, error) {
	var out []domain.WatchSession
	err := db.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, false).
		Order("start_time asc").
		Find(&out).Error
	return out, err
}
