// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for mood samples
// and the derived per-user mood profile.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a profile or sample is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateMoodSample appends one observation to the user's mood history and
// overwrites the single live profile row in the same transaction, keeping the
// profile equal to "most recent sample" at all times.
func CreateMoodSample(ctx context.Context, db *gorm.DB, userID, mood, source string, confidence float64, at time.Time) (*domain.MoodSample, error) {
	sample := &domain.MoodSample{
		ID:         uuid.NewString(),
		UserID:     userID,
		Mood:       mood,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  at,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sample).Error; err != nil {
			return err
		}
		profile := &domain.MoodProfile{
			UserID:      userID,
			CurrentMood: mood,
			UpdatedAt:   at,
		}
		return tx.Save(profile).Error
	})
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// GetMoodProfile fetches the live mood row for userID, or ErrNotFound.
func GetMoodProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MoodProfile, error) {
	var p domain.MoodProfile
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestMoodSample returns the most recent sample for userID, or ErrNotFound.
// Used to rebuild the profile when the derived row is missing.
func LatestMoodSample(ctx context.Context, db *gorm.DB, userID string) (*domain.MoodSample, error) {
	var s domain.MoodSample
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListMoodSamplesSince returns all samples for userID recorded at or after
// since, newest first.
func ListMoodSamplesSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.MoodSample, error) {
	var out []domain.MoodSample
	err := db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountMoodSamples returns the total number of samples recorded for userID.
func CountMoodSamples(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.MoodSample{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListMoodSamplesPage returns a paginated slice of samples for userID, newest
// first. The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListMoodSamplesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.MoodSample, error) {
	var out []domain.MoodSample
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
