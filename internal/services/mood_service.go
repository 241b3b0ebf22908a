// Package services – MoodService
//
// This file implements the MoodService, which manages the lifecycle of mood
// state. Every recorded mood is appended to an immutable history and mirrored
// into a single live profile row per user, so "what is the user feeling now"
// is a primary-key lookup while trends read the history.
//
// Service-level errors (e.g., ErrInvalidMood) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
)

// MoodRepo defines the repository contract required by MoodService.
// Implementations are responsible for persistence of mood samples and the
// live profile.
type MoodRepo interface {
	// CreateMoodSample appends a history row and overwrites the live profile
	// in one transaction.
	CreateMoodSample(ctx context.Context, db *gorm.DB, userID, mood, source string, confidence float64, at time.Time) (*domain.MoodSample, error)

	// GetMoodProfile fetches the live profile for the user.
	GetMoodProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MoodProfile, error)

	// LatestMoodSample returns the most recent history row; the profile is
	// derived from it when the live row is missing.
	LatestMoodSample(ctx context.Context, db *gorm.DB, userID string) (*domain.MoodSample, error)

	// ListMoodSamplesSince returns samples recorded at or after the cutoff,
	// newest first.
	ListMoodSamplesSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.MoodSample, error)

	// CountMoodSamples returns the total history size for pagination.
	CountMoodSamples(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListMoodSamplesPage returns a page of history, newest first.
	ListMoodSamplesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.MoodSample, error)
}

// MoodTrend summarizes recorded moods over a trailing window.
type MoodTrend struct {
	// WindowHours is the trailing window the trend was computed over.
	WindowHours int `json:"window_hours"`
	// Counts maps each observed mood to its number of samples.
	Counts map[string]int `json:"counts"`
	// Dominant is the most frequent mood in the window, empty when no
	// samples exist.
	Dominant string `json:"dominant"`
	// Samples is the total number of samples in the window.
	Samples int `json:"samples"`
	// Stability is the share of samples carrying the dominant mood, in
	// [0,1]; 0 when the window is empty.
	Stability float64 `json:"stability"`
}

// MoodService provides mood recording and retrieval operations.
type MoodService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the mood repository used by this service.
	Repo MoodRepo

	// Now supplies the current time; tests override it.
	Now func() time.Time
}

// NewMoodService constructs a MoodService backed by the package repository.
func NewMoodService(db *gorm.DB, r MoodRepo) *MoodService {
	return &MoodService{DB: db, Repo: r, Now: time.Now}
}

// Record validates and persists a mood sample. Direct user input always wins:
// its confidence is pinned to the fixed user-input level regardless of what
// the caller supplied. Inferred samples must carry a confidence in [0, 1].
func (s *MoodService) Record(ctx context.Context, userID, mood, source string, confidence float64) (*domain.MoodSample, error) {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if !domain.ValidMood(mood) {
		return nil, ErrInvalidMood
	}

	source = strings.TrimSpace(source)
	if source == "" {
		source = domain.MoodSourceUser
	}
	switch source {
	case domain.MoodSourceUser:
		confidence = domain.UserInputConfidence
	case domain.MoodSourceInferred:
		if confidence < 0 || confidence > 1 {
			return nil, ErrInvalidConfidence
		}
	default:
		return nil, ErrInvalidSource
	}

	return s.Repo.CreateMoodSample(ctx, s.DB, userID, mood, source, confidence, s.now())
}

// Current returns the live mood profile for the user.
func (s *MoodService) Current(ctx context.Context, userID string) (*domain.MoodProfile, error) {
	p, err := s.Repo.GetMoodProfile(ctx, s.DB, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// The profile row is derived state; rebuild it from the history.
	latest, err := s.Repo.LatestMoodSample(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMoodNotFound
		}
		return nil, err
	}
	return &domain.MoodProfile{
		UserID:      userID,
		CurrentMood: latest.Mood,
		UpdatedAt:   latest.CreatedAt,
	}, nil
}

// Trend aggregates mood samples over the trailing window. The dominant mood
// is the most frequent one; count ties resolve alphabetically so repeated
// calls over the same history agree.
func (s *MoodService) Trend(ctx context.Context, userID string, windowHours int) (*MoodTrend, error) {
	if windowHours <= 0 {
		return nil, ErrInvalidWindow
	}

	since := s.now().Add(-time.Duration(windowHours) * time.Hour)
	samples, err := s.Repo.ListMoodSamplesSince(ctx, s.DB, userID, since)
	if err != nil {
		return nil, err
	}

	trend := &MoodTrend{
		WindowHours: windowHours,
		Counts:      make(map[string]int, 3),
		Samples:     len(samples),
	}
	for _, m := range samples {
		trend.Counts[m.Mood]++
	}
	for mood, n := range trend.Counts {
		if n > trend.Counts[trend.Dominant] || (n == trend.Counts[trend.Dominant] && (trend.Dominant == "" || mood < trend.Dominant)) {
			trend.Dominant = mood
		}
	}
	if trend.Samples > 0 {
		trend.Stability = float64(trend.Counts[trend.Dominant]) / float64(trend.Samples)
	}
	return trend, nil
}

// HistoryPage returns paginated mood history, newest first.
func (s *MoodService) HistoryPage(ctx context.Context, userID string, page, pageSize int) ([]domain.MoodSample, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountMoodSamples(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.MoodSample{}, 0, nil
	}

	items, err := s.Repo.ListMoodSamplesPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

func (s *MoodService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
