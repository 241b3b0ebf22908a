// Package services defines the business logic for mood tracking, watch
// sessions, wellness scoring, and recommendation assembly.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Mood-related errors.
var (
	// ErrInvalidMood is returned when a mood value is outside the supported
	// set (happy, sad, neutral).
	ErrInvalidMood = errors.New("invalid mood value")

	// ErrInvalidConfidence is returned when an inferred mood sample carries a
	// confidence outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

	// ErrInvalidSource is returned when a mood sample's source is neither
	// user_input nor inferred.
	ErrInvalidSource = errors.New("invalid mood source")

	// ErrMoodNotFound indicates that no mood has ever been recorded for the
	// user.
	ErrMoodNotFound = errors.New("no mood recorded for user")

	// ErrInvalidWindow is returned when a trend window is zero or negative.
	ErrInvalidWindow = errors.New("trend window must be positive")
)

// Session-related errors.
var (
	// ErrSessionNotFound indicates that the requested watch session does not
	// exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when an update or end is attempted against
	// a session that has already completed.
	ErrSessionClosed = errors.New("session already completed")

	// ErrDurationRegression is returned when a progress update would move a
	// session's duration backwards.
	ErrDurationRegression = errors.New("duration cannot decrease")

	// ErrInvalidDuration is returned when a reported duration is negative.
	ErrInvalidDuration = errors.New("duration must be non-negative")

	// ErrDuplicateSession is returned when a session already exists for the
	// same user, content, and start instant.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrForbiddenSession is returned when a user attempts to end a session
	// that belongs to someone else.
	ErrForbiddenSession = errors.New("session belongs to another user")
)

// Recommendation-related errors.
var (
	// ErrEmptyCandidates is returned when a recommendation request supplies
	// no collaborative and no content-based candidates.
	ErrEmptyCandidates = errors.New("no candidates supplied")

	// ErrInvalidLimit is returned when the requested recommendation count is
	// zero or negative.
	ErrInvalidLimit = errors.New("recommendation count must be positive")
)
