// Package services – SessionService
//
// This file implements SessionService, the application-level component that
// owns the watch-session lifecycle: start (open), progress updates with break
// nudges, and the transactional end that folds the session into the day's
// metrics and recomputes the risk and wellness scores.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include session/user identifiers where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/timeofday"
	"github.com/tbourn/go-watchwell-backend/internal/wellness"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionService coordinates watch-session persistence and the daily-metrics
// rollup that closing a session triggers.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Engine supplies the scoring and break rules.
	Engine *wellness.Engine

	// Now supplies the current time; tests override it.
	Now func() time.Time
}

// NewSessionService constructs a SessionService with the given engine.
func NewSessionService(db *gorm.DB, engine *wellness.Engine) *SessionService {
	return &SessionService{DB: db, Engine: engine, Now: time.Now}
}

// ProgressResult is returned from UpdateProgress: the new duration plus the
// live break and risk signals for the client to surface.
type ProgressResult struct {
	SessionID       string  `json:"session_id"`
	DurationMinutes int     `json:"duration_minutes"`
	ShouldBreak     bool    `json:"should_break"`
	BreakMessage    string  `json:"break_message,omitempty"`
	RiskScore       float64 `json:"addiction_risk_score"`
	Level           string  `json:"addiction_level"`
}

// EndResult is returned from End with the final scores written for the day.
type EndResult struct {
	SessionID       string  `json:"session_id"`
	DurationMinutes int     `json:"duration_minutes"`
	RiskScore       float64 `json:"addiction_risk_score"`
	Level           string  `json:"addiction_level"`
	WellnessScore   float64 `json:"wellness_score"`
}

// Start opens a new watch session. The time period is derived from the start
// instant, and the day's metrics row is created lazily in the same transaction
// so later increments always have a row to target.
func (s *SessionService) Start(ctx context.Context, userID, contentID, mood string) (*domain.WatchSession, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	if !domain.ValidMood(mood) {
		return nil, ErrInvalidMood
	}

	now := s.now()
	period, err := timeofday.PeriodForHour(now.Hour())
	if err != nil {
		return nil, err
	}

	var sess *domain.WatchSession
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateWatchSession(ctx, tx, userID, contentID, mood, string(period), now)
		if err != nil {
			return err
		}
		sess = created
		_, err = repo.EnsureDailyMetrics(ctx, tx, userID, repo.DateKey(now))
		return err
	})
	if errors.Is(err, repo.ErrSessionKeyConflict) {
		return nil, ErrDuplicateSession
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// UpdateProgress moves an open session's absolute duration forward. Duration
// is monotonic: equal values are accepted (idempotent retries), lower values
// are rejected, and closed sessions refuse updates entirely.
//
// When the new duration lands on a break boundary the day's break counter is
// incremented and the result carries a break nudge. The returned risk score is
// a live reading: the stored day totals overlaid with this still-open session.
func (s *SessionService) UpdateProgress(ctx context.Context, userID, sessionID string, minutes int) (*ProgressResult, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "UpdateProgress",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
			attribute.Int("duration_minutes", minutes),
		),
	)
	defer span.End()

	if minutes < 0 {
		return nil, ErrInvalidDuration
	}

	now := s.now()
	date := repo.DateKey(now)
	res := &ProgressResult{SessionID: sessionID, DurationMinutes: minutes}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := repo.GetWatchSession(ctx, tx, sessionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if sess.UserID != userID {
			return ErrForbiddenSession
		}
		if sess.Completed {
			return ErrSessionClosed
		}
		if minutes < sess.DurationMinutes {
			return ErrDurationRegression
		}

		ok, err := repo.UpdateSessionDuration(ctx, tx, sessionID, minutes)
		if err != nil {
			return err
		}
		if !ok {
			// The guarded WHERE lost a race; the pre-checks above decide
			// which rule fired on a re-read.
			return ErrSessionClosed
		}

		if s.Engine.ShouldBreak(minutes) {
			res.ShouldBreak = true
			res.BreakMessage = breakMessage(minutes)
			// An equal-duration retry repeats the nudge but must not count
			// the same boundary twice.
			if minutes > sess.DurationMinutes {
				if err := repo.IncrementBreakCount(ctx, tx, userID, date); err != nil {
					return err
				}
			}
		}

		snap, err := s.liveSnapshot(ctx, tx, userID, date, minutes)
		if err != nil {
			return err
		}
		res.RiskScore = s.Engine.RiskScore(snap, now.Hour())
		res.Level = s.Engine.Level(res.RiskScore)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// End closes a session exactly once and, in the same transaction, folds its
// duration into the day's aggregates and rewrites the risk and wellness
// scores. A second end on the same session fails; the aggregates are never
// double-counted.
func (s *SessionService) End(ctx context.Context, userID, sessionID string, satisfied bool) (*EndResult, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "End",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	now := s.now()
	date := repo.DateKey(now)
	res := &EndResult{SessionID: sessionID}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := repo.GetWatchSession(ctx, tx, sessionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if sess.UserID != userID {
			return ErrForbiddenSession
		}

		ok, err := repo.CloseWatchSession(ctx, tx, sessionID, now, satisfied)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSessionClosed
		}
		res.DurationMinutes = sess.DurationMinutes

		if _, err := repo.EnsureDailyMetrics(ctx, tx, userID, date); err != nil {
			return err
		}
		if err := repo.ApplySessionClose(ctx, tx, userID, date, sess.DurationMinutes); err != nil {
			return err
		}

		m, err := repo.GetDailyMetrics(ctx, tx, userID, date)
		if err != nil {
			return err
		}
		snap := wellness.Snapshot{
			TotalWatchMinutes:  m.TotalWatchMinutes,
			SessionCount:       m.SessionCount,
			MaxSessionDuration: m.MaxSessionDuration,
		}
		res.RiskScore = s.Engine.RiskScore(snap, now.Hour())
		res.Level = s.Engine.Level(res.RiskScore)
		res.WellnessScore = s.Engine.WellnessScore(snap, now.Hour())

		return repo.UpdateScores(ctx, tx, userID, date, res.RiskScore, res.WellnessScore)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CompletedResult rebuilds the End response for a session that was already
// closed, from the session row and the scores stored for the day it ended on.
// It backs Idempotency-Key replays of end-session retries; a session that is
// still open reports ErrSessionNotFound so the caller falls through to the
// normal path.
func (s *SessionService) CompletedResult(ctx context.Context, userID, sessionID string) (*EndResult, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "CompletedResult",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	sess, err := repo.GetWatchSession(ctx, s.DB.WithContext(ctx), sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrForbiddenSession
	}
	if !sess.Completed || sess.EndTime == nil {
		return nil, ErrSessionNotFound
	}

	res := &EndResult{SessionID: sessionID, DurationMinutes: sess.DurationMinutes}
	m, err := repo.GetDailyMetrics(ctx, s.DB.WithContext(ctx), userID, repo.DateKey(sess.EndTime.UTC()))
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		res.WellnessScore = 100
		res.Level = s.Engine.Level(0)
		return res, nil
	}
	res.RiskScore = m.RiskScore
	res.Level = s.Engine.Level(m.RiskScore)
	res.WellnessScore = m.WellnessScore
	return res, nil
}

// Open lists the user's currently open sessions, oldest first.
func (s *SessionService) Open(ctx context.Context, userID string) ([]domain.WatchSession, error) {
	return repo.ListOpenSessions(ctx, s.DB.WithContext(ctx), userID)
}

// liveSnapshot overlays an in-progress session onto the stored day totals so
// mid-session risk readings reflect the watching that has not been folded in
// yet.
func (s *SessionService) liveSnapshot(ctx context.Context, tx *gorm.DB, userID, date string, openMinutes int) (wellness.Snapshot, error) {
	var snap wellness.Snapshot
	m, err := repo.GetDailyMetrics(ctx, tx, userID, date)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return snap, err
	}
	if m != nil {
		snap = wellness.Snapshot{
			TotalWatchMinutes:  m.TotalWatchMinutes,
			SessionCount:       m.SessionCount,
			MaxSessionDuration: m.MaxSessionDuration,
		}
	}
	snap.TotalWatchMinutes += openMinutes
	snap.SessionCount++
	if openMinutes > snap.MaxSessionDuration {
		snap.MaxSessionDuration = openMinutes
	}
	return snap, nil
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// breakMessage phrases the nudge shown when a session crosses a break
// boundary.
func breakMessage(minutes int) string {
	if minutes >= 120 {
		return "You've been watching for a while. Time to stand up and stretch!"
	}
	return fmt.Sprintf("You've been watching for %d minutes. Take a 5 minute break!", minutes)
}
