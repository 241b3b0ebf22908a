// Package services – WellnessService
//
// This file implements WellnessService, which assembles the per-user wellness
// dashboard: today's aggregates, the derived risk/wellness scores, and the
// trailing seven-day trend read from persisted daily metrics.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/wellness"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// trendDays is the length of the dashboard's trailing trend window.
const trendDays = 7

// WellnessService reads daily metrics and renders them through the scoring
// engine.
type WellnessService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Engine supplies the scoring rules and dashboard assembly.
	Engine *wellness.Engine

	// Now supplies the current time; tests override it.
	Now func() time.Time
}

// NewWellnessService constructs a WellnessService with the given engine.
func NewWellnessService(db *gorm.DB, engine *wellness.Engine) *WellnessService {
	return &WellnessService{DB: db, Engine: engine, Now: time.Now}
}

// Dashboard builds the wellness view for the user's current UTC day. A user
// with no activity today gets the zero snapshot: full wellness, no risk. Days
// missing from the trend window render as risk 0 / wellness 100.
func (s *WellnessService) Dashboard(ctx context.Context, userID string) (*wellness.Dashboard, error) {
	tr := otel.Tracer("services/WellnessService")
	ctx, span := tr.Start(ctx, "Dashboard",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	now := s.now()
	today := repo.DateKey(now)

	var snap wellness.Snapshot
	var breakCount int
	m, err := repo.GetDailyMetrics(ctx, s.DB.WithContext(ctx), userID, today)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if m != nil {
		snap = wellness.Snapshot{
			TotalWatchMinutes:  m.TotalWatchMinutes,
			SessionCount:       m.SessionCount,
			MaxSessionDuration: m.MaxSessionDuration,
		}
		breakCount = m.BreakCount
	}

	dates := make([]string, 0, trendDays)
	for i := trendDays - 1; i >= 0; i-- {
		dates = append(dates, repo.DateKey(now.AddDate(0, 0, -i)))
	}
	scores, err := repo.RiskScoresByDate(ctx, s.DB.WithContext(ctx), userID, dates)
	if err != nil {
		return nil, err
	}

	d := s.Engine.Assemble(wellness.DashboardInput{
		Today:       snap,
		BreakCount:  breakCount,
		Hour:        now.Hour(),
		TrendDates:  dates,
		TrendScores: scores,
	})
	return &d, nil
}

func (s *WellnessService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
