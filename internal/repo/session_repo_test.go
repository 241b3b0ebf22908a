package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-watchwell-backend/internal/domain"
)

func TestCreateWatchSession_SetsFieldsAndOpaqueID(t *testing.T) {
	db := newTestDB(t, &domain.WatchSession{})
	ctx := context.Background()

	start := time.Date(2026, 8, 27, 14, 0, 0, 0, time.UTC)
	s, err := CreateWatchSession(ctx, db, "u1", "content-42", domain.MoodHappy, "afternoon", start)
	if err != nil {
		t.Fatalf("CreateWatchSession: %v", err)
	}
	if s.ID == "" || s.Completed || s.EndTime != nil {
		t.Fatalf("unexpected new session: %+v", s)
	}
	if s.UserID != "u1" || s.ContentID != "content-42" || s.TimePeriod != "afternoon" {
		t.Fatalf("fields not persisted: %+v", s)
	}

	got, err := GetWatchSession(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("GetWatchSession: %v", err)
	}
	if got.MoodAtStart != domain.MoodHappy {
		t.Errorf("MoodAtStart = %q; want happy", got.MoodAtStart)
	}
}

func TestCreateWatchSession_DuplicateKeyConflicts(t *testing.T) {
	db := newTestDB(t, &domain.WatchSession{})
	ctx := context.Background()

	start := time.Date(2026, 8, 27, 14, 0, 0, 0, time.UTC)
	if _, err := CreateWatchSession(ctx, db, "u1", "c1", domain.MoodHappy, "afternoon", start); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Same user, content, and start instant: the unique key must refuse it.
	_, err := CreateWatchSession(ctx, db, "u1", "c1", domain.MoodHappy, "afternoon", start)
	if !errors.Is(err, ErrSessionKeyConflict) {
		t.Fatalf("err = %v; want ErrSessionKeyConflict", err)
	}
	// A different start instant is fine.
	if _, err := CreateWatchSession(ctx, db, "u1", "c1", domain.MoodHappy, "afternoon", start.Add(time.Second)); err != nil {
		t.Fatalf("second instant: %v", err)
	}
}

func TestGetWatchSession_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.WatchSession{})
	if _, err := GetWatchSession(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestUpdateSessionDuration_GuardsRegressionAndClosed(t *testing.T) {
	db := newTestDB(t, &domain.WatchSession{})
	ctx := context.Background()

	start := time.Date(2026, 8, 27, 14, 0, 0, 0, time.UTC)
	s, err := CreateWatchSession(ctx, db, "u1", "c1", domain.MoodHappy, "afternoon", start)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := UpdateSessionDuration(ctx, db, s.ID, 30)
	if err != nil || !ok {
		t.Fatalf("advance to 30 = %v,%v; want true,nil", ok, err)
	}
	// Regression: guarded WHERE affects zero rows.
	ok, err = UpdateSessionDuration(ctx, db, s.ID, 20)
	if err != nil || ok {
		t.Fatalf("regression to 20 = %v,%v; want false,nil", ok, err)
	}
	// Equal is allowed (duration is non-decreasing).
	ok, err = UpdateSessionDuration(ctx, db, s.ID, 30)
	if err != nil || !ok {
		t.Fatalf("equal update = %v,%v; want true,nil", ok, err)
	}

	if _, err := CloseWatchSession(ctx, db, s.ID, start.Add(time.Hour), true); err != nil {
		t.Fatalf("close: %v", err)
	}
	ok, err = UpdateSessionDuration(ctx, db, s.ID, 60)
	if err != nil || ok {
		t.Fatalf("update after close = %v,%v; want false,nil", ok, err)
	}
}

func TestCloseWatchSession_OnlyOnce(t *testing.T) {
	db := newTestDB(t, &domain.WatchSession{})
	ctx := context.Background()

	start := time.Date(2026, 8, 27, 14, 0, 0, 0, time.UTC)
	s, err := CreateWatchSession(ctx, db, "u1", "c1", domain.MoodNeutral, "afternoon", start)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	end := start.Add(45 * time.Minute)
	ok, err := CloseWatchSession(ctx, db, s.ID, end, true)
	if err != nil || !ok {
		t.Fatalf("first close = %v,%v; want true,nil", ok, err)
	}
	ok, err = CloseWatchSession(ctx, db, s.ID, end.Add(time.Minute), false)
	if err != nil || ok {
		t.Fatalf("second close = %v,%v; want false,nil", ok, err)
	}

	got, err := GetWatchSession(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Completed || got.EndTime == nil || got.UserSatisfied == nil || !*got.UserSatisfied {
		t.Fatalf("close not recorded: %+v", got)
	}
}

func TestListOpenSessions(t *testing.T) {
	db := newTestDB(t, &domain.WatchSession{})
	ctx := context.Background()

	start := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	a, _ := CreateWatchSession(ctx, db, "u1", "c1", domain.MoodHappy, "morning", start)
	b, _ := CreateWatchSession(ctx, db, "u1", "c2", domain.MoodHappy, "morning", start.Add(time.Minute))
	if _, err := CloseWatchSession(ctx, db, a.ID, start.Add(time.Hour), true); err != nil {
		t.Fatalf("close: %v", err)
	}

	open, err := ListOpenSessions(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListOpenSessions: %v", err)
	}
	if len(open) != 1 || open[0].ID != b.ID {
		t.Fatalf("open sessions = %+v; want only %s", open, b.ID)
	}
}
