package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-watchwell-backend/internal/affinity"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/wellness"
)

func newTestRecService(t *testing.T) *RecommendationService {
	t.Helper()
	s := NewRecommendationService(newSvcDB(t), affinity.Default(), wellness.NewEngine())
	s.Now = afternoonClock()
	return s
}

func TestRecommend_BlendsAndOrders(t *testing.T) {
	s := newTestRecService(t)

	collab := []Candidate{
		{ID: "a", Title: "Laugh Track", Score: 0.9, Genres: []string{"comedy"}},
		{ID: "c", Title: "Quiet Drama", Score: 0.5, Genres: []string{"drama"}},
	}
	content := []Candidate{
		{ID: "b", Title: "Punch Line", Score: 0.8, Genres: []string{"action"}},
		{ID: "c", Score: 0.5},
	}

	set, err := s.Recommend(context.Background(), "u1", "happy", 10, collab, content)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if set.TimePeriod != "afternoon" || set.Throttled {
		t.Fatalf("context = %+v; want afternoon, unthrottled", set)
	}
	if set.Served != 3 || len(set.Items) != 3 {
		t.Fatalf("served = %d items %d; want all 3", set.Served, len(set.Items))
	}

	// a: 0.4*0.9 + 0.2*0.95 + 0.1*0.9 = 0.64
	// c: 0.4*0.5 + 0.3*0.5 + 0.2*0.5 + 0.1*0.5 = 0.50 (drama is neutral for happy/afternoon)
	// b: 0.3*0.8 + 0.2*0.72 + 0.1*1.0 = 0.484
	wantOrder := []string{"a", "c", "b"}
	for i, want := range wantOrder {
		if set.Items[i].ContentID != want {
			t.Fatalf("order = %v; want %v", ids(set.Items), wantOrder)
		}
	}
	if set.Items[0].FinalScore != 0.64 {
		t.Errorf("top score = %v; want 0.64", set.Items[0].FinalScore)
	}

	// "c" appears in both lists: one merged entry with both signals, and its
	// metadata comes from whichever list supplied it.
	c := set.Items[1]
	if c.CollabScore != 0.5 || c.ContentScore != 0.5 || c.Title != "Quiet Drama" {
		t.Errorf("merged item = %+v; want both 0.5 scores and collab title", c)
	}
}

func TestRecommend_TieBreaks(t *testing.T) {
	s := newTestRecService(t)

	// Same blend components, ids force the last tie-break.
	collab := []Candidate{
		{ID: "zeta", Score: 0.6, Genres: []string{"comedy"}},
		{ID: "alpha", Score: 0.6, Genres: []string{"comedy"}},
	}
	set, err := s.Recommend(context.Background(), "u1", "happy", 5, collab, nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if set.Items[0].ContentID != "alpha" || set.Items[1].ContentID != "zeta" {
		t.Fatalf("id tie-break order = %v; want alpha, zeta", ids(set.Items))
	}

	// Equal final scores, different collaborative signals: collab wins.
	// x: 0.4*0.6 = 0.24 collab-side; y: 0.3*0.8 = 0.24 content-side.
	collab = []Candidate{{ID: "x", Score: 0.6, Genres: []string{"comedy"}}}
	content := []Candidate{{ID: "y", Score: 0.8, Genres: []string{"comedy"}}}
	set, err = s.Recommend(context.Background(), "u1", "happy", 5, collab, content)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if set.Items[0].ContentID != "x" {
		t.Fatalf("collab tie-break order = %v; want x first", ids(set.Items))
	}
}

func TestRecommend_ThrottlesOnRisk(t *testing.T) {
	s := newTestRecService(t)
	ctx := context.Background()

	// A heavy day: 300 minutes over two sessions, longest 200.
	// Risk = 100*0.4 + 40*0.3 + 50*0.2 = 62 -> factor 0.5.
	if _, err := repo.EnsureDailyMetrics(ctx, s.DB, "u1", "2026-08-27"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, d := range []int{200, 100} {
		if err := repo.ApplySessionClose(ctx, s.DB, "u1", "2026-08-27", d); err != nil {
			t.Fatalf("close %d: %v", d, err)
		}
	}

	candidates := make([]Candidate, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		candidates = append(candidates, Candidate{ID: id, Score: 0.5, Genres: []string{"comedy"}})
	}
	set, err := s.Recommend(ctx, "u1", "happy", 6, candidates, nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if set.RiskScore != 62 {
		t.Fatalf("risk = %v; want 62", set.RiskScore)
	}
	if !set.Throttled || set.ThrottleFactor != 0.5 || set.Served != 3 {
		t.Fatalf("throttle = %+v; want factor 0.5 serving 3 of 6", set)
	}
	if set.ThrottleReason == "" {
		t.Error("throttled set missing reason")
	}
}

func TestRecommend_InputValidation(t *testing.T) {
	s := newTestRecService(t)
	ctx := context.Background()
	valid := []Candidate{{ID: "a", Score: 0.5, Genres: []string{"comedy"}}}

	if _, err := s.Recommend(ctx, "u1", "happy", 0, valid, nil); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("limit err = %v; want ErrInvalidLimit", err)
	}
	if _, err := s.Recommend(ctx, "u1", "happy", 5, nil, nil); !errors.Is(err, ErrEmptyCandidates) {
		t.Fatalf("empty err = %v; want ErrEmptyCandidates", err)
	}
	if _, err := s.Recommend(ctx, "u1", "furious", 5, valid, nil); !errors.Is(err, ErrInvalidMood) {
		t.Fatalf("mood err = %v; want ErrInvalidMood", err)
	}
}

func TestRecommend_CapsCandidateLists(t *testing.T) {
	s := newTestRecService(t)
	s.MaxCandidates = 2

	collab := []Candidate{
		{ID: "a", Score: 0.9, Genres: []string{"comedy"}},
		{ID: "b", Score: 0.8, Genres: []string{"comedy"}},
		{ID: "c", Score: 0.7, Genres: []string{"comedy"}},
	}
	set, err := s.Recommend(context.Background(), "u1", "happy", 10, collab, nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(set.Items) != 2 {
		t.Fatalf("items = %v; want list capped at 2", ids(set.Items))
	}
}

func TestRecommend_ReasoningNamesSignals(t *testing.T) {
	s := newTestRecService(t)

	collab := []Candidate{{ID: "a", Score: 0.9, Genres: []string{"comedy"}}}
	set, err := s.Recommend(context.Background(), "u1", "happy", 5, collab, nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	r := set.Items[0].Reasoning
	if r == "" {
		t.Fatal("missing reasoning")
	}
	// Strong mood affinity names the genre with title casing.
	if want := "Comedy matches your happy mood"; !strings.Contains(r, want) {
		t.Errorf("reasoning = %q; want it to contain %q", r, want)
	}
}

func ids(items []Recommendation) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ContentID
	}
	return out
}
