package wellness

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRiskScore_ZeroDay(t *testing.T) {
	e := NewEngine()
	if got := e.RiskScore(Snapshot{}, 12); got != 0 {
		t.Fatalf("empty day risk = %v; want 0", got)
	}
	if got := e.WellnessScore(Snapshot{}, 12); got != 100 {
		t.Fatalf("empty day wellness = %v; want 100", got)
	}
}

func TestRiskScore_DocumentedScenario(t *testing.T) {
	// Five sessions totaling 130 minutes, longest 40, last ending at hour 23:
	// time-vs-goal 130/120*100 capped at 100 → 40.0
	// frequency 5/5*100 = 100        → 30.0
	// binge: max 40 < 180            →  0.0
	// unhealthy hours at 23          →  5.0
	e := NewEngine()
	s := Snapshot{TotalWatchMinutes: 130, SessionCount: 5, MaxSessionDuration: 40}
	if got := e.RiskScore(s, 23); got != 75 {
		t.Fatalf("risk = %v; want 75", got)
	}
	if got := e.WellnessScore(s, 23); got != 25 {
		t.Fatalf("wellness = %v; want 25", got)
	}
}

func TestRiskPlusWellnessIsAlways100(t *testing.T) {
	e := NewEngine()
	snaps := []Snapshot{
		{},
		{TotalWatchMinutes: 30, SessionCount: 1, MaxSessionDuration: 30},
		{TotalWatchMinutes: 130, SessionCount: 5, MaxSessionDuration: 200},
		{TotalWatchMinutes: 999, SessionCount: 50, MaxSessionDuration: 400},
	}
	for _, s := range snaps {
		for _, h := range []int{0, 4, 5, 12, 22, 23} {
			r := e.RiskScore(s, h)
			w := e.WellnessScore(s, h)
			if !almostEqual(r+w, 100) {
				t.Errorf("risk %v + wellness %v != 100 for %+v at hour %d", r, w, s, h)
			}
			if r < 0 || r > 100 {
				t.Errorf("risk out of range: %v", r)
			}
		}
	}
}

func TestBingeFactorLadder(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		max  int
		want float64
	}{
		{0, 0}, {179, 0}, {180, 50}, {239, 50}, {240, 80}, {299, 80}, {300, 100}, {500, 100},
	}
	for _, c := range cases {
		if got := e.bingeFactor(c.max); got != c.want {
			t.Errorf("bingeFactor(%d) = %v; want %v", c.max, got, c.want)
		}
	}
}

func TestLateHoursFactor(t *testing.T) {
	e := NewEngine()
	watched := Snapshot{TotalWatchMinutes: 10, SessionCount: 1}

	for _, h := range []int{23, 0, 4} {
		if got := e.lateHoursFactor(watched, h); got != 50 {
			t.Errorf("lateHoursFactor(hour=%d) = %v; want 50", h, got)
		}
	}
	for _, h := range []int{5, 12, 22} {
		if got := e.lateHoursFactor(watched, h); got != 0 {
			t.Errorf("lateHoursFactor(hour=%d) = %v; want 0", h, got)
		}
	}
	// No watching at all: never flagged.
	if got := e.lateHoursFactor(Snapshot{}, 23); got != 0 {
		t.Errorf("lateHoursFactor(empty, 23) = %v; want 0", got)
	}
}

func TestLevelLadder(t *testing.T) {
	e := NewEngine()
	cases := map[float64]string{
		0: LevelHealthy, 19.99: LevelHealthy,
		20: LevelModerate, 39.9: LevelModerate,
		40: LevelHigh, 59.9: LevelHigh,
		60: LevelVeryHigh, 79.9: LevelVeryHigh,
		80: LevelCritical, 100: LevelCritical,
	}
	for score, want := range cases {
		if got := e.Level(score); got != want {
			t.Errorf("Level(%v) = %q; want %q", score, got, want)
		}
	}
}

func TestShouldBreak(t *testing.T) {
	e := NewEngine()
	cases := map[int]bool{
		0: false, 15: false, 30: true, 45: false, 60: true, 90: true, 91: false,
	}
	for d, want := range cases {
		if got := e.ShouldBreak(d); got != want {
			t.Errorf("ShouldBreak(%d) = %v; want %v", d, got, want)
		}
	}
}

func TestThrottleFactor_LadderAndMonotonicity(t *testing.T) {
	e := NewEngine()
	cases := map[float64]float64{
		0: 1.0, 59.9: 1.0, 60: 0.5, 75: 0.5, 75.01: 0.2, 100: 0.2,
	}
	for score, want := range cases {
		if got := e.ThrottleFactor(score); got != want {
			t.Errorf("ThrottleFactor(%v) = %v; want %v", score, got, want)
		}
	}
	// Monotone: higher risk never yields a larger factor.
	prev := 1.0
	for score := 0.0; score <= 100; score += 0.5 {
		f := e.ThrottleFactor(score)
		if f > prev {
			t.Fatalf("throttle factor increased at score %v: %v > %v", score, f, prev)
		}
		prev = f
	}
}

func TestAssembleDashboard(t *testing.T) {
	e := NewEngine()
	in := DashboardInput{
		Today:      Snapshot{TotalWatchMinutes: 90, SessionCount: 2, MaxSessionDuration: 60},
		BreakCount: 3,
		Hour:       14,
		TrendDates: []string{"2026-08-21", "2026-08-22", "2026-08-23"},
		TrendScores: map[string]float64{
			"2026-08-22": 42.5,
		},
	}
	d := e.Assemble(in)

	if d.RemainingGoal != 30 || d.ExceededGoal {
		t.Errorf("remaining=%d exceeded=%v; want 30,false", d.RemainingGoal, d.ExceededGoal)
	}
	if !almostEqual(d.RiskScore+d.WellnessScore, 100) {
		t.Errorf("risk %v + wellness %v != 100", d.RiskScore, d.WellnessScore)
	}
	if d.BreakCount != 3 || d.SessionCount != 2 || d.MaxSessionDuration != 60 {
		t.Errorf("aggregates not carried: %+v", d)
	}
	if len(d.WeekTrend) != 3 {
		t.Fatalf("trend length = %d; want 3", len(d.WeekTrend))
	}
	// Missing days are risk 0 / wellness 100; order is oldest first.
	if d.WeekTrend[0].RiskScore != 0 || d.WeekTrend[0].WellnessScore != 100 {
		t.Errorf("missing day trend = %+v", d.WeekTrend[0])
	}
	if d.WeekTrend[1].RiskScore != 42.5 || d.WeekTrend[1].WellnessScore != 57.5 {
		t.Errorf("stored day trend = %+v", d.WeekTrend[1])
	}
	if d.StatusMessage == "" || len(d.Recommendations) == 0 {
		t.Errorf("status/recommendations missing: %+v", d)
	}
	if d.ThrottleFactor != 1.0 || d.ThrottleReason != "no throttling" {
		t.Errorf("throttle = %v %q; want full service at low risk", d.ThrottleFactor, d.ThrottleReason)
	}
}

func TestRemainingGoalFloorsAtZero(t *testing.T) {
	e := NewEngine()
	d := e.Assemble(DashboardInput{
		Today: Snapshot{TotalWatchMinutes: 500, SessionCount: 4, MaxSessionDuration: 200},
		Hour:  20,
	})
	if d.RemainingGoal != 0 {
		t.Fatalf("remaining goal = %d; want 0", d.RemainingGoal)
	}
	if !d.ExceededGoal {
		t.Fatal("exceeded goal should be true")
	}
}
