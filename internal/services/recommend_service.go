// Package services – RecommendationService
//
// This file implements RecommendationService, which blends collaborative and
// content-based candidate lists with mood affinity and time-of-day suitability
// into a single ranked recommendation set. The blend is deterministic: the
// same inputs always produce the same ordering, with explicit tie-breaking.
//
// High addiction risk throttles the set length, so heavy watching days get
// fewer suggestions rather than more.
//
// Observability: the public method is OpenTelemetry-instrumented; spans
// include user/mood identifiers and the requested count.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-watchwell-backend/internal/affinity"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/timeofday"
	"github.com/tbourn/go-watchwell-backend/internal/wellness"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Signal weights for the ensemble blend. They sum to 1.0 so the final score
// stays in [0,1] when every signal does.
const (
	weightCollaborative = 0.40
	weightContent       = 0.30
	weightMood          = 0.20
	weightTime          = 0.10
)

// DefaultMaxCandidates caps each incoming candidate list when the service is
// not configured otherwise.
const DefaultMaxCandidates = 20

// Candidate is one scored content item supplied by an upstream recommender.
type Candidate struct {
	ID              string   `json:"content_id"`
	Title           string   `json:"title"`
	Score           float64  `json:"score"`
	Genres          []string `json:"genres"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
}

// Recommendation is one blended result with its per-signal breakdown.
type Recommendation struct {
	ContentID       string  `json:"content_id"`
	Title           string  `json:"title,omitempty"`
	FinalScore      float64 `json:"final_score"`
	CollabScore     float64 `json:"collaborative_score"`
	ContentScore    float64 `json:"content_score"`
	MoodScore       float64 `json:"mood_match"`
	TimeScore       float64 `json:"time_suitability"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Reasoning       string  `json:"reasoning"`
}

// RecommendationSet is the full response: the ranked items plus the context
// and throttling decision they were produced under.
type RecommendationSet struct {
	Mood           string           `json:"mood"`
	TimePeriod     string           `json:"time_period"`
	Requested      int              `json:"requested"`
	Served         int              `json:"served"`
	Throttled      bool             `json:"throttled"`
	ThrottleFactor float64          `json:"throttle_factor"`
	ThrottleReason string           `json:"throttle_reason,omitempty"`
	RiskScore      float64          `json:"addiction_risk_score"`
	Items          []Recommendation `json:"recommendations"`
}

// RecommendationService blends candidate lists into mood- and time-aware
// recommendations, throttled by the day's addiction risk.
type RecommendationService struct {
	// DB is the GORM handle used to read the day's metrics for throttling.
	DB *gorm.DB
	// Matrix is the mood-genre affinity matrix.
	Matrix affinity.Matrix
	// Engine supplies risk scoring and the throttle ladder.
	Engine *wellness.Engine

	// MaxCandidates caps each incoming list; zero means DefaultMaxCandidates.
	MaxCandidates int
	// GenreLocale selects the casing locale for genre labels in reasoning.
	GenreLocale language.Tag

	// Now supplies the current time; tests override it.
	Now func() time.Time
}

// NewRecommendationService constructs a RecommendationService with defaults.
func NewRecommendationService(db *gorm.DB, matrix affinity.Matrix, engine *wellness.Engine) *RecommendationService {
	return &RecommendationService{
		DB:            db,
		Matrix:        matrix,
		Engine:        engine,
		MaxCandidates: DefaultMaxCandidates,
		GenreLocale:   language.English,
		Now:           time.Now,
	}
}

// Recommend blends the two candidate lists for the user's mood and the current
// hour. Candidates appearing in only one list keep a zero score for the
// missing signal. Ordering is final score descending, collaborative score
// descending on ties, then content id ascending so equal inputs cannot
// reorder between calls.
func (s *RecommendationService) Recommend(ctx context.Context, userID, mood string, n int, collab, content []Candidate) (*RecommendationSet, error) {
	tr := otel.Tracer("services/RecommendationService")
	ctx, span := tr.Start(ctx, "Recommend",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("mood", mood),
			attribute.Int("requested", n),
		),
	)
	defer span.End()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	if len(collab) == 0 && len(content) == 0 {
		return nil, ErrEmptyCandidates
	}
	if !s.Matrix.Knows(mood) {
		return nil, ErrInvalidMood
	}

	max := s.MaxCandidates
	if max <= 0 {
		max = DefaultMaxCandidates
	}
	if len(collab) > max {
		collab = collab[:max]
	}
	if len(content) > max {
		content = content[:max]
	}

	now := s.now()
	hour := now.Hour()
	period, err := timeofday.PeriodForHour(hour)
	if err != nil {
		return nil, err
	}

	merged := s.union(collab, content)
	items := make([]Recommendation, 0, len(merged))
	caser := cases.Title(s.locale())
	for _, c := range merged {
		moodScore := s.moodScore(c.Genres, mood)
		timeScore, err := timeofday.GenreAverage(c.Genres, hour)
		if err != nil {
			return nil, err
		}
		final := c.collab*weightCollaborative +
			c.content*weightContent +
			moodScore*weightMood +
			timeScore*weightTime

		items = append(items, Recommendation{
			ContentID:       c.ID,
			Title:           c.Title,
			FinalScore:      round4(final),
			CollabScore:     round4(c.collab),
			ContentScore:    round4(c.content),
			MoodScore:       round4(moodScore),
			TimeScore:       round4(timeScore),
			DurationMinutes: c.duration,
			Reasoning:       s.reasoning(caser, c, mood, string(period), moodScore, timeScore),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].FinalScore != items[j].FinalScore {
			return items[i].FinalScore > items[j].FinalScore
		}
		if items[i].CollabScore != items[j].CollabScore {
			return items[i].CollabScore > items[j].CollabScore
		}
		return items[i].ContentID < items[j].ContentID
	})

	risk, err := s.currentRisk(ctx, userID, hour)
	if err != nil {
		return nil, err
	}
	factor := s.Engine.ThrottleFactor(risk)
	limit := n
	if t := int(math.Floor(float64(n) * factor)); t < limit {
		limit = t
	}
	if limit > len(items) {
		limit = len(items)
	}

	set := &RecommendationSet{
		Mood:           mood,
		TimePeriod:     string(period),
		Requested:      n,
		Served:         limit,
		Throttled:      factor < 1.0,
		ThrottleFactor: factor,
		RiskScore:      risk,
		Items:          items[:limit],
	}
	if set.Throttled {
		set.ThrottleReason = s.Engine.ThrottleReason(risk)
	}
	return set, nil
}

// mergedCandidate carries one union entry with both signal scores.
type mergedCandidate struct {
	ID       string
	Title    string
	Genres   []string
	duration int
	collab   float64
	content  float64
}

// union merges the two lists by content id, keeping the first non-empty
// metadata seen for each item. Insertion order follows collab then content so
// the pre-sort order is stable.
func (s *RecommendationService) union(collab, content []Candidate) []mergedCandidate {
	index := make(map[string]int, len(collab)+len(content))
	out := make([]mergedCandidate, 0, len(collab)+len(content))

	add := func(c Candidate, isCollab bool) {
		i, ok := index[c.ID]
		if !ok {
			index[c.ID] = len(out)
			out = append(out, mergedCandidate{ID: c.ID, Title: c.Title, Genres: c.Genres, duration: c.DurationMinutes})
			i = len(out) - 1
		}
		m := &out[i]
		if m.Title == "" {
			m.Title = c.Title
		}
		if len(m.Genres) == 0 {
			m.Genres = c.Genres
		}
		if m.duration == 0 {
			m.duration = c.DurationMinutes
		}
		if isCollab {
			m.collab = c.Score
		} else {
			m.content = c.Score
		}
	}
	for _, c := range collab {
		add(c, true)
	}
	for _, c := range content {
		add(c, false)
	}
	return out
}

// moodScore returns the mean affinity of the candidate's genres; candidates
// without genre metadata score neutral rather than failing the whole request.
func (s *RecommendationService) moodScore(genres []string, mood string) float64 {
	score, err := s.Matrix.ScoreContent(genres, mood)
	if err != nil {
		return 0.5
	}
	return score
}

// currentRisk scores today's stored aggregates; a day with no metrics row yet
// is zero risk.
func (s *RecommendationService) currentRisk(ctx context.Context, userID string, hour int) (float64, error) {
	m, err := repo.GetDailyMetrics(ctx, s.DB.WithContext(ctx), userID, repo.DateKey(s.now()))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	snap := wellness.Snapshot{
		TotalWatchMinutes:  m.TotalWatchMinutes,
		SessionCount:       m.SessionCount,
		MaxSessionDuration: m.MaxSessionDuration,
	}
	return s.Engine.RiskScore(snap, hour), nil
}

// reasoning phrases why an item ranked where it did, from its dominant
// signals.
func (s *RecommendationService) reasoning(caser cases.Caser, c mergedCandidate, mood, period string, moodScore, timeScore float64) string {
	parts := make([]string, 0, 3)

	switch {
	case c.collab >= c.content && c.collab > 0:
		parts = append(parts, "viewers like you enjoyed this")
	case c.content > 0:
		parts = append(parts, "similar to what you usually watch")
	}

	if moodScore >= 0.7 {
		if g := s.topGenre(c.Genres, mood); g != "" {
			parts = append(parts, fmt.Sprintf("%s matches your %s mood", caser.String(g), mood))
		} else {
			parts = append(parts, fmt.Sprintf("matches your %s mood", mood))
		}
	}
	if timeScore >= 0.7 {
		parts = append(parts, fmt.Sprintf("well suited for %s viewing", period))
	}

	if len(parts) == 0 {
		return "a balanced pick across your signals"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// topGenre returns the candidate genre with the highest affinity for mood,
// empty when no genre beats the neutral default.
func (s *RecommendationService) topGenre(genres []string, mood string) string {
	best, bestScore := "", 0.5
	for _, g := range genres {
		score, err := s.Matrix.Affinity(mood, g)
		if err != nil {
			continue
		}
		if score > bestScore || (score == bestScore && best != "" && g < best) {
			best, bestScore = g, score
		}
	}
	return best
}

func (s *RecommendationService) locale() language.Tag {
	if s.GenreLocale == language.Und {
		return language.English
	}
	return s.GenreLocale
}

func (s *RecommendationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// round4 keeps reported scores stable across float formatting.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
