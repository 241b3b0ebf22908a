// Package affinity implements the mood-genre affinity matrix and the content
// scoring built on top of it. The matrix is plain data: a score in [0,1] per
// (mood, genre) pair, with 0.5 for any genre a mood does not list. A Matrix
// carries no other state, so instances are safe for concurrent reads.
package affinity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors surfaced to the service layer.
var (
	// ErrUnknownMood is returned when the mood is not in the matrix.
	ErrUnknownMood = errors.New("unknown mood")

	// ErrNoGenres is returned when content carries no genres to score.
	ErrNoGenres = errors.New("content has no genres")
)

// defaultScore applies to genres a mood's row does not mention.
const defaultScore = 0.5

// Matrix maps mood → genre → affinity score in [0,1].
type Matrix map[string]map[string]float64

// Default returns the built-in affinity matrix.
func Default() Matrix {
	return Matrix{
		"happy": {
			"comedy": 0.95, "musical": 0.92, "adventure": 0.85, "animation": 0.88,
			"action": 0.72, "romance": 0.80, "horror": 0.15,
		},
		"sad": {
			"drama": 0.95, "documentary": 0.85, "thriller": 0.75, "crime": 0.70,
			"horror": 0.65, "romance": 0.65, "animation": 0.30,
		},
		"neutral": {
			"action": 0.85, "adventure": 0.75, "sci-fi": 0.80, "thriller": 0.75,
			"drama": 0.65, "documentary": 0.70, "horror": 0.50,
		},
	}
}

// FromEntries builds a Matrix from flat (mood, genre, score) rows, as loaded
// from the mood_affinity table. Moods and genres are lowercased.
func FromEntries(rows []struct {
	Mood, Genre string
	Score       float64
}) Matrix {
	m := Matrix{}
	for _, r := range rows {
		mood := strings.ToLower(strings.TrimSpace(r.Mood))
		genre := strings.ToLower(strings.TrimSpace(r.Genre))
		if mood == "" || genre == "" {
			continue
		}
		if m[mood] == nil {
			m[mood] = map[string]float64{}
		}
		m[mood][genre] = r.Score
	}
	return m
}

// Affinity returns the score for (mood, genre). Unknown genres score 0.5;
// an unknown mood fails with ErrUnknownMood.
func (m Matrix) Affinity(mood, genre string) (float64, error) {
	row, ok := m[normalize(mood)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMood, mood)
	}
	if s, ok := row[normalize(genre)]; ok {
		return s, nil
	}
	return defaultScore, nil
}

// ScoreContent returns the arithmetic mean affinity of the content's genres
// for mood. Content with zero genres fails with ErrNoGenres.
func (m Matrix) ScoreContent(genres []string, mood string) (float64, error) {
	if len(genres) == 0 {
		return 0, ErrNoGenres
	}
	var sum float64
	for _, g := range genres {
		s, err := m.Affinity(mood, g)
		if err != nil {
			return 0, err
		}
		sum += s
	}
	return sum / float64(len(genres)), nil
}

// Candidate is the minimal shape Rank needs: an identifier and the genres the
// mood score is computed from.
type Candidate struct {
	ID     string
	Genres []string
}

// Ranked pairs a candidate with its computed mood score.
type Ranked struct {
	Candidate
	MoodScore float64
}

// Rank sorts candidates descending by mood score. Ties keep the original
// order, preserving whatever upstream ranking signal the caller supplied.
func (m Matrix) Rank(candidates []Candidate, mood string) ([]Ranked, error) {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		s, err := m.ScoreContent(c.Genres, mood)
		if err != nil {
			return nil, err
		}
		out = append(out, Ranked{Candidate: c, MoodScore: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MoodScore > out[j].MoodScore
	})
	return out, nil
}

// GenreScore is one (genre, score) pair returned by BestGenres.
type GenreScore struct {
	Genre string  `json:"genre"`
	Score float64 `json:"score"`
}

// BestGenres returns the topN genres for mood ordered by descending score,
// ties broken alphabetically. An unknown mood fails with ErrUnknownMood.
func (m Matrix) BestGenres(mood string, topN int) ([]GenreScore, error) {
	row, ok := m[normalize(mood)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMood, mood)
	}
	out := make([]GenreScore, 0, len(row))
	for g, s := range row {
		out = append(out, GenreScore{Genre: g, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Genre < out[j].Genre
	})
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out, nil
}

// Moods returns the moods the matrix knows, sorted for determinism.
func (m Matrix) Moods() []string {
	out := make([]string, 0, len(m))
	for mood := range m {
		out = append(out, mood)
	}
	sort.Strings(out)
	return out
}

// Knows reports whether mood has a row in the matrix.
func (m Matrix) Knows(mood string) bool {
	_, ok := m[normalize(mood)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
