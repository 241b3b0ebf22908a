// Package timeofday maps clock hours to viewing periods and scores how well a
// content genre fits the current period. It is a stateless lookup service:
// all tables are fixed at compile time and every function is a pure function
// of its arguments.
package timeofday

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHour is returned when an hour outside [0,23] is supplied.
var ErrInvalidHour = errors.New("hour must be in [0,23]")

// Period names the four disjoint day segments. Together they cover all 24
// hours, with night wrapping around midnight.
type Period string

// The four viewing periods.
const (
	Morning   Period = "morning"   // [6,11]
	Afternoon Period = "afternoon" // [12,16]
	Evening   Period = "evening"   // [17,21]
	Night     Period = "night"     // [22,23] ∪ [0,5]
)

// neutralScore is used for genres a period's table does not mention.
const neutralScore = 0.5

// maxDuration holds the maximum recommended session length per period,
// in minutes.
var maxDuration = map[Period]int{
	Morning:   30,
	Afternoon: 90,
	Evening:   180,
	Night:     45,
}

// genreScores holds per-period genre suitability in [0,1]. The special "all"
// key (evening) applies to any genre the table does not list explicitly.
var genreScores = map[Period]map[string]float64{
	Morning: {
		"educational": 1.0,
		"news":        0.95,
		"documentary": 0.85,
		"short_film":  0.8,
		"action":      0.4,
		"horror":      0.1,
	},
	Afternoon: {
		"action":    1.0,
		"adventure": 0.95,
		"comedy":    0.9,
		"horror":    0.3,
	},
	Evening: {
		"drama":    0.95,
		"thriller": 0.9,
		"sci-fi":   0.9,
		"all":      0.8,
	},
	Night: {
		"relaxing":    1.0,
		"documentary": 0.9,
		"action":      0.3,
		"horror":      0.05,
	},
}

// PeriodForHour returns the viewing period covering hour. Hours outside
// [0,23] fail with ErrInvalidHour.
func PeriodForHour(hour int) (Period, error) {
	switch {
	case hour < 0 || hour > 23:
		return "", fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	case hour >= 6 && hour <= 11:
		return Morning, nil
	case hour >= 12 && hour <= 16:
		return Afternoon, nil
	case hour >= 17 && hour <= 21:
		return Evening, nil
	default:
		return Night, nil
	}
}

// Suitability returns the [0,1] fit of genre for the period covering hour.
// Unknown genres score the period's "all" entry when present, otherwise a
// neutral 0.5. Genre matching is case-insensitive.
func Suitability(genre string, hour int) (float64, error) {
	p, err := PeriodForHour(hour)
	if err != nil {
		return 0, err
	}
	table := genreScores[p]
	if s, ok := table[strings.ToLower(strings.TrimSpace(genre))]; ok {
		return s, nil
	}
	if s, ok := table["all"]; ok {
		return s, nil
	}
	return neutralScore, nil
}

// MaxDuration returns the maximum recommended session length in minutes for
// the period covering hour.
func MaxDuration(hour int) (int, error) {
	p, err := PeriodForHour(hour)
	if err != nil {
		return 0, err
	}
	return maxDuration[p], nil
}

// IsDurationAcceptable reports whether a session of the given length fits the
// period covering hour.
func IsDurationAcceptable(minutes, hour int) (bool, error) {
	max, err := MaxDuration(hour)
	if err != nil {
		return false, err
	}
	return minutes <= max, nil
}

// GenreAverage returns the mean suitability of genres at hour. An empty genre
// list scores neutral; callers that consider that an error should check first.
func GenreAverage(genres []string, hour int) (float64, error) {
	if _, err := PeriodForHour(hour); err != nil {
		return 0, err
	}
	if len(genres) == 0 {
		return neutralScore, nil
	}
	var sum float64
	for _, g := range genres {
		s, err := Suitability(g, hour)
		if err != nil {
			return 0, err
		}
		sum += s
	}
	return sum / float64(len(genres)), nil
}
