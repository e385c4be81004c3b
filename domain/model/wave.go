package model

import (
	"fmt"
	"time"
)

// Wave year range accepted at write time. MaxYear is exclusive.
const (
	MinWaveYear = 2025
	MaxWaveYear = 2124
)

// Wave is a scheduling anchor on the delivery timeline. Waves are
// totally ordered by (year, quarter); the display name is always
// derived from those two fields, never accepted from input.
type Wave struct {
	ID      string    `json:"id"`
	Year    int       `json:"year"`
	Quarter int       `json:"quarter"`
	Date    time.Time `json:"date"`
}

// Name returns the derived display name, e.g. "2026.1".
func (w Wave) Name() string {
	return fmt.Sprintf("%d.%d", w.Year, w.Quarter)
}

// Compare orders waves lexicographically by (year, quarter). It
// returns a negative value if w sorts before o, zero if they share
// the same slot, and a positive value otherwise.
func (w Wave) Compare(o Wave) int {
	if w.Year != o.Year {
		return w.Year - o.Year
	}
	return w.Quarter - o.Quarter
}

// Before reports whether w sorts strictly before o on the timeline.
func (w Wave) Before(o Wave) bool {
	return w.Compare(o) < 0
}

// Validate range-checks year and quarter and returns the itemized
// list of violations.
func (w Wave) Validate() []string {
	var violations []string
	if w.Year < MinWaveYear || w.Year >= MaxWaveYear {
		violations = append(violations, fmt.Sprintf("year %d outside [%d,%d)", w.Year, MinWaveYear, MaxWaveYear))
	}
	if w.Quarter < 1 || w.Quarter > 4 {
		violations = append(violations, fmt.Sprintf("quarter %d outside [1,4]", w.Quarter))
	}
	if w.Date.IsZero() {
		violations = append(violations, "date is required")
	}
	return violations
}
