package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
)

// ParseCount converts user-reported step or calorie input to a non-negative
// integer. Blank, non-numeric, negative and out-of-range input become 0.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	n, err := safecast.ToInt(v)
	if err != nil {
		return 0
	}
	return n
}

// ParseHours converts user-reported sleep input to non-negative hours.
// Blank, non-numeric, negative and non-finite input become 0.
func ParseHours(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// NewEntryInput builds an EntryInput from raw form values, coercing the
// numeric fields. Upper bounds are not enforced.
func NewEntryInput(date, steps, calories, sleep, notes string) EntryInput {
	return EntryInput{
		Date:       strings.TrimSpace(date),
		Steps:      ParseCount(steps),
		Calories:   ParseCount(calories),
		SleepHours: ParseHours(sleep),
		Notes:      notes,
	}
}
