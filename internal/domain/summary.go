package domain

import (
	"math"

	"github.com/samber/lo"
)

// Summary holds the dashboard statistics for a set of entries.
type Summary struct {
	Count         int     `json:"count"`
	TotalSteps    int     `json:"totalSteps"`
	TotalCalories int     `json:"totalCalories"`
	AverageSleep  float64 `json:"averageSleep"`
}

// Summarize computes all statistics in one call.
func Summarize(entries []FitnessEntry) Summary {
	return Summary{
		Count:         len(entries),
		TotalSteps:    TotalSteps(entries),
		TotalCalories: TotalCalories(entries),
		AverageSleep:  AverageSleep(entries),
	}
}

// TotalSteps sums the step counts.
func TotalSteps(entries []FitnessEntry) int {
	return lo.SumBy(entries, func(e FitnessEntry) int { return e.Steps })
}

// TotalCalories sums the calorie counts.
func TotalCalories(entries []FitnessEntry) int {
	return lo.SumBy(entries, func(e FitnessEntry) int { return e.Calories })
}

// AverageSleep returns mean sleep hours rounded to two decimals, or 0 when
// there are no entries.
func AverageSleep(entries []FitnessEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	total := lo.SumBy(entries, func(e FitnessEntry) float64 { return e.SleepHours })
	return round2(total / float64(len(entries)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
