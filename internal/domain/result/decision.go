package result

import (
	"github.com/shopspring/decimal"

	"github.com/school-hub/gradebook/internal/domain/assessment"
)

// DefaultFrequencyFloor is the minimum attendance percentage for approval.
const DefaultFrequencyFloor = 75.0

// DefaultOverallPrecision rounds the overall average when no config applies.
const DefaultOverallPrecision = 2

// Decide returns the year-end outcome. Rules are applied in order:
// frequency below floor retains; no config or no average approves; an
// average at or above the passing grade approves; anything else retains.
func Decide(frequency float64, average *float64, cfg *assessment.Config, floor float64) Outcome {
	if frequency < floor {
		return OutcomeRetained
	}
	if cfg == nil || average == nil {
		return OutcomeApproved
	}
	if *average >= cfg.PassingGradeOrDefault() {
		return OutcomeApproved
	}
	return OutcomeRetained
}

// OverallAverage is the unrounded mean of the period averages that have a
// numeric value. Nil when none has a value. Decide takes this value as is.
func OverallAverage(averages []PeriodAverage) *float64 {
	sum := decimal.Zero
	n := 0
	for _, pa := range averages {
		if pa.NumericAverage == nil {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(*pa.NumericAverage))
		n++
	}
	if n == 0 {
		return nil
	}
	mean, _ := sum.Div(decimal.NewFromInt(int64(n))).Float64()
	return &mean
}

// RoundOverall rounds an overall average for storage. Nil stays nil.
func RoundOverall(average *float64, precision int) *float64 {
	if average == nil {
		return nil
	}
	v := assessment.Round(*average, precision)
	return &v
}
