package assessment

import (
	"github.com/shopspring/decimal"
)

// Strategy averages the regular grades of a scope and applies a recovery grade.
// Implementations are pure.
type Strategy interface {
	// AverageOf returns the rounded average of the regular grades, or nil when
	// there is nothing to average.
	AverageOf(grades []Grade, cfg Config) *float64

	// ApplyRecovery combines an existing average with a recovery grade according
	// to the config's recovery policy.
	ApplyRecovery(original, recovery float64, cfg Config) float64
}

// StrategyFor returns the strategy of a grade type.
func StrategyFor(t GradeType) (Strategy, bool) {
	switch t {
	case GradeTypeNumeric:
		return NumericStrategy{}, true
	case GradeTypeConceptual:
		return ConceptualStrategy{}, true
	case GradeTypeDescriptive:
		return DescriptiveStrategy{}, true
	default:
		return nil, false
	}
}

// Round rounds value to places decimal places, half away from zero.
func Round(value float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	f, _ := decimal.NewFromFloat(value).Round(int32(places)).Float64()
	return f
}

func mean(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Div(decimal.NewFromInt(int64(len(values)))).Float64()
	return f
}

func applyPolicy(original, recovery float64, cfg Config) float64 {
	var v float64
	switch cfg.RecoveryPolicy {
	case RecoveryHigher:
		v = original
		if recovery > v {
			v = recovery
		}
	case RecoveryAverage:
		v = mean([]float64{original, recovery})
	default:
		v = recovery
	}
	return Round(v, cfg.RoundingPrecision)
}

// ══════════════════════════════════════════════════════════════════════════════
// NUMERIC
// ══════════════════════════════════════════════════════════════════════════════

// NumericStrategy averages numeric grade values, arithmetic or weighted.
type NumericStrategy struct{}

// AverageOf implements Strategy.
func (NumericStrategy) AverageOf(grades []Grade, cfg Config) *float64 {
	regular := make([]Grade, 0, len(grades))
	for _, g := range grades {
		if g.IsRecovery || g.NumericValue == nil {
			continue
		}
		regular = append(regular, g)
	}
	if len(regular) == 0 {
		return nil
	}

	var avg float64
	if cfg.Formula == FormulaWeighted {
		weighted := decimal.Zero
		total := decimal.Zero
		for _, g := range regular {
			w := decimal.NewFromFloat(cfg.InstrumentWeight(g.InstrumentID))
			weighted = weighted.Add(decimal.NewFromFloat(*g.NumericValue).Mul(w))
			total = total.Add(w)
		}
		if total.IsZero() {
			avg = 0
		} else {
			avg, _ = weighted.Div(total).Float64()
		}
	} else {
		values := make([]float64, len(regular))
		for i, g := range regular {
			values[i] = *g.NumericValue
		}
		avg = mean(values)
	}

	avg = Round(avg, cfg.RoundingPrecision)
	return &avg
}

// ApplyRecovery implements Strategy.
func (NumericStrategy) ApplyRecovery(original, recovery float64, cfg Config) float64 {
	return applyPolicy(original, recovery, cfg)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCEPTUAL
// ══════════════════════════════════════════════════════════════════════════════

// ConceptualStrategy maps conceptual codes through the scale and averages the
// numeric equivalents. Codes missing from the scale are ignored.
type ConceptualStrategy struct{}

// AverageOf implements Strategy.
func (ConceptualStrategy) AverageOf(grades []Grade, cfg Config) *float64 {
	var mapped []float64
	for _, g := range grades {
		if g.IsRecovery || g.ConceptualValue == nil {
			continue
		}
		if eq, ok := cfg.ScaleEquivalent(*g.ConceptualValue); ok {
			mapped = append(mapped, eq)
		}
	}
	if len(mapped) == 0 {
		return nil
	}
	avg := Round(mean(mapped), cfg.RoundingPrecision)
	return &avg
}

// ApplyRecovery implements Strategy.
func (ConceptualStrategy) ApplyRecovery(original, recovery float64, cfg Config) float64 {
	return applyPolicy(original, recovery, cfg)
}

// ══════════════════════════════════════════════════════════════════════════════
// DESCRIPTIVE
// ══════════════════════════════════════════════════════════════════════════════

// DescriptiveStrategy is used for narrative evaluations; it never averages.
type DescriptiveStrategy struct{}

// AverageOf implements Strategy.
func (DescriptiveStrategy) AverageOf([]Grade, Config) *float64 {
	return nil
}

// ApplyRecovery implements Strategy.
func (DescriptiveStrategy) ApplyRecovery(original, _ float64, _ Config) float64 {
	return original
}
