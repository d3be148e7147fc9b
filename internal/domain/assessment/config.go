// Package assessment contains the grading configuration of a school year and
// the pure averaging strategies that turn grade rows into a period average.
package assessment

import (
	"math"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// GradeType selects how grades are expressed and averaged.
type GradeType string

const (
	GradeTypeNumeric     GradeType = "numeric"
	GradeTypeConceptual  GradeType = "conceptual"
	GradeTypeDescriptive GradeType = "descriptive"
)

// IsValid reports whether the grade type is known.
func (g GradeType) IsValid() bool {
	switch g {
	case GradeTypeNumeric, GradeTypeConceptual, GradeTypeDescriptive:
		return true
	default:
		return false
	}
}

// AverageFormula selects arithmetic or weighted averaging for numeric grades.
type AverageFormula string

const (
	FormulaArithmetic AverageFormula = "arithmetic"
	FormulaWeighted   AverageFormula = "weighted"
)

// IsValid reports whether the formula is known.
func (f AverageFormula) IsValid() bool {
	return f == FormulaArithmetic || f == FormulaWeighted
}

// RecoveryPolicy selects how a recovery grade replaces a regular average.
type RecoveryPolicy string

const (
	// RecoveryHigher keeps the higher of the original average and the recovery grade.
	RecoveryHigher RecoveryPolicy = "higher"
	// RecoveryAverage keeps the mean of the two.
	RecoveryAverage RecoveryPolicy = "average"
	// RecoveryLast keeps the recovery grade unconditionally.
	RecoveryLast RecoveryPolicy = "last"
)

// IsValid reports whether the policy is known.
func (p RecoveryPolicy) IsValid() bool {
	switch p {
	case RecoveryHigher, RecoveryAverage, RecoveryLast:
		return true
	default:
		return false
	}
}

// DefaultPassingGrade applies when a config leaves the passing grade unset.
const DefaultPassingGrade = 6.0

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// ScopeKey identifies the config that applies to a class group.
type ScopeKey struct {
	SchoolID     string
	AcademicYear int
	GradeLevel   string
}

// Config is the grading configuration for a (school, year, grade level).
// It is read-only to the computation engine.
type Config struct {
	ID    string
	Scope ScopeKey

	GradeType         GradeType
	ScaleMin          float64
	ScaleMax          float64
	PassingGrade      *float64
	Formula           AverageFormula
	RoundingPrecision int

	RecoveryEnabled bool
	RecoveryPolicy  RecoveryPolicy

	Instruments []Instrument
	Scale       []ScaleEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PassingGradeOrDefault returns the configured passing grade or DefaultPassingGrade.
func (c Config) PassingGradeOrDefault() float64 {
	if c.PassingGrade == nil {
		return DefaultPassingGrade
	}
	return *c.PassingGrade
}

// ActiveInstruments returns the active instruments sorted by order.
func (c Config) ActiveInstruments() []Instrument {
	out := make([]Instrument, 0, len(c.Instruments))
	for _, in := range c.Instruments {
		if in.Active {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// InstrumentWeight returns the weight of an instrument; unknown instruments and
// unset weights count as 1.
func (c Config) InstrumentWeight(instrumentID string) float64 {
	for _, in := range c.Instruments {
		if in.ID == instrumentID {
			return in.WeightOrDefault()
		}
	}
	return 1
}

// ScaleEquivalent maps a conceptual code to its numeric equivalent.
func (c Config) ScaleEquivalent(code string) (float64, bool) {
	for _, e := range c.Scale {
		if e.Code == code {
			return e.NumericEquivalent, true
		}
	}
	return 0, false
}

// ConceptualLabel returns the scale code whose numeric equivalent is nearest to
// value. Ties go to the higher equivalent. Empty when the scale is empty.
func (c Config) ConceptualLabel(value float64) string {
	best := ""
	bestDist := math.Inf(1)
	bestEq := math.Inf(-1)
	for _, e := range c.Scale {
		d := math.Abs(e.NumericEquivalent - value)
		if d < bestDist || (d == bestDist && e.NumericEquivalent > bestEq) {
			best, bestDist, bestEq = e.Code, d, e.NumericEquivalent
		}
	}
	return best
}

// Instrument is a graded activity (test, project, homework) of a config.
type Instrument struct {
	ID       string
	ConfigID string
	Name     string
	Weight   *float64
	MaxValue *float64
	Order    int
	Active   bool
}

// WeightOrDefault returns the weight, defaulting to 1 when unset.
func (i Instrument) WeightOrDefault() float64 {
	if i.Weight == nil {
		return 1
	}
	return *i.Weight
}

// ScaleEntry maps a conceptual code to a numeric equivalent.
type ScaleEntry struct {
	ID                string
	ConfigID          string
	Code              string
	NumericEquivalent float64
	Passing           bool
	Order             int
}
