package academic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AttendanceStatus is the status of one attendance row.
type AttendanceStatus string

const (
	AttendancePresent   AttendanceStatus = "present"
	AttendanceAbsent    AttendanceStatus = "absent"
	AttendanceJustified AttendanceStatus = "justified"
	AttendanceExcused   AttendanceStatus = "excused"
)

// FrequencyQuery selects the attendance rows a frequency is computed over.
// TeacherAssignmentID, From and To are optional.
type FrequencyQuery struct {
	StudentID           string
	ClassGroupID        string
	TeacherAssignmentID *string
	From                *time.Time
	To                  *time.Time
}

// Frequency summarizes attendance. Percentage is in [0, 100].
type Frequency struct {
	Present    int
	Absent     int
	Justified  int
	Excused    int
	Percentage float64
}

// Total returns the number of attendance rows counted.
func (f Frequency) Total() int {
	return f.Present + f.Absent + f.Justified + f.Excused
}

// Absences returns the absences that count against the student.
func (f Frequency) Absences() int {
	return f.Absent
}

// NewFrequency builds a Frequency from raw counts. Justified and excused absences
// count as attendance; no rows at all yields 100%.
func NewFrequency(present, absent, justified, excused int) Frequency {
	f := Frequency{Present: present, Absent: absent, Justified: justified, Excused: excused}
	total := f.Total()
	if total == 0 {
		f.Percentage = 100
		return f
	}
	attended := decimal.NewFromInt(int64(present + justified + excused))
	pct := attended.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(total))).Round(2)
	f.Percentage, _ = pct.Float64()
	return f
}

// FrequencyCalculator computes attendance frequency for a student.
type FrequencyCalculator interface {
	Calculate(ctx context.Context, q FrequencyQuery) (Frequency, error)
}
