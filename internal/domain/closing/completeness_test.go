package closing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/pkg/timeutil"
)

type stubReader struct {
	students    []string
	instruments []string
	days        []time.Time
	grades      []StudentInstrument
	attendance  []StudentDay
	lessons     []string
}

func (s *stubReader) ActiveStudentIDs(context.Context, string) ([]string, error) {
	return s.students, nil
}

func (s *stubReader) ActiveInstrumentIDs(context.Context, string) ([]string, error) {
	return s.instruments, nil
}

func (s *stubReader) SchoolDays(context.Context, Scope) ([]time.Time, error) {
	return s.days, nil
}

func (s *stubReader) RecordedGrades(context.Context, Scope) ([]StudentInstrument, error) {
	return s.grades, nil
}

func (s *stubReader) RecordedAttendance(context.Context, Scope) ([]StudentDay, error) {
	return s.attendance, nil
}

func (s *stubReader) RecordedLessonDays(context.Context, Scope) ([]string, error) {
	return s.lessons, nil
}

func fullGrid(students, instruments []string) []StudentInstrument {
	var out []StudentInstrument
	for _, s := range students {
		for _, i := range instruments {
			out = append(out, StudentInstrument{s, i})
		}
	}
	return out
}

func TestGradesComplete_ThreeByThree(t *testing.T) {
	students := []string{"s1", "s2", "s3"}
	instruments := []string{"i1", "i2", "i3"}
	rows := fullGrid(students, instruments)
	require.Len(t, rows, 9)

	assert.True(t, GradesComplete(students, instruments, rows))

	for i := range rows {
		fewer := append(append([]StudentInstrument{}, rows[:i]...), rows[i+1:]...)
		assert.False(t, GradesComplete(students, instruments, fewer), "missing %v", rows[i])
	}
}

func TestAttendanceAndLessons(t *testing.T) {
	days := timeutil.SchoolDays(timeutil.Date(2024, 3, 4), timeutil.Date(2024, 3, 6), nil)
	students := []string{"s1", "s2"}

	var att []StudentDay
	var lessons []string
	for _, d := range days {
		lessons = append(lessons, timeutil.DayKey(d))
		for _, s := range students {
			att = append(att, StudentDay{s, timeutil.DayKey(d)})
		}
	}

	assert.True(t, AttendanceComplete(students, days, att))
	assert.False(t, AttendanceComplete(students, days, att[1:]))
	assert.True(t, LessonRecordsComplete(days, lessons))
	assert.False(t, LessonRecordsComplete(days, lessons[:2]))
}

func TestChecker_Check(t *testing.T) {
	days := []time.Time{timeutil.Date(2024, 3, 4)}
	reader := &stubReader{
		students:    []string{"s1"},
		instruments: []string{"i1"},
		days:        days,
		grades:      []StudentInstrument{{"s1", "i1"}},
		lessons:     []string{"2024-03-04"},
	}

	got, err := NewChecker(reader).Check(context.Background(), Scope{ClassGroupID: "c"})
	require.NoError(t, err)
	assert.Equal(t, Completeness{Grades: true, Attendance: false, LessonRecords: true}, got)
	assert.Equal(t, map[string]string{AreaAttendance: "attendance pending"}, got.Missing())
}

func TestChecker_VacuousWhenNothingToCheck(t *testing.T) {
	got, err := NewChecker(&stubReader{}).Check(context.Background(), Scope{})
	require.NoError(t, err)
	assert.True(t, got.All())
}
