package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/closing"
)

func TestCompletenessReader_RecordedGradesIgnoresValue(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	grades := NewGradeRepository(store)
	nine := 9.0

	for _, g := range []assessment.Grade{
		{StudentID: "s1", InstrumentID: "i1", NumericValue: &nine},
		{StudentID: "s1", InstrumentID: "i2"},
		{StudentID: "s1", InstrumentID: "rec", IsRecovery: true, NumericValue: &nine},
	} {
		g.ClassGroupID, g.TeacherAssignmentID, g.PeriodID, g.UpdatedAt = "c", "ta", "p", testNow
		require.NoError(t, grades.Upsert(ctx, &g))
	}

	got, err := NewCompletenessReader(store).RecordedGrades(ctx, closing.Scope{
		ClassGroupID: "c", TeacherAssignmentID: "ta", PeriodID: "p",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []closing.StudentInstrument{
		{StudentID: "s1", InstrumentID: "i1"},
		{StudentID: "s1", InstrumentID: "i2"},
	}, got)
}
