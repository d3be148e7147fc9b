package postgres

import (
	"context"

	"github.com/pkg/errors"

	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD AVERAGES
// ══════════════════════════════════════════════════════════════════════════════

// PeriodAverageRepository implements result.PeriodAverageRepository for PostgreSQL.
type PeriodAverageRepository struct {
	conn *Connection
}

// NewPeriodAverageRepository creates a new PeriodAverageRepository.
func NewPeriodAverageRepository(conn *Connection) *PeriodAverageRepository {
	return &PeriodAverageRepository{conn: conn}
}

const periodAverageColumns = `
	id, student_id, class_group_id, teacher_assignment_id, period_id,
	numeric_average, conceptual_average, total_absences, frequency_percentage, calculated_at`

// Upsert implements result.PeriodAverageRepository.
func (r *PeriodAverageRepository) Upsert(ctx context.Context, avg *result.PeriodAverage) error {
	if avg.ID == "" {
		avg.ID = shared.NewID()
	}
	err := r.conn.QueryRow(ctx, `
		INSERT INTO period_averages (`+periodAverageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT period_averages_natural_key DO UPDATE SET
			numeric_average = EXCLUDED.numeric_average,
			conceptual_average = EXCLUDED.conceptual_average,
			total_absences = EXCLUDED.total_absences,
			frequency_percentage = EXCLUDED.frequency_percentage,
			calculated_at = EXCLUDED.calculated_at
		RETURNING id
	`,
		avg.ID, avg.StudentID, avg.ClassGroupID, avg.TeacherAssignmentID, avg.PeriodID,
		avg.NumericAverage, avg.ConceptualAverage, avg.TotalAbsences, avg.FrequencyPercentage, avg.CalculatedAt,
	).Scan(&avg.ID)
	if err != nil {
		return errors.Wrap(err, "upsert period average")
	}
	return nil
}

// FindByKey implements result.PeriodAverageRepository.
func (r *PeriodAverageRepository) FindByKey(ctx context.Context, key result.PeriodAverageKey) (*result.PeriodAverage, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+periodAverageColumns+`
		FROM period_averages
		WHERE student_id = $1 AND class_group_id = $2 AND teacher_assignment_id = $3 AND period_id = $4
	`, key.StudentID, key.ClassGroupID, key.TeacherAssignmentID, key.PeriodID)

	avg, err := scanPeriodAverage(row)
	if IsNoRows(err) {
		return nil, shared.ErrPeriodAverageNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get period average")
	}
	return avg, nil
}

// ListByStudent implements result.PeriodAverageRepository.
func (r *PeriodAverageRepository) ListByStudent(ctx context.Context, studentID, classGroupID string) ([]result.PeriodAverage, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+periodAverageColumns+`
		FROM period_averages
		WHERE student_id = $1 AND class_group_id = $2
		ORDER BY period_id, teacher_assignment_id
	`, studentID, classGroupID)
	if err != nil {
		return nil, errors.Wrap(err, "query period averages")
	}
	defer rows.Close()

	var out []result.PeriodAverage
	for rows.Next() {
		avg, err := scanPeriodAverage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan period average")
		}
		out = append(out, *avg)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPeriodAverage(row scanner) (*result.PeriodAverage, error) {
	var avg result.PeriodAverage
	err := row.Scan(
		&avg.ID, &avg.StudentID, &avg.ClassGroupID, &avg.TeacherAssignmentID, &avg.PeriodID,
		&avg.NumericAverage, &avg.ConceptualAverage, &avg.TotalAbsences, &avg.FrequencyPercentage, &avg.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &avg, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FINAL RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// FinalResultRepository implements result.FinalResultRepository for PostgreSQL.
type FinalResultRepository struct {
	conn *Connection
}

// NewFinalResultRepository creates a new FinalResultRepository.
func NewFinalResultRepository(conn *Connection) *FinalResultRepository {
	return &FinalResultRepository{conn: conn}
}

const finalResultColumns = `
	id, student_id, class_group_id, academic_year, outcome,
	overall_average, overall_frequency, council_override, determined_by, determined_at`

// Upsert implements result.FinalResultRepository.
func (r *FinalResultRepository) Upsert(ctx context.Context, fr *result.FinalResult) error {
	if fr.ID == "" {
		fr.ID = shared.NewID()
	}
	err := r.conn.QueryRow(ctx, `
		INSERT INTO final_results (`+finalResultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT final_results_natural_key DO UPDATE SET
			outcome = EXCLUDED.outcome,
			overall_average = EXCLUDED.overall_average,
			overall_frequency = EXCLUDED.overall_frequency,
			council_override = EXCLUDED.council_override,
			determined_by = EXCLUDED.determined_by,
			determined_at = EXCLUDED.determined_at
		RETURNING id
	`,
		fr.ID, fr.StudentID, fr.ClassGroupID, fr.AcademicYear, string(fr.Outcome),
		fr.OverallAverage, fr.OverallFrequency, fr.CouncilOverride, fr.DeterminedBy, fr.DeterminedAt,
	).Scan(&fr.ID)
	if err != nil {
		return errors.Wrap(err, "upsert final result")
	}
	return nil
}

// FindByKey implements result.FinalResultRepository.
func (r *FinalResultRepository) FindByKey(ctx context.Context, key result.FinalResultKey) (*result.FinalResult, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+finalResultColumns+`
		FROM final_results
		WHERE student_id = $1 AND class_group_id = $2 AND academic_year = $3
	`, key.StudentID, key.ClassGroupID, key.AcademicYear)

	fr, err := scanFinalResult(row)
	if IsNoRows(err) {
		return nil, shared.ErrFinalResultNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get final result")
	}
	return fr, nil
}

// ListByClass implements result.FinalResultRepository.
func (r *FinalResultRepository) ListByClass(ctx context.Context, classGroupID string, academicYear int) ([]result.FinalResult, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+finalResultColumns+`
		FROM final_results
		WHERE class_group_id = $1 AND academic_year = $2
		ORDER BY student_id
	`, classGroupID, academicYear)
	if err != nil {
		return nil, errors.Wrap(err, "query final results")
	}
	defer rows.Close()

	var out []result.FinalResult
	for rows.Next() {
		fr, err := scanFinalResult(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan final result")
		}
		out = append(out, *fr)
	}
	return out, rows.Err()
}

func scanFinalResult(row scanner) (*result.FinalResult, error) {
	var fr result.FinalResult
	var outcome string
	err := row.Scan(
		&fr.ID, &fr.StudentID, &fr.ClassGroupID, &fr.AcademicYear, &outcome,
		&fr.OverallAverage, &fr.OverallFrequency, &fr.CouncilOverride, &fr.DeterminedBy, &fr.DeterminedAt,
	)
	if err != nil {
		return nil, err
	}
	fr.Outcome = result.Outcome(outcome)
	return &fr, nil
}
