package postgres

import (
	"context"

	"github.com/pkg/errors"

	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ConfigRepository implements assessment.ConfigRepository for PostgreSQL.
type ConfigRepository struct {
	conn *Connection
}

// NewConfigRepository creates a new ConfigRepository.
func NewConfigRepository(conn *Connection) *ConfigRepository {
	return &ConfigRepository{conn: conn}
}

// FindByScope implements assessment.ConfigRepository. The config is loaded
// together with its instruments and scale entries.
func (r *ConfigRepository) FindByScope(ctx context.Context, scope assessment.ScopeKey) (*assessment.Config, error) {
	cfg := assessment.Config{Scope: scope}
	var gradeType, formula, policy string

	err := r.conn.QueryRow(ctx, `
		SELECT id, grade_type, scale_min, scale_max, passing_grade, formula,
		       rounding_precision, recovery_enabled, recovery_policy, created_at, updated_at
		FROM assessment_configs
		WHERE school_id = $1 AND academic_year = $2 AND grade_level = $3
	`, scope.SchoolID, scope.AcademicYear, scope.GradeLevel).Scan(
		&cfg.ID, &gradeType, &cfg.ScaleMin, &cfg.ScaleMax, &cfg.PassingGrade, &formula,
		&cfg.RoundingPrecision, &cfg.RecoveryEnabled, &policy, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrConfigNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get assessment config")
	}
	cfg.GradeType = assessment.GradeType(gradeType)
	cfg.Formula = assessment.AverageFormula(formula)
	cfg.RecoveryPolicy = assessment.RecoveryPolicy(policy)

	if cfg.Instruments, err = r.instruments(ctx, cfg.ID); err != nil {
		return nil, err
	}
	if cfg.Scale, err = r.scale(ctx, cfg.ID); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigRepository) instruments(ctx context.Context, configID string) ([]assessment.Instrument, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, config_id, name, weight, max_value, sort_order, active
		FROM assessment_instruments
		WHERE config_id = $1
		ORDER BY sort_order, id
	`, configID)
	if err != nil {
		return nil, errors.Wrap(err, "query instruments")
	}
	defer rows.Close()

	var out []assessment.Instrument
	for rows.Next() {
		var in assessment.Instrument
		if err := rows.Scan(&in.ID, &in.ConfigID, &in.Name, &in.Weight, &in.MaxValue, &in.Order, &in.Active); err != nil {
			return nil, errors.Wrap(err, "scan instrument")
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *ConfigRepository) scale(ctx context.Context, configID string) ([]assessment.ScaleEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, config_id, code, numeric_equivalent, passing, sort_order
		FROM scale_entries
		WHERE config_id = $1
		ORDER BY sort_order, code
	`, configID)
	if err != nil {
		return nil, errors.Wrap(err, "query scale entries")
	}
	defer rows.Close()

	var out []assessment.ScaleEntry
	for rows.Next() {
		var e assessment.ScaleEntry
		if err := rows.Scan(&e.ID, &e.ConfigID, &e.Code, &e.NumericEquivalent, &e.Passing, &e.Order); err != nil {
			return nil, errors.Wrap(err, "scan scale entry")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GradeRepository implements assessment.GradeRepository for PostgreSQL.
type GradeRepository struct {
	conn *Connection
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(conn *Connection) *GradeRepository {
	return &GradeRepository{conn: conn}
}

// Upsert implements assessment.GradeRepository. On conflict the stored row
// keeps its ID and creation time.
func (r *GradeRepository) Upsert(ctx context.Context, g *assessment.Grade) error {
	if g.ID == "" {
		g.ID = shared.NewID()
	}
	err := r.conn.QueryRow(ctx, `
		INSERT INTO grades (
			id, student_id, class_group_id, teacher_assignment_id, period_id, instrument_id,
			is_recovery, numeric_value, conceptual_value, recovery_type, recorded_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT ON CONSTRAINT grades_natural_key DO UPDATE SET
			numeric_value = EXCLUDED.numeric_value,
			conceptual_value = EXCLUDED.conceptual_value,
			recovery_type = EXCLUDED.recovery_type,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`,
		g.ID, g.StudentID, g.ClassGroupID, g.TeacherAssignmentID, g.PeriodID, g.InstrumentID,
		g.IsRecovery, g.NumericValue, g.ConceptualValue, g.RecoveryType, g.RecordedBy, g.CreatedAt, g.UpdatedAt,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert grade")
	}
	return nil
}

// FindByScope implements assessment.GradeRepository. Regular grades come
// before recovery grades.
func (r *GradeRepository) FindByScope(ctx context.Context, scope assessment.GradeScope) ([]assessment.Grade, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, class_group_id, teacher_assignment_id, period_id, instrument_id,
		       is_recovery, numeric_value, conceptual_value, recovery_type, recorded_by, created_at, updated_at
		FROM grades
		WHERE student_id = $1 AND class_group_id = $2 AND teacher_assignment_id = $3 AND period_id = $4
		ORDER BY is_recovery, instrument_id
	`, scope.StudentID, scope.ClassGroupID, scope.TeacherAssignmentID, scope.PeriodID)
	if err != nil {
		return nil, errors.Wrap(err, "query grades")
	}
	defer rows.Close()

	var out []assessment.Grade
	for rows.Next() {
		var g assessment.Grade
		if err := rows.Scan(
			&g.ID, &g.StudentID, &g.ClassGroupID, &g.TeacherAssignmentID, &g.PeriodID, &g.InstrumentID,
			&g.IsRecovery, &g.NumericValue, &g.ConceptualValue, &g.RecoveryType, &g.RecordedBy, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan grade")
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Delete implements assessment.GradeRepository.
func (r *GradeRepository) Delete(ctx context.Context, key assessment.GradeKey) error {
	_, err := r.conn.Exec(ctx, `
		DELETE FROM grades
		WHERE student_id = $1 AND class_group_id = $2 AND teacher_assignment_id = $3
		  AND period_id = $4 AND instrument_id = $5 AND is_recovery = $6
	`, key.StudentID, key.ClassGroupID, key.TeacherAssignmentID, key.PeriodID, key.InstrumentID, key.IsRecovery)
	if err != nil {
		return errors.Wrap(err, "delete grade")
	}
	return nil
}
