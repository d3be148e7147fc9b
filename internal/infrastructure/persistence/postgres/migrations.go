package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_academic_structure",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_assessment",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_results_and_closings",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ACADEMIC STRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Class groups, periods and assignments are owned by the school
-- administration system; the gradebook only reads them.
CREATE TABLE IF NOT EXISTS class_groups (
    id TEXT PRIMARY KEY,
    school_id TEXT NOT NULL,
    name VARCHAR(100) NOT NULL,
    academic_year INTEGER NOT NULL,
    grade_level VARCHAR(50) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_class_groups_school_year ON class_groups(school_id, academic_year);

CREATE TABLE IF NOT EXISTS periods (
    id TEXT PRIMARY KEY,
    school_id TEXT NOT NULL,
    academic_year INTEGER NOT NULL,
    number INTEGER NOT NULL,
    name VARCHAR(50) NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,

    CONSTRAINT periods_range_valid CHECK (start_date <= end_date),
    CONSTRAINT periods_number_unique UNIQUE (school_id, academic_year, number)
);

CREATE TABLE IF NOT EXISTS teacher_assignments (
    id TEXT PRIMARY KEY,
    class_group_id TEXT NOT NULL REFERENCES class_groups(id),
    teacher_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_teacher_assignments_class ON teacher_assignments(class_group_id);

CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name VARCHAR(150) NOT NULL
);

-- Assignment of a student to a class group
CREATE TABLE IF NOT EXISTS class_members (
    class_group_id TEXT NOT NULL REFERENCES class_groups(id),
    student_id TEXT NOT NULL REFERENCES students(id),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (class_group_id, student_id)
);

-- Enrollment of a student in an academic year
CREATE TABLE IF NOT EXISTS enrollments (
    student_id TEXT NOT NULL REFERENCES students(id),
    academic_year INTEGER NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (student_id, academic_year)
);

CREATE TABLE IF NOT EXISTS attendance (
    student_id TEXT NOT NULL,
    class_group_id TEXT NOT NULL,
    teacher_assignment_id TEXT NOT NULL,
    day DATE NOT NULL,
    status VARCHAR(20) NOT NULL,

    PRIMARY KEY (student_id, class_group_id, teacher_assignment_id, day),
    CONSTRAINT attendance_status_valid CHECK (status IN ('present', 'absent', 'justified', 'excused'))
);

CREATE INDEX IF NOT EXISTS idx_attendance_assignment_day ON attendance(class_group_id, teacher_assignment_id, day);

CREATE TABLE IF NOT EXISTS lesson_records (
    teacher_assignment_id TEXT NOT NULL,
    day DATE NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (teacher_assignment_id, day)
);

-- Holidays and recess days excluded from the school calendar
CREATE TABLE IF NOT EXISTS non_school_days (
    school_id TEXT NOT NULL,
    day DATE NOT NULL,
    description VARCHAR(150) NOT NULL DEFAULT '',
    PRIMARY KEY (school_id, day)
);
`

const migration001Down = `
DROP TABLE IF EXISTS non_school_days;
DROP TABLE IF EXISTS lesson_records;
DROP TABLE IF EXISTS attendance;
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS class_members;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS teacher_assignments;
DROP TABLE IF EXISTS periods;
DROP TABLE IF EXISTS class_groups;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS assessment_configs (
    id TEXT PRIMARY KEY,
    school_id TEXT NOT NULL,
    academic_year INTEGER NOT NULL,
    grade_level VARCHAR(50) NOT NULL,
    grade_type VARCHAR(20) NOT NULL,
    scale_min NUMERIC(6,2) NOT NULL DEFAULT 0,
    scale_max NUMERIC(6,2) NOT NULL DEFAULT 10,
    passing_grade NUMERIC(6,2),
    formula VARCHAR(20) NOT NULL DEFAULT 'arithmetic',
    rounding_precision INTEGER NOT NULL DEFAULT 1,
    recovery_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    recovery_policy VARCHAR(20) NOT NULL DEFAULT 'higher',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT assessment_configs_scope_unique UNIQUE (school_id, academic_year, grade_level),
    CONSTRAINT assessment_configs_grade_type_valid CHECK (grade_type IN ('numeric', 'conceptual', 'descriptive')),
    CONSTRAINT assessment_configs_formula_valid CHECK (formula IN ('arithmetic', 'weighted')),
    CONSTRAINT assessment_configs_policy_valid CHECK (recovery_policy IN ('higher', 'average', 'last'))
);

CREATE TABLE IF NOT EXISTS assessment_instruments (
    id TEXT PRIMARY KEY,
    config_id TEXT NOT NULL REFERENCES assessment_configs(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    weight NUMERIC(6,2),
    max_value NUMERIC(6,2),
    sort_order INTEGER NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_assessment_instruments_config ON assessment_instruments(config_id);

CREATE TABLE IF NOT EXISTS scale_entries (
    id TEXT PRIMARY KEY,
    config_id TEXT NOT NULL REFERENCES assessment_configs(id) ON DELETE CASCADE,
    code VARCHAR(10) NOT NULL,
    numeric_equivalent NUMERIC(6,2) NOT NULL,
    passing BOOLEAN NOT NULL DEFAULT FALSE,
    sort_order INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT scale_entries_code_unique UNIQUE (config_id, code)
);

-- One row per natural key; the recovery grade has its own slot
CREATE TABLE IF NOT EXISTS grades (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    class_group_id TEXT NOT NULL,
    teacher_assignment_id TEXT NOT NULL,
    period_id TEXT NOT NULL,
    instrument_id TEXT NOT NULL,
    is_recovery BOOLEAN NOT NULL DEFAULT FALSE,
    numeric_value NUMERIC(6,2),
    conceptual_value VARCHAR(10),
    recovery_type VARCHAR(30) NOT NULL DEFAULT '',
    recorded_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT grades_natural_key UNIQUE (student_id, class_group_id, teacher_assignment_id, period_id, instrument_id, is_recovery)
);

CREATE INDEX IF NOT EXISTS idx_grades_scope ON grades(class_group_id, teacher_assignment_id, period_id);
`

const migration002Down = `
DROP TABLE IF EXISTS grades;
DROP TABLE IF EXISTS scale_entries;
DROP TABLE IF EXISTS assessment_instruments;
DROP TABLE IF EXISTS assessment_configs;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: RESULTS AND CLOSINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS period_averages (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    class_group_id TEXT NOT NULL,
    teacher_assignment_id TEXT NOT NULL,
    period_id TEXT NOT NULL,
    numeric_average NUMERIC(6,2),
    conceptual_average VARCHAR(10),
    total_absences INTEGER NOT NULL DEFAULT 0,
    frequency_percentage NUMERIC(5,2) NOT NULL DEFAULT 100,
    calculated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT period_averages_natural_key UNIQUE (student_id, class_group_id, teacher_assignment_id, period_id)
);

CREATE INDEX IF NOT EXISTS idx_period_averages_student ON period_averages(student_id, class_group_id);

CREATE TABLE IF NOT EXISTS final_results (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    class_group_id TEXT NOT NULL,
    academic_year INTEGER NOT NULL,
    outcome VARCHAR(20) NOT NULL,
    overall_average NUMERIC(6,2),
    overall_frequency NUMERIC(5,2) NOT NULL DEFAULT 100,
    council_override BOOLEAN NOT NULL DEFAULT FALSE,
    determined_by TEXT NOT NULL DEFAULT '',
    determined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT final_results_natural_key UNIQUE (student_id, class_group_id, academic_year),
    CONSTRAINT final_results_outcome_valid CHECK (outcome IN ('approved', 'retained'))
);

CREATE TABLE IF NOT EXISTS period_closings (
    id TEXT PRIMARY KEY,
    class_group_id TEXT NOT NULL,
    teacher_assignment_id TEXT NOT NULL,
    period_id TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',

    submitted_by TEXT,
    submitted_at TIMESTAMPTZ,
    validated_by TEXT,
    validated_at TIMESTAMPTZ,
    approved_by TEXT,
    approved_at TIMESTAMPTZ,
    reopened_by TEXT,
    reopened_at TIMESTAMPTZ,
    rejection_reason TEXT NOT NULL DEFAULT '',
    reopen_reason TEXT NOT NULL DEFAULT '',

    grades_complete BOOLEAN NOT NULL DEFAULT FALSE,
    attendance_complete BOOLEAN NOT NULL DEFAULT FALSE,
    lesson_records_complete BOOLEAN NOT NULL DEFAULT FALSE,
    completeness_checked_at TIMESTAMPTZ,

    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT period_closings_natural_key UNIQUE (class_group_id, teacher_assignment_id, period_id),
    CONSTRAINT period_closings_status_valid CHECK (status IN ('pending', 'in_validation', 'approved', 'closed'))
);

CREATE INDEX IF NOT EXISTS idx_period_closings_status ON period_closings(class_group_id, period_id, status);

CREATE TABLE IF NOT EXISTS closing_rectifications (
    id TEXT PRIMARY KEY,
    closing_id TEXT NOT NULL REFERENCES period_closings(id),
    entity_type VARCHAR(30) NOT NULL,
    entity_id TEXT NOT NULL,
    field_changed VARCHAR(50) NOT NULL,
    old_value TEXT NOT NULL DEFAULT '',
    new_value TEXT NOT NULL DEFAULT '',
    justification TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'requested',
    requested_by TEXT NOT NULL,
    requested_at TIMESTAMPTZ NOT NULL,
    decided_by TEXT NOT NULL DEFAULT '',
    decided_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT closing_rectifications_status_valid CHECK (status IN ('requested', 'approved', 'rejected'))
);

CREATE INDEX IF NOT EXISTS idx_closing_rectifications_closing ON closing_rectifications(closing_id);
`

const migration003Down = `
DROP TABLE IF EXISTS closing_rectifications;
DROP TABLE IF EXISTS period_closings;
DROP TABLE IF EXISTS final_results;
DROP TABLE IF EXISTS period_averages;
`
