package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATE PERIOD AVERAGE COMMAND
// Blends the grade average of one student in one assignment and period with
// the attendance frequency of the same scope and stores the result in place.
// ══════════════════════════════════════════════════════════════════════════════

// CalculatePeriodAverageCommand identifies the scope to recompute.
type CalculatePeriodAverageCommand struct {
	StudentID           string `field:"student_id" validate:"required"`
	ClassGroupID        string `field:"class_group_id" validate:"required"`
	TeacherAssignmentID string `field:"teacher_assignment_id" validate:"required"`
	PeriodID            string `field:"period_id" validate:"required"`
}

// Validate validates the command.
func (c CalculatePeriodAverageCommand) Validate() error {
	return validateCommand("CalculatePeriodAverage", c)
}

// CalculatePeriodAverageResult contains the stored average.
type CalculatePeriodAverageResult struct {
	PeriodAverage *result.PeriodAverage

	// ConfigResolved is false when no assessment config applies; the average
	// is then left unset.
	ConfigResolved bool

	// RecoveryApplied is true when a recovery grade replaced the average.
	RecoveryApplied bool
}

// CalculatePeriodAverageHandler handles CalculatePeriodAverageCommand.
type CalculatePeriodAverageHandler struct {
	directory academic.Directory
	configs   assessment.ConfigRepository
	grades    assessment.GradeRepository
	averages  result.PeriodAverageRepository
	frequency academic.FrequencyCalculator
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewCalculatePeriodAverageHandler creates a new CalculatePeriodAverageHandler.
func NewCalculatePeriodAverageHandler(
	directory academic.Directory,
	configs assessment.ConfigRepository,
	grades assessment.GradeRepository,
	averages result.PeriodAverageRepository,
	frequency academic.FrequencyCalculator,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *slog.Logger,
) *CalculatePeriodAverageHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &CalculatePeriodAverageHandler{
		directory: directory,
		configs:   configs,
		grades:    grades,
		averages:  averages,
		frequency: frequency,
		publisher: publisher,
		clock:     timeutil.OrSystem(clock),
		logger:    log.With("handler", "calculate_period_average"),
	}
}

// Handle executes the command.
func (h *CalculatePeriodAverageHandler) Handle(ctx context.Context, cmd CalculatePeriodAverageCommand) (*CalculatePeriodAverageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	classGroup, err := h.directory.ClassGroup(ctx, cmd.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("calculate_period_average: %w", err)
	}
	period, err := h.directory.Period(ctx, cmd.PeriodID)
	if err != nil {
		return nil, fmt.Errorf("calculate_period_average: %w", err)
	}

	cfg, err := resolveConfig(ctx, h.configs, classGroup)
	if err != nil {
		return nil, fmt.Errorf("calculate_period_average: %w", err)
	}

	res := &CalculatePeriodAverageResult{ConfigResolved: cfg != nil}
	var (
		average    *float64
		conceptual *string
	)
	if cfg != nil {
		average, res.RecoveryApplied, err = h.gradeAverage(ctx, cmd, cfg)
		if err != nil {
			return nil, fmt.Errorf("calculate_period_average: %w", err)
		}
		if average != nil && cfg.GradeType == assessment.GradeTypeConceptual {
			if label := cfg.ConceptualLabel(*average); label != "" {
				conceptual = &label
			}
		}
	}

	assignmentID := cmd.TeacherAssignmentID
	from, to := period.StartDate, period.EndDate
	freq, err := h.frequency.Calculate(ctx, academic.FrequencyQuery{
		StudentID:           cmd.StudentID,
		ClassGroupID:        cmd.ClassGroupID,
		TeacherAssignmentID: &assignmentID,
		From:                &from,
		To:                  &to,
	})
	if err != nil {
		return nil, fmt.Errorf("calculate_period_average: frequency: %w", err)
	}

	now := h.clock.Now()
	avg := &result.PeriodAverage{
		PeriodAverageKey: result.PeriodAverageKey{
			StudentID:           cmd.StudentID,
			ClassGroupID:        cmd.ClassGroupID,
			TeacherAssignmentID: cmd.TeacherAssignmentID,
			PeriodID:            cmd.PeriodID,
		},
		NumericAverage:      average,
		ConceptualAverage:   conceptual,
		TotalAbsences:       freq.Absences(),
		FrequencyPercentage: freq.Percentage,
		CalculatedAt:        now,
	}
	if err := h.averages.Upsert(ctx, avg); err != nil {
		return nil, fmt.Errorf("calculate_period_average: save: %w", err)
	}
	res.PeriodAverage = avg

	h.logger.Debug("period average calculated",
		logger.StudentID(cmd.StudentID),
		logger.ClassGroupID(cmd.ClassGroupID),
		logger.PeriodID(cmd.PeriodID),
		"config_resolved", res.ConfigResolved,
		"recovery_applied", res.RecoveryApplied,
		"frequency", freq.Percentage,
	)

	event := shared.NewPeriodAverageCalculatedEvent(avg.ID, cmd.StudentID, cmd.ClassGroupID,
		cmd.TeacherAssignmentID, cmd.PeriodID, average, freq.Percentage, now)
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", logger.Err(err))
	}

	return res, nil
}

// gradeAverage runs the config's strategy over the scope's grades and applies
// the recovery grade when the config allows it.
func (h *CalculatePeriodAverageHandler) gradeAverage(
	ctx context.Context,
	cmd CalculatePeriodAverageCommand,
	cfg *assessment.Config,
) (*float64, bool, error) {
	strategy, ok := assessment.StrategyFor(cfg.GradeType)
	if !ok {
		return nil, false, shared.ErrUnknownGradeType
	}

	grades, err := h.grades.FindByScope(ctx, assessment.GradeScope{
		StudentID:           cmd.StudentID,
		ClassGroupID:        cmd.ClassGroupID,
		TeacherAssignmentID: cmd.TeacherAssignmentID,
		PeriodID:            cmd.PeriodID,
	})
	if err != nil {
		return nil, false, err
	}

	average := strategy.AverageOf(grades, *cfg)
	if average == nil || !cfg.RecoveryEnabled {
		return average, false, nil
	}
	recovery := assessment.FindRecovery(grades)
	if recovery == nil {
		return average, false, nil
	}
	replaced := strategy.ApplyRecovery(*average, recovery.RecoveryValue(*cfg), *cfg)
	return &replaced, true, nil
}

// resolveConfig returns the config of the class group, or nil when none applies.
func resolveConfig(ctx context.Context, configs assessment.ConfigRepository, cg *academic.ClassGroup) (*assessment.Config, error) {
	cfg, err := configs.FindByScope(ctx, cg.ConfigScope())
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATE CLASS PERIOD AVERAGES COMMAND
// Recomputes the period average of every active student of a class.
// ══════════════════════════════════════════════════════════════════════════════

// CalculateClassPeriodAveragesCommand identifies the class scope to recompute.
type CalculateClassPeriodAveragesCommand struct {
	ClassGroupID        string `field:"class_group_id" validate:"required"`
	TeacherAssignmentID string `field:"teacher_assignment_id" validate:"required"`
	PeriodID            string `field:"period_id" validate:"required"`
}

// Validate validates the command.
func (c CalculateClassPeriodAveragesCommand) Validate() error {
	return validateCommand("CalculateClassPeriodAverages", c)
}

// CalculateClassPeriodAveragesResult partitions students into succeeded and failed.
type CalculateClassPeriodAveragesResult struct {
	shared.BatchOutcome
	Averages []*result.PeriodAverage
}

// CalculateClassPeriodAveragesHandler handles CalculateClassPeriodAveragesCommand.
type CalculateClassPeriodAveragesHandler struct {
	single      *CalculatePeriodAverageHandler
	enrollments academic.EnrollmentReader
	logger      *slog.Logger
}

// NewCalculateClassPeriodAveragesHandler creates a new CalculateClassPeriodAveragesHandler.
func NewCalculateClassPeriodAveragesHandler(
	single *CalculatePeriodAverageHandler,
	enrollments academic.EnrollmentReader,
	log *slog.Logger,
) *CalculateClassPeriodAveragesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CalculateClassPeriodAveragesHandler{
		single:      single,
		enrollments: enrollments,
		logger:      log.With("handler", "calculate_class_period_averages"),
	}
}

// Handle executes the command. Students are processed sequentially; a failure
// for one student is recorded and the batch continues.
func (h *CalculateClassPeriodAveragesHandler) Handle(ctx context.Context, cmd CalculateClassPeriodAveragesCommand) (*CalculateClassPeriodAveragesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	students, err := h.enrollments.ActiveStudents(ctx, cmd.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("calculate_class_period_averages: %w", err)
	}

	res := &CalculateClassPeriodAveragesResult{}
	for _, s := range students {
		out, err := h.single.Handle(ctx, CalculatePeriodAverageCommand{
			StudentID:           s.ID,
			ClassGroupID:        cmd.ClassGroupID,
			TeacherAssignmentID: cmd.TeacherAssignmentID,
			PeriodID:            cmd.PeriodID,
		})
		if err != nil {
			h.logger.Warn("period average failed", logger.StudentID(s.ID), logger.Err(err))
			res.Fail(s.ID, err)
			continue
		}
		res.Succeed(s.ID)
		res.Averages = append(res.Averages, out.PeriodAverage)
	}

	h.logger.Info("class period averages calculated",
		logger.ClassGroupID(cmd.ClassGroupID),
		logger.PeriodID(cmd.PeriodID),
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
	)
	return res, nil
}
