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
// CALCULATE FINAL RESULT COMMAND
// Decides approval or retention of a student for the year from the stored
// period averages and the overall attendance frequency.
// ══════════════════════════════════════════════════════════════════════════════

// CalculateFinalResultCommand identifies the student and year.
type CalculateFinalResultCommand struct {
	StudentID    string `field:"student_id" validate:"required"`
	ClassGroupID string `field:"class_group_id" validate:"required"`
	AcademicYear int    `field:"academic_year" validate:"required,gt=0"`
	Actor        shared.Principal
}

// CalculateClassFinalResultsCommand runs the calculation for a whole class.
type CalculateClassFinalResultsCommand struct {
	ClassGroupID string `field:"class_group_id" validate:"required"`
	AcademicYear int    `field:"academic_year" validate:"required,gt=0"`
	Actor        shared.Principal
}

// FinalResultHandlerConfig contains configuration for the handler.
type FinalResultHandlerConfig struct {
	// FrequencyFloor is the minimum overall frequency for approval.
	FrequencyFloor float64
}

// DefaultFinalResultHandlerConfig returns default configuration.
func DefaultFinalResultHandlerConfig() FinalResultHandlerConfig {
	return FinalResultHandlerConfig{FrequencyFloor: result.DefaultFrequencyFloor}
}

// FinalResultHandler handles the final result commands.
type FinalResultHandler struct {
	directory   academic.Directory
	configs     assessment.ConfigRepository
	averages    result.PeriodAverageRepository
	finals      result.FinalResultRepository
	frequency   academic.FrequencyCalculator
	enrollments academic.EnrollmentReader
	publisher   shared.EventPublisher
	clock       timeutil.Clock
	logger      *slog.Logger

	frequencyFloor float64
}

// NewFinalResultHandler creates a new FinalResultHandler.
func NewFinalResultHandler(
	directory academic.Directory,
	configs assessment.ConfigRepository,
	averages result.PeriodAverageRepository,
	finals result.FinalResultRepository,
	frequency academic.FrequencyCalculator,
	enrollments academic.EnrollmentReader,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *slog.Logger,
	config FinalResultHandlerConfig,
) *FinalResultHandler {
	if config.FrequencyFloor <= 0 {
		config = DefaultFinalResultHandlerConfig()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &FinalResultHandler{
		directory:      directory,
		configs:        configs,
		averages:       averages,
		finals:         finals,
		frequency:      frequency,
		enrollments:    enrollments,
		publisher:      publisher,
		clock:          timeutil.OrSystem(clock),
		logger:         log.With("handler", "calculate_final_result"),
		frequencyFloor: config.FrequencyFloor,
	}
}

// Handle calculates and stores the final result of one student.
func (h *FinalResultHandler) Handle(ctx context.Context, cmd CalculateFinalResultCommand) (*result.FinalResult, error) {
	if err := validateCommand("CalculateFinalResult", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("CalculateFinalResult", cmd.Actor); err != nil {
		return nil, err
	}

	classGroup, err := h.directory.ClassGroup(ctx, cmd.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("calculate_final_result: %w", err)
	}
	return h.calculate(ctx, classGroup, cmd.StudentID, cmd.AcademicYear, cmd.Actor)
}

// ClassFinalResults contains the stored results and the students that failed.
type ClassFinalResults struct {
	shared.BatchOutcome
	Results []*result.FinalResult
}

// HandleClass calculates the final result of every student with an active
// class assignment and an active enrollment for the year. Students are
// processed sequentially; a failure is recorded and the batch continues.
func (h *FinalResultHandler) HandleClass(ctx context.Context, cmd CalculateClassFinalResultsCommand) (*ClassFinalResults, error) {
	if err := validateCommand("CalculateClassFinalResults", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("CalculateClassFinalResults", cmd.Actor); err != nil {
		return nil, err
	}

	classGroup, err := h.directory.ClassGroup(ctx, cmd.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("calculate_class_final_results: %w", err)
	}
	students, err := h.enrollments.StudentsWithActiveEnrollment(ctx, cmd.ClassGroupID, cmd.AcademicYear)
	if err != nil {
		return nil, fmt.Errorf("calculate_class_final_results: %w", err)
	}

	out := &ClassFinalResults{Results: make([]*result.FinalResult, 0, len(students))}
	for _, s := range students {
		fr, err := h.calculate(ctx, classGroup, s.ID, cmd.AcademicYear, cmd.Actor)
		if err != nil {
			h.logger.Warn("final result failed", logger.StudentID(s.ID), logger.Err(err))
			out.Fail(s.ID, err)
			continue
		}
		out.Succeed(s.ID)
		out.Results = append(out.Results, fr)
	}

	h.logger.Info("class final results calculated",
		logger.ClassGroupID(cmd.ClassGroupID),
		logger.Actor(cmd.Actor.UserID),
		"academic_year", cmd.AcademicYear,
		"succeeded", len(out.Succeeded),
		"failed", len(out.Failed),
	)
	return out, nil
}

func (h *FinalResultHandler) calculate(
	ctx context.Context,
	classGroup *academic.ClassGroup,
	studentID string,
	academicYear int,
	actor shared.Principal,
) (*result.FinalResult, error) {
	cfg, err := resolveConfig(ctx, h.configs, classGroup)
	if err != nil {
		return nil, err
	}

	periodAverages, err := h.averages.ListByStudent(ctx, studentID, classGroup.ID)
	if err != nil {
		return nil, err
	}
	precision := result.DefaultOverallPrecision
	if cfg != nil {
		precision = cfg.RoundingPrecision
	}
	mean := result.OverallAverage(periodAverages)

	freq, err := h.frequency.Calculate(ctx, academic.FrequencyQuery{
		StudentID:    studentID,
		ClassGroupID: classGroup.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("frequency: %w", err)
	}

	now := h.clock.Now()
	fr := &result.FinalResult{
		FinalResultKey: result.FinalResultKey{
			StudentID:    studentID,
			ClassGroupID: classGroup.ID,
			AcademicYear: academicYear,
		},
		Outcome:          result.Decide(freq.Percentage, mean, cfg, h.frequencyFloor),
		OverallAverage:   result.RoundOverall(mean, precision),
		OverallFrequency: freq.Percentage,
		CouncilOverride:  false,
		DeterminedBy:     actor.UserID,
		DeterminedAt:     now,
	}
	if err := h.finals.Upsert(ctx, fr); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	h.logger.Debug("final result determined",
		logger.StudentID(studentID),
		logger.ClassGroupID(classGroup.ID),
		"outcome", string(fr.Outcome),
		"frequency", fr.OverallFrequency,
	)
	event := shared.NewFinalResultDeterminedEvent(fr.ID, studentID, classGroup.ID, academicYear, string(fr.Outcome), actor.UserID, now)
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", logger.Err(err))
	}
	return fr, nil
}
