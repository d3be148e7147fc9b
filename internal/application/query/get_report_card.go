// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/school-hub/gradebook/config"
	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET REPORT CARD QUERY
// Collects the stored period averages and the final result of a student in a
// class. The read model is cached per student and class; the cache is dropped
// whenever an average or a final result is recomputed.
// ══════════════════════════════════════════════════════════════════════════════

// GetReportCardQuery identifies the report card to read.
type GetReportCardQuery struct {
	StudentID    string
	ClassGroupID string
}

// Validate checks the query parameters.
func (q GetReportCardQuery) Validate() error {
	fields := map[string]string{}
	if q.StudentID == "" {
		fields["student_id"] = "required"
	}
	if q.ClassGroupID == "" {
		fields["class_group_id"] = "required"
	}
	if len(fields) > 0 {
		return shared.NewValidationError("query", "GetReportCard", "invalid query", fields)
	}
	return nil
}

// PeriodAverageDTO is one row of a report card.
type PeriodAverageDTO struct {
	TeacherAssignmentID string    `json:"teacher_assignment_id"`
	PeriodID            string    `json:"period_id"`
	NumericAverage      *float64  `json:"numeric_average,omitempty"`
	ConceptualAverage   *string   `json:"conceptual_average,omitempty"`
	TotalAbsences       int       `json:"total_absences"`
	FrequencyPercentage float64   `json:"frequency_percentage"`
	CalculatedAt        time.Time `json:"calculated_at"`
}

// FinalResultDTO is the year-end block of a report card.
type FinalResultDTO struct {
	Outcome          string    `json:"outcome"`
	OverallAverage   *float64  `json:"overall_average,omitempty"`
	OverallFrequency float64   `json:"overall_frequency"`
	CouncilOverride  bool      `json:"council_override"`
	DeterminedBy     string    `json:"determined_by"`
	DeterminedAt     time.Time `json:"determined_at"`
}

// ReportCardDTO is the read model of a student's results in a class.
type ReportCardDTO struct {
	StudentID    string             `json:"student_id"`
	ClassGroupID string             `json:"class_group_id"`
	AcademicYear int                `json:"academic_year"`
	Periods      []PeriodAverageDTO `json:"periods"`
	Final        *FinalResultDTO    `json:"final,omitempty"`
}

// ReportCardCache stores report cards. Get returns ErrReportCardMiss when absent.
type ReportCardCache interface {
	Get(ctx context.Context, studentID, classGroupID string) (*ReportCardDTO, error)
	Set(ctx context.Context, card *ReportCardDTO) error
	Invalidate(ctx context.Context, studentID, classGroupID string) error
}

// ErrReportCardMiss is returned by a ReportCardCache on a miss.
var ErrReportCardMiss = errors.New("report card not cached")

// FeatureChecker reports whether a feature is enabled for a school.
type FeatureChecker interface {
	EnabledForSchool(feature, schoolID string) bool
}

// GetReportCardHandler handles GetReportCardQuery.
type GetReportCardHandler struct {
	directory academic.Directory
	averages  result.PeriodAverageRepository
	finals    result.FinalResultRepository
	cache     ReportCardCache
	features  FeatureChecker
	logger    *slog.Logger
}

// NewGetReportCardHandler creates a new GetReportCardHandler. A nil cache
// disables caching.
func NewGetReportCardHandler(
	directory academic.Directory,
	averages result.PeriodAverageRepository,
	finals result.FinalResultRepository,
	cache ReportCardCache,
	features FeatureChecker,
	log *slog.Logger,
) *GetReportCardHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GetReportCardHandler{
		directory: directory,
		averages:  averages,
		finals:    finals,
		cache:     cache,
		features:  features,
		logger:    log.With("handler", "get_report_card"),
	}
}

// Handle executes the query.
func (h *GetReportCardHandler) Handle(ctx context.Context, q GetReportCardQuery) (*ReportCardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cg, err := h.directory.ClassGroup(ctx, q.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("get_report_card: %w", err)
	}

	useCache := h.cacheEnabled(cg.SchoolID)
	if useCache {
		card, err := h.cache.Get(ctx, q.StudentID, q.ClassGroupID)
		if err == nil {
			return card, nil
		}
		if !errors.Is(err, ErrReportCardMiss) {
			h.logger.Warn("report card cache read failed", logger.StudentID(q.StudentID), logger.Err(err))
		}
	}

	card, err := h.build(ctx, q.StudentID, cg)
	if err != nil {
		return nil, fmt.Errorf("get_report_card: %w", err)
	}

	if useCache {
		if err := h.cache.Set(ctx, card); err != nil {
			h.logger.Warn("report card cache write failed", logger.StudentID(q.StudentID), logger.Err(err))
		}
	}
	return card, nil
}

func (h *GetReportCardHandler) cacheEnabled(schoolID string) bool {
	if h.cache == nil {
		return false
	}
	return h.features == nil || h.features.EnabledForSchool(config.FeatureReportCardCache, schoolID)
}

func (h *GetReportCardHandler) build(ctx context.Context, studentID string, cg *academic.ClassGroup) (*ReportCardDTO, error) {
	averages, err := h.averages.ListByStudent(ctx, studentID, cg.ID)
	if err != nil {
		return nil, err
	}

	card := &ReportCardDTO{
		StudentID:    studentID,
		ClassGroupID: cg.ID,
		AcademicYear: cg.AcademicYear,
		Periods:      make([]PeriodAverageDTO, 0, len(averages)),
	}
	for _, pa := range averages {
		card.Periods = append(card.Periods, PeriodAverageDTO{
			TeacherAssignmentID: pa.TeacherAssignmentID,
			PeriodID:            pa.PeriodID,
			NumericAverage:      pa.NumericAverage,
			ConceptualAverage:   pa.ConceptualAverage,
			TotalAbsences:       pa.TotalAbsences,
			FrequencyPercentage: pa.FrequencyPercentage,
			CalculatedAt:        pa.CalculatedAt,
		})
	}
	sort.SliceStable(card.Periods, func(i, j int) bool {
		if card.Periods[i].PeriodID != card.Periods[j].PeriodID {
			return card.Periods[i].PeriodID < card.Periods[j].PeriodID
		}
		return card.Periods[i].TeacherAssignmentID < card.Periods[j].TeacherAssignmentID
	})

	fr, err := h.finals.FindByKey(ctx, result.FinalResultKey{
		StudentID:    studentID,
		ClassGroupID: cg.ID,
		AcademicYear: cg.AcademicYear,
	})
	switch {
	case err == nil:
		card.Final = &FinalResultDTO{
			Outcome:          string(fr.Outcome),
			OverallAverage:   fr.OverallAverage,
			OverallFrequency: fr.OverallFrequency,
			CouncilOverride:  fr.CouncilOverride,
			DeterminedBy:     fr.DeterminedBy,
			DeterminedAt:     fr.DeterminedAt,
		}
	case !shared.IsNotFound(err):
		return nil, err
	}
	return card, nil
}
