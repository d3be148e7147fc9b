package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/school-hub/gradebook/config"
	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD CLOSING COMMANDS
// Drive a (class group, teacher assignment, period) through
// Pending → InValidation → Approved → Closed, the teacher's direct close and
// reopen. Every status change is checked against closing's transition table.
// ══════════════════════════════════════════════════════════════════════════════

// OpenPeriodClosingCommand gets or creates the closing of a scope.
type OpenPeriodClosingCommand struct {
	ClassGroupID        string `field:"class_group_id" validate:"required"`
	TeacherAssignmentID string `field:"teacher_assignment_id" validate:"required"`
	PeriodID            string `field:"period_id" validate:"required"`
}

// CheckCompletenessCommand re-evaluates the checklist of a closing.
type CheckCompletenessCommand struct {
	ClosingID string `field:"closing_id" validate:"required"`
}

// SubmitPeriodClosingCommand moves a Pending closing into validation.
type SubmitPeriodClosingCommand struct {
	ClosingID string `field:"closing_id" validate:"required"`
	Actor     shared.Principal
}

// ValidatePeriodClosingCommand approves or rejects a submitted closing.
// Reason is required when rejecting.
type ValidatePeriodClosingCommand struct {
	ClosingID string `field:"closing_id" validate:"required"`
	Approve   bool
	Reason    string `field:"reason" validate:"required_if=Approve false"`
	Actor     shared.Principal
}

// ClosePeriodCommand closes an Approved closing.
type ClosePeriodCommand struct {
	ClosingID string `field:"closing_id" validate:"required"`
	Actor     shared.Principal
}

// TeacherDirectCloseCommand closes a Pending closing in one step.
type TeacherDirectCloseCommand struct {
	ClosingID string `field:"closing_id" validate:"required"`
	Actor     shared.Principal
}

// BulkTeacherCloseCommand direct-closes every Pending closing of an assignment.
type BulkTeacherCloseCommand struct {
	ClassGroupID        string `field:"class_group_id" validate:"required"`
	TeacherAssignmentID string `field:"teacher_assignment_id" validate:"required"`
	Actor               shared.Principal
}

// ReopenPeriodClosingCommand returns a Closed closing to Pending.
type ReopenPeriodClosingCommand struct {
	ClosingID string `field:"closing_id" validate:"required"`
	Reason    string `field:"reason" validate:"required,notblank"`
	Actor     shared.Principal
}

// BulkTeacherCloseResult lists the closed ids and the failures.
type BulkTeacherCloseResult struct {
	shared.BatchOutcome
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// FeatureChecker reports whether a feature is enabled for a school.
type FeatureChecker interface {
	EnabledForSchool(feature, schoolID string) bool
}

type allFeatures struct{}

func (allFeatures) EnabledForSchool(string, string) bool { return true }

func requireFeature(features FeatureChecker, feature, schoolID, op string) error {
	if features.EnabledForSchool(feature, schoolID) {
		return nil
	}
	return shared.NewValidationError("command", op,
		fmt.Sprintf("feature %s is disabled for this school", feature),
		map[string]string{"feature": feature}).WithKind(shared.ErrForbidden)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// PeriodClosingHandler handles the period closing commands.
type PeriodClosingHandler struct {
	closings  closing.Repository
	directory academic.Directory
	checker   *closing.Checker
	features  FeatureChecker
	publisher shared.EventPublisher
	clock     timeutil.Clock
	logger    *slog.Logger
}

// NewPeriodClosingHandler creates a new PeriodClosingHandler. A nil features
// checker enables every feature.
func NewPeriodClosingHandler(
	closings closing.Repository,
	directory academic.Directory,
	completeness closing.CompletenessReader,
	features FeatureChecker,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *slog.Logger,
) *PeriodClosingHandler {
	if features == nil {
		features = allFeatures{}
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &PeriodClosingHandler{
		closings:  closings,
		directory: directory,
		checker:   closing.NewChecker(completeness),
		features:  features,
		publisher: publisher,
		clock:     timeutil.OrSystem(clock),
		logger:    log.With("handler", "period_closing"),
	}
}

// Open returns the closing of the scope, creating a Pending one if needed.
func (h *PeriodClosingHandler) Open(ctx context.Context, cmd OpenPeriodClosingCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("OpenPeriodClosing", cmd); err != nil {
		return nil, err
	}

	key := closing.Key{
		ClassGroupID:        cmd.ClassGroupID,
		TeacherAssignmentID: cmd.TeacherAssignmentID,
		PeriodID:            cmd.PeriodID,
	}
	existing, err := h.closings.FindByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("open_period_closing: %w", err)
	}

	// Referenced entities must exist before a closing row is created.
	if _, err := h.directory.ClassGroup(ctx, cmd.ClassGroupID); err != nil {
		return nil, fmt.Errorf("open_period_closing: %w", err)
	}
	if _, err := h.directory.TeacherAssignment(ctx, cmd.TeacherAssignmentID); err != nil {
		return nil, fmt.Errorf("open_period_closing: %w", err)
	}
	if _, err := h.directory.Period(ctx, cmd.PeriodID); err != nil {
		return nil, fmt.Errorf("open_period_closing: %w", err)
	}

	now := h.clock.Now()
	pc := closing.NewPeriodClosing(key, now)
	if err := h.closings.Create(ctx, pc); err != nil {
		if shared.IsAlreadyExists(err) {
			return h.closings.FindByKey(ctx, key)
		}
		return nil, fmt.Errorf("open_period_closing: %w", err)
	}

	h.logger.Info("period closing opened", logger.ClosingID(pc.ID), logger.ClassGroupID(pc.ClassGroupID), logger.PeriodID(pc.PeriodID))
	h.publish(shared.ClosingOpenedEvent{
		BaseEvent:           shared.NewBaseEvent(shared.EventClosingOpened, pc.ID, now),
		ClassGroupID:        pc.ClassGroupID,
		TeacherAssignmentID: pc.TeacherAssignmentID,
		PeriodID:            pc.PeriodID,
	})
	return pc, nil
}

// CheckCompleteness re-evaluates the three checklist predicates and stores them.
// It never changes status and succeeds in every state.
func (h *PeriodClosingHandler) CheckCompleteness(ctx context.Context, cmd CheckCompletenessCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("CheckCompleteness", cmd); err != nil {
		return nil, err
	}
	pc, err := h.closings.FindByID(ctx, cmd.ClosingID)
	if err != nil {
		return nil, fmt.Errorf("check_completeness: %w", err)
	}
	if _, err := h.refreshCompleteness(ctx, pc); err != nil {
		return nil, fmt.Errorf("check_completeness: %w", err)
	}
	if err := h.closings.Save(ctx, pc); err != nil {
		return nil, fmt.Errorf("check_completeness: %w", err)
	}
	return pc, nil
}

// Submit moves Pending → InValidation using the stored completeness flags.
func (h *PeriodClosingHandler) Submit(ctx context.Context, cmd SubmitPeriodClosingCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("SubmitPeriodClosing", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("SubmitPeriodClosing", cmd.Actor); err != nil {
		return nil, err
	}
	return h.transition(ctx, cmd.ClosingID, closing.ActionSubmit, cmd.Actor, "",
		func(pc *closing.PeriodClosing) error {
			return pc.Submit(cmd.Actor, h.clock.Now())
		})
}

// Validate approves (→ Approved) or rejects (→ Pending) a submitted closing.
func (h *PeriodClosingHandler) Validate(ctx context.Context, cmd ValidatePeriodClosingCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("ValidatePeriodClosing", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("ValidatePeriodClosing", cmd.Actor); err != nil {
		return nil, err
	}
	if cmd.Approve {
		return h.transition(ctx, cmd.ClosingID, closing.ActionApprove, cmd.Actor, "",
			func(pc *closing.PeriodClosing) error {
				return pc.Approve(cmd.Actor, h.clock.Now())
			})
	}
	return h.transition(ctx, cmd.ClosingID, closing.ActionReject, cmd.Actor, cmd.Reason,
		func(pc *closing.PeriodClosing) error {
			return pc.Reject(cmd.Reason, h.clock.Now())
		})
}

// Close moves Approved → Closed.
func (h *PeriodClosingHandler) Close(ctx context.Context, cmd ClosePeriodCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("ClosePeriod", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("ClosePeriod", cmd.Actor); err != nil {
		return nil, err
	}
	return h.transition(ctx, cmd.ClosingID, closing.ActionClose, cmd.Actor, "",
		func(pc *closing.PeriodClosing) error {
			return pc.Close(cmd.Actor, h.clock.Now())
		})
}

// TeacherDirectClose closes a Pending closing after an inline completeness check.
// Refreshed flags are stored even when the close fails.
func (h *PeriodClosingHandler) TeacherDirectClose(ctx context.Context, cmd TeacherDirectCloseCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("TeacherDirectClose", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("TeacherDirectClose", cmd.Actor); err != nil {
		return nil, err
	}
	pc, err := h.closings.FindByID(ctx, cmd.ClosingID)
	if err != nil {
		return nil, fmt.Errorf("teacher_direct_close: %w", err)
	}
	cg, err := h.directory.ClassGroup(ctx, pc.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("teacher_direct_close: %w", err)
	}
	if err := requireFeature(h.features, config.FeatureTeacherDirectClose, cg.SchoolID, "TeacherDirectClose"); err != nil {
		return nil, err
	}
	if err := h.directClose(ctx, pc, cmd.Actor); err != nil {
		return nil, err
	}
	return pc, nil
}

// BulkTeacherClose direct-closes every Pending closing of a class group and
// teacher assignment. It fails only when there is nothing to attempt.
func (h *PeriodClosingHandler) BulkTeacherClose(ctx context.Context, cmd BulkTeacherCloseCommand) (*BulkTeacherCloseResult, error) {
	if err := validateCommand("BulkTeacherClose", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("BulkTeacherClose", cmd.Actor); err != nil {
		return nil, err
	}
	cg, err := h.directory.ClassGroup(ctx, cmd.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("bulk_teacher_close: %w", err)
	}
	if err := requireFeature(h.features, config.FeatureTeacherDirectClose, cg.SchoolID, "BulkTeacherClose"); err != nil {
		return nil, err
	}

	all, err := h.closings.ListByAssignment(ctx, cmd.ClassGroupID, cmd.TeacherAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("bulk_teacher_close: %w", err)
	}
	pending := make([]*closing.PeriodClosing, 0, len(all))
	for _, pc := range all {
		if pc.Status == closing.StatusPending {
			pending = append(pending, pc)
		}
	}
	if len(pending) == 0 {
		return nil, shared.NewValidationError("command", "BulkTeacherClose",
			"no pending closings to close",
			map[string]string{"teacher_assignment_id": cmd.TeacherAssignmentID}).WithKind(shared.ErrInvalidState)
	}

	res := &BulkTeacherCloseResult{}
	for _, pc := range pending {
		if err := h.directClose(ctx, pc, cmd.Actor); err != nil {
			h.logger.Warn("direct close failed", logger.ClosingID(pc.ID), logger.PeriodID(pc.PeriodID), logger.Err(err))
			res.Fail(pc.ID, err)
			continue
		}
		res.Succeed(pc.ID)
	}

	h.logger.Info("bulk teacher close finished",
		logger.ClassGroupID(cmd.ClassGroupID),
		logger.AssignmentID(cmd.TeacherAssignmentID),
		logger.Actor(cmd.Actor.UserID),
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
	)
	return res, nil
}

// Reopen moves Closed → Pending, clearing the audit stamps.
func (h *PeriodClosingHandler) Reopen(ctx context.Context, cmd ReopenPeriodClosingCommand) (*closing.PeriodClosing, error) {
	if err := validateCommand("ReopenPeriodClosing", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("ReopenPeriodClosing", cmd.Actor); err != nil {
		return nil, err
	}
	return h.transition(ctx, cmd.ClosingID, closing.ActionReopen, cmd.Actor, cmd.Reason,
		func(pc *closing.PeriodClosing) error {
			return pc.Reopen(cmd.Actor, cmd.Reason, h.clock.Now())
		})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (h *PeriodClosingHandler) transition(
	ctx context.Context,
	closingID string,
	action closing.Action,
	actor shared.Principal,
	reason string,
	apply func(pc *closing.PeriodClosing) error,
) (*closing.PeriodClosing, error) {
	pc, err := h.closings.FindByID(ctx, closingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	from := pc.Status
	if err := apply(pc); err != nil {
		return nil, err
	}
	if err := h.closings.Save(ctx, pc); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	h.transitioned(pc, action, from, actor, reason)
	return pc, nil
}

func (h *PeriodClosingHandler) directClose(ctx context.Context, pc *closing.PeriodClosing, actor shared.Principal) error {
	if !pc.CanTransition(closing.ActionDirectClose) {
		_, err := closing.NextStatus(pc.Status, closing.ActionDirectClose)
		return err
	}
	if _, err := h.refreshCompleteness(ctx, pc); err != nil {
		return fmt.Errorf("direct_close: %w", err)
	}

	from := pc.Status
	closeErr := pc.DirectClose(actor, h.clock.Now())
	if err := h.closings.Save(ctx, pc); err != nil {
		return fmt.Errorf("direct_close: %w", err)
	}
	if closeErr != nil {
		return closeErr
	}
	h.transitioned(pc, closing.ActionDirectClose, from, actor, "")
	return nil
}

// refreshCompleteness evaluates the predicates for pc's scope and records them.
func (h *PeriodClosingHandler) refreshCompleteness(ctx context.Context, pc *closing.PeriodClosing) (closing.Completeness, error) {
	cg, err := h.directory.ClassGroup(ctx, pc.ClassGroupID)
	if err != nil {
		return closing.Completeness{}, err
	}
	period, err := h.directory.Period(ctx, pc.PeriodID)
	if err != nil {
		return closing.Completeness{}, err
	}

	result, err := h.checker.Check(ctx, closing.Scope{
		SchoolID:            cg.SchoolID,
		ClassGroupID:        pc.ClassGroupID,
		TeacherAssignmentID: pc.TeacherAssignmentID,
		PeriodID:            pc.PeriodID,
		From:                period.StartDate,
		To:                  period.EndDate,
	})
	if err != nil {
		return closing.Completeness{}, err
	}

	now := h.clock.Now()
	pc.RecordCompleteness(result, now)
	h.publish(shared.ClosingCompletenessCheckedEvent{
		BaseEvent:             shared.NewBaseEvent(shared.EventClosingCompletenessChecked, pc.ID, now),
		GradesComplete:        result.Grades,
		AttendanceComplete:    result.Attendance,
		LessonRecordsComplete: result.LessonRecords,
	})
	return result, nil
}

func (h *PeriodClosingHandler) transitioned(pc *closing.PeriodClosing, action closing.Action, from closing.Status, actor shared.Principal, reason string) {
	h.logger.Info("period closing transitioned",
		logger.ClosingID(pc.ID),
		logger.PeriodID(pc.PeriodID),
		logger.Actor(actor.UserID),
		"action", string(action),
		"from", string(from),
		"to", string(pc.Status),
	)
	h.publish(shared.ClosingTransitionedEvent{
		BaseEvent:           shared.NewBaseEvent(shared.EventClosingTransitioned, pc.ID, pc.UpdatedAt),
		ClassGroupID:        pc.ClassGroupID,
		TeacherAssignmentID: pc.TeacherAssignmentID,
		PeriodID:            pc.PeriodID,
		Action:              string(action),
		From:                string(from),
		To:                  string(pc.Status),
		Actor:               actor.UserID,
		Reason:              reason,
	})
}

func (h *PeriodClosingHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", "event_type", string(event.EventType()), logger.Err(err))
	}
}
