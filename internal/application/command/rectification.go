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
// RECTIFICATION COMMANDS
// File and decide correction requests against closed periods. The corrected
// record itself is never touched here.
// ══════════════════════════════════════════════════════════════════════════════

// RequestRectificationCommand files a rectification against a closed period.
type RequestRectificationCommand struct {
	ClosingID     string `field:"closing_id" validate:"required"`
	EntityType    string `field:"entity_type" validate:"required"`
	EntityID      string `field:"entity_id" validate:"required"`
	FieldChanged  string `field:"field_changed" validate:"required"`
	OldValue      string `field:"old_value"`
	NewValue      string `field:"new_value"`
	Justification string `field:"justification" validate:"required,notblank"`
	Actor         shared.Principal
}

// DecideRectificationCommand approves or rejects a pending rectification.
type DecideRectificationCommand struct {
	RectificationID string `field:"rectification_id" validate:"required"`
	Approve         bool
	Actor           shared.Principal
}

// RectificationHandler handles the rectification commands.
type RectificationHandler struct {
	rectifications closing.RectificationRepository
	closings       closing.Repository
	directory      academic.Directory
	features       FeatureChecker
	publisher      shared.EventPublisher
	clock          timeutil.Clock
	logger         *slog.Logger
}

// NewRectificationHandler creates a new RectificationHandler.
func NewRectificationHandler(
	rectifications closing.RectificationRepository,
	closings closing.Repository,
	directory academic.Directory,
	features FeatureChecker,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *slog.Logger,
) *RectificationHandler {
	if features == nil {
		features = allFeatures{}
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &RectificationHandler{
		rectifications: rectifications,
		closings:       closings,
		directory:      directory,
		features:       features,
		publisher:      publisher,
		clock:          timeutil.OrSystem(clock),
		logger:         log.With("handler", "rectification"),
	}
}

// Request creates a Requested rectification. The closing must be Closed.
func (h *RectificationHandler) Request(ctx context.Context, cmd RequestRectificationCommand) (*closing.Rectification, error) {
	if err := validateCommand("RequestRectification", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("RequestRectification", cmd.Actor); err != nil {
		return nil, err
	}

	pc, err := h.closings.FindByID(ctx, cmd.ClosingID)
	if err != nil {
		return nil, fmt.Errorf("request_rectification: %w", err)
	}
	cg, err := h.directory.ClassGroup(ctx, pc.ClassGroupID)
	if err != nil {
		return nil, fmt.Errorf("request_rectification: %w", err)
	}
	if err := requireFeature(h.features, config.FeatureRectification, cg.SchoolID, "RequestRectification"); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	rec, err := closing.NewRectification(pc, closing.RectificationRequest{
		EntityType:    cmd.EntityType,
		EntityID:      cmd.EntityID,
		FieldChanged:  cmd.FieldChanged,
		OldValue:      cmd.OldValue,
		NewValue:      cmd.NewValue,
		Justification: cmd.Justification,
	}, cmd.Actor, now)
	if err != nil {
		return nil, err
	}
	if err := h.rectifications.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("request_rectification: %w", err)
	}

	h.logger.Info("rectification requested",
		logger.ClosingID(pc.ID),
		logger.Actor(cmd.Actor.UserID),
		"rectification_id", rec.ID,
		"entity_type", rec.EntityType,
	)
	h.publish(shared.RectificationEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventRectificationRequested, rec.ID, now),
		ClosingID:  rec.ClosingID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Status:     string(rec.Status),
		Actor:      cmd.Actor.UserID,
	})
	return rec, nil
}

// Decide moves a Requested rectification to Approved or Rejected.
func (h *RectificationHandler) Decide(ctx context.Context, cmd DecideRectificationCommand) (*closing.Rectification, error) {
	if err := validateCommand("DecideRectification", cmd); err != nil {
		return nil, err
	}
	if err := requireActor("DecideRectification", cmd.Actor); err != nil {
		return nil, err
	}

	rec, err := h.rectifications.FindByID(ctx, cmd.RectificationID)
	if err != nil {
		return nil, fmt.Errorf("decide_rectification: %w", err)
	}
	now := h.clock.Now()
	if err := rec.Decide(cmd.Approve, cmd.Actor, now); err != nil {
		return nil, err
	}
	if err := h.rectifications.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("decide_rectification: %w", err)
	}

	h.logger.Info("rectification decided",
		logger.ClosingID(rec.ClosingID),
		logger.Actor(cmd.Actor.UserID),
		"rectification_id", rec.ID,
		"status", string(rec.Status),
	)
	h.publish(shared.RectificationEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventRectificationDecided, rec.ID, now),
		ClosingID:  rec.ClosingID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Status:     string(rec.Status),
		Actor:      cmd.Actor.UserID,
	})
	return rec, nil
}

func (h *RectificationHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", "event_type", string(event.EventType()), logger.Err(err))
	}
}
