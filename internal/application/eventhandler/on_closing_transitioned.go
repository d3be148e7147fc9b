package eventhandler

import (
	"log/slog"

	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CLOSING TRANSITIONED HANDLER
// Writes an audit line for every lifecycle change of a period closing and
// every rectification decision.
// ═══════════════════════════════════════════════════════════════════════════

// OnClosingTransitionedHandler writes the closing audit trail.
type OnClosingTransitionedHandler struct {
	logger *slog.Logger
}

// NewOnClosingTransitionedHandler creates a new OnClosingTransitionedHandler.
func NewOnClosingTransitionedHandler(log *slog.Logger) *OnClosingTransitionedHandler {
	if log == nil {
		log = slog.Default()
	}
	return &OnClosingTransitionedHandler{logger: log.With("handler", "closing_audit")}
}

// Subscribe registers the handler for the closing events.
func (h *OnClosingTransitionedHandler) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventClosingTransitioned,
		shared.EventRectificationRequested,
		shared.EventRectificationDecided,
	} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnClosingTransitionedHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.ClosingTransitionedEvent:
		attrs := []any{
			logger.ClosingID(e.AggregateID()),
			logger.ClassGroupID(e.ClassGroupID),
			logger.PeriodID(e.PeriodID),
			logger.Actor(e.Actor),
			"action", e.Action,
			"from", e.From,
			"to", e.To,
		}
		if e.Reason != "" {
			attrs = append(attrs, "reason", e.Reason)
		}
		h.logger.Info("closing audit", attrs...)
	case shared.RectificationEvent:
		h.logger.Info("rectification audit",
			logger.ClosingID(e.ClosingID),
			logger.Actor(e.Actor),
			"rectification_id", e.AggregateID(),
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"status", e.Status,
		)
	default:
		h.logger.Warn("unexpected event", "event_type", string(event.EventType()))
	}
	return nil
}
