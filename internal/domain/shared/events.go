// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents a record that changed and that
// read models (report cards, dashboards) may need to refresh.
const (
	// Result events
	EventPeriodAverageCalculated EventType = "results.period_average_calculated"
	EventFinalResultDetermined   EventType = "results.final_result_determined"

	// Closing events
	EventClosingOpened              EventType = "closing.opened"
	EventClosingCompletenessChecked EventType = "closing.completeness_checked"
	EventClosingTransitioned        EventType = "closing.transitioned"

	// Rectification events
	EventRectificationRequested EventType = "closing.rectification_requested"
	EventRectificationDecided   EventType = "closing.rectification_decided"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Result Events
// ═══════════════════════════════════════════════════════════════════════════

// PeriodAverageCalculatedEvent is emitted after a period average is upserted.
type PeriodAverageCalculatedEvent struct {
	BaseEvent
	StudentID           string   `json:"student_id"`
	ClassGroupID        string   `json:"class_group_id"`
	TeacherAssignmentID string   `json:"teacher_assignment_id"`
	PeriodID            string   `json:"period_id"`
	Average             *float64 `json:"average,omitempty"`
	FrequencyPercentage float64  `json:"frequency_percentage"`
}

// Payload implements Event interface.
func (e PeriodAverageCalculatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":            e.StudentID,
		"class_group_id":        e.ClassGroupID,
		"teacher_assignment_id": e.TeacherAssignmentID,
		"period_id":             e.PeriodID,
		"average":               e.Average,
		"frequency_percentage":  e.FrequencyPercentage,
	}
}

// NewPeriodAverageCalculatedEvent creates a new PeriodAverageCalculatedEvent.
func NewPeriodAverageCalculatedEvent(id, studentID, classGroupID, assignmentID, periodID string, average *float64, frequency float64, at time.Time) PeriodAverageCalculatedEvent {
	return PeriodAverageCalculatedEvent{
		BaseEvent:           NewBaseEvent(EventPeriodAverageCalculated, id, at),
		StudentID:           studentID,
		ClassGroupID:        classGroupID,
		TeacherAssignmentID: assignmentID,
		PeriodID:            periodID,
		Average:             average,
		FrequencyPercentage: frequency,
	}
}

// FinalResultDeterminedEvent is emitted after a year-end outcome is upserted.
type FinalResultDeterminedEvent struct {
	BaseEvent
	StudentID    string `json:"student_id"`
	ClassGroupID string `json:"class_group_id"`
	AcademicYear int    `json:"academic_year"`
	Outcome      string `json:"outcome"`
	DeterminedBy string `json:"determined_by"`
}

// Payload implements Event interface.
func (e FinalResultDeterminedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"class_group_id": e.ClassGroupID,
		"academic_year":  e.AcademicYear,
		"outcome":        e.Outcome,
		"determined_by":  e.DeterminedBy,
	}
}

// NewFinalResultDeterminedEvent creates a new FinalResultDeterminedEvent.
func NewFinalResultDeterminedEvent(id, studentID, classGroupID string, year int, outcome, actor string, at time.Time) FinalResultDeterminedEvent {
	return FinalResultDeterminedEvent{
		BaseEvent:    NewBaseEvent(EventFinalResultDetermined, id, at),
		StudentID:    studentID,
		ClassGroupID: classGroupID,
		AcademicYear: year,
		Outcome:      outcome,
		DeterminedBy: actor,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Closing Events
// ═══════════════════════════════════════════════════════════════════════════

// ClosingTransitionedEvent is emitted whenever a period closing changes status.
type ClosingTransitionedEvent struct {
	BaseEvent
	ClassGroupID        string `json:"class_group_id"`
	TeacherAssignmentID string `json:"teacher_assignment_id"`
	PeriodID            string `json:"period_id"`
	Action              string `json:"action"`
	From                string `json:"from"`
	To                  string `json:"to"`
	Actor               string `json:"actor"`
	Reason              string `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e ClosingTransitionedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_group_id":        e.ClassGroupID,
		"teacher_assignment_id": e.TeacherAssignmentID,
		"period_id":             e.PeriodID,
		"action":                e.Action,
		"from":                  e.From,
		"to":                    e.To,
		"actor":                 e.Actor,
		"reason":                e.Reason,
	}
}

// ClosingCompletenessCheckedEvent is emitted after the checklist is re-evaluated.
type ClosingCompletenessCheckedEvent struct {
	BaseEvent
	GradesComplete        bool `json:"grades_complete"`
	AttendanceComplete    bool `json:"attendance_complete"`
	LessonRecordsComplete bool `json:"lesson_records_complete"`
}

// Payload implements Event interface.
func (e ClosingCompletenessCheckedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"grades_complete":         e.GradesComplete,
		"attendance_complete":     e.AttendanceComplete,
		"lesson_records_complete": e.LessonRecordsComplete,
	}
}

// ClosingOpenedEvent is emitted when a Pending closing row is first created.
type ClosingOpenedEvent struct {
	BaseEvent
	ClassGroupID        string `json:"class_group_id"`
	TeacherAssignmentID string `json:"teacher_assignment_id"`
	PeriodID            string `json:"period_id"`
}

// Payload implements Event interface.
func (e ClosingOpenedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_group_id":        e.ClassGroupID,
		"teacher_assignment_id": e.TeacherAssignmentID,
		"period_id":             e.PeriodID,
	}
}

// RectificationEvent covers both the request and the decision of a rectification.
type RectificationEvent struct {
	BaseEvent
	ClosingID  string `json:"closing_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Status     string `json:"status"`
	Actor      string `json:"actor"`
}

// Payload implements Event interface.
func (e RectificationEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"closing_id":  e.ClosingID,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"status":      e.Status,
		"actor":       e.Actor,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event payload into an envelope.
func NewEventEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          NewID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
