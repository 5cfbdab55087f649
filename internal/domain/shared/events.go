package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types published after a write commits.
const (
	EventAssessmentRecorded   EventType = "progress.assessment_recorded"
	EventStudySessionRecorded EventType = "progress.study_session_recorded"
	EventLevelChanged         EventType = "progress.level_changed"
	EventGoalCreated          EventType = "goal.created"
	EventGoalDeactivated      EventType = "goal.deactivated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the owning user id.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, userID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressRecordedEvent is emitted after an assessment or study session
// and its mastery update were committed together.
type ProgressRecordedEvent struct {
	BaseEvent
	EventID    string  `json:"event_id"`
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
	Level      string  `json:"level"`
}

// Payload implements Event interface.
func (e ProgressRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":   e.EventID,
		"subject":    e.Subject,
		"topic":      e.Topic,
		"confidence": e.Confidence,
		"level":      e.Level,
	}
}

// LevelChangedEvent is emitted when a write moves a topic to another level.
type LevelChangedEvent struct {
	BaseEvent
	Subject  string `json:"subject"`
	Topic    string `json:"topic"`
	OldLevel string `json:"old_level"`
	NewLevel string `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"subject":   e.Subject,
		"topic":     e.Topic,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// GoalChangedEvent is emitted when a learning goal is created or deactivated.
type GoalChangedEvent struct {
	BaseEvent
	GoalID  string `json:"goal_id"`
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
}

// Payload implements Event interface.
func (e GoalChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"goal_id": e.GoalID,
		"subject": e.Subject,
		"topic":   e.Topic,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish delivers an event to subscribers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
