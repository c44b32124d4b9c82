package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// EventSnapshotsAppended is published after a batch of snapshots has been
	// written to the store. It is the only trigger for result cache invalidation.
	EventSnapshotsAppended EventType = "snapshot.appended"
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

// EventHandler handles a published event.
type EventHandler func(event Event) error

// EventBus delivers domain events to subscribers.
type EventBus interface {
	// Publish sends an event to every subscriber of its type.
	Publish(event Event) error

	// Subscribe registers a handler for one event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// Close stops accepting events and waits for running handlers.
	Close() error
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

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
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
// Snapshot Events
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotsAppendedEvent is emitted after snapshots were appended to the store.
type SnapshotsAppendedEvent struct {
	BaseEvent
	// Groups maps entity kind to the groups touched by the batch.
	Groups map[string][]string `json:"groups"`
	Count  int                 `json:"count"`
}

// Payload implements Event interface.
func (e SnapshotsAppendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"groups": e.Groups,
		"count":  e.Count,
	}
}

// NewSnapshotsAppendedEvent creates a new SnapshotsAppendedEvent.
func NewSnapshotsAppendedEvent(batchID string, groups map[string][]string, count int) SnapshotsAppendedEvent {
	return SnapshotsAppendedEvent{
		BaseEvent: NewBaseEvent(EventSnapshotsAppended, batchID),
		Groups:    groups,
		Count:     count,
	}
}
