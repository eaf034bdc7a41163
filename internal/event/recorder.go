package event

import (
	"context"
	"fmt"
	"time"

	"github.com/vuquang/nhatro/internal/store"
)

// Recorder writes domain events to the audit log.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// StoreRecorder implements Recorder by appending to the events table.
// If a Publisher is set, the event is also published to the event bus
// after the store write succeeds.
type StoreRecorder struct {
	db  store.Querier
	bus Publisher
}

// NewStoreRecorder creates a StoreRecorder backed by the given store.
func NewStoreRecorder(db store.Querier) *StoreRecorder {
	return &StoreRecorder{db: db}
}

// SetPublisher attaches an event bus. Events are published after store
// writes.
func (r *StoreRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record appends the event to the audit table, then publishes it.
func (r *StoreRecorder) Record(ctx context.Context, evt DomainEvent) error {
	var payload any
	if len(evt.Payload) > 0 {
		payload = string(evt.Payload)
	}
	_, err := r.db.Execute(ctx, `
		INSERT INTO events (id, event_type, occurred_at, entity_type, entity_id, summary, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.EventType, evt.OccurredAt.UTC().Format(time.RFC3339),
		evt.EntityType, evt.EntityID, evt.Summary, payload)
	if err != nil {
		return fmt.Errorf("recording event %s: %w", evt.EventType, err)
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *StoreRecorder) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]DomainEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, event_type, occurred_at, entity_type, entity_id, summary, COALESCE(payload, '')
		FROM events
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY occurred_at DESC LIMIT ?`,
		entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events for %s %s: %w", entityType, entityID, err)
	}
	defer rows.Close()

	var out []DomainEvent
	for rows.Next() {
		var (
			evt      DomainEvent
			occurred string
			payload  string
		)
		if err := rows.Scan(&evt.ID, &evt.EventType, &occurred, &evt.EntityType,
			&evt.EntityID, &evt.Summary, &payload); err != nil {
			return nil, err
		}
		if evt.OccurredAt, err = time.Parse(time.RFC3339, occurred); err != nil {
			return nil, err
		}
		if payload != "" {
			evt.Payload = []byte(payload)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
