package eventbus

import (
	"context"
	"log"

	"github.com/vuquang/nhatro/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct{}

func NewLogConsumer() *LogConsumer { return &LogConsumer{} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	log.Printf("event: %s [%s:%s] %s", evt.EventType, evt.EntityType, evt.EntityID, evt.Summary)
	return nil
}
