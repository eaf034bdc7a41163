package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vuquang/nhatro/internal/event"
)

type capture struct {
	mu   sync.Mutex
	seen []event.DomainEvent
}

func (c *capture) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, evt)
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func TestBus_DeliversToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := New(8)
	cap1 := &capture{}
	cap2 := &capture{}
	bus.Subscribe("one", cap1)
	bus.Subscribe("two", cap2)
	bus.Start(ctx)

	for i := 0; i < 3; i++ {
		bus.Publish(ctx, event.NewPaymentRecorded(event.PaymentRecordedPayload{
			PaymentID: "p", InvoiceID: "i", Amount: 100,
		}))
	}

	require.Eventually(t, func() bool {
		return cap1.count() == 3 && cap2.count() == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	bus.Stop()
}

func TestBus_DrainsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := New(16)
	cap := &capture{}
	bus.Subscribe("cap", cap)

	// Publish before the consumer starts, then cancel immediately: the
	// drain loop must still deliver what is buffered.
	for i := 0; i < 5; i++ {
		bus.Publish(ctx, event.NewLeaseStarted(event.LeaseStartedPayload{LeaseID: "l"}))
	}
	bus.Start(ctx)
	cancel()
	bus.Stop()

	require.Equal(t, 5, cap.count())
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := New(1)
	ctx := context.Background()

	// No consumer running; the second publish must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(ctx, event.NewLeaseStarted(event.LeaseStartedPayload{LeaseID: "a"}))
		bus.Publish(ctx, event.NewLeaseStarted(event.LeaseStartedPayload{LeaseID: "b"}))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
}
