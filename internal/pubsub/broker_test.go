package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestBrokerSubscribePublish(t *testing.T) {
	t.Run("single subscriber receives events", func(t *testing.T) {
		broker := NewBroker[string]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := broker.Subscribe(ctx)

		broker.Publish(EventCreated, "hello")

		select {
		case event := <-events:
			if event.Type != EventCreated || event.Payload != "hello" {
				t.Errorf("unexpected event: %+v", event)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("timeout waiting for event")
		}
	})

	t.Run("multiple subscribers receive same event", func(t *testing.T) {
		broker := NewBroker[int]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub1 := broker.Subscribe(ctx)
		sub2 := broker.Subscribe(ctx)

		broker.Publish(EventUpdated, 42)

		for i, sub := range []<-chan Event[int]{sub1, sub2} {
			select {
			case event := <-sub:
				if event.Payload != 42 {
					t.Errorf("subscriber %d: expected 42, got %d", i, event.Payload)
				}
			case <-time.After(100 * time.Millisecond):
				t.Errorf("subscriber %d: timeout", i)
			}
		}
	})

	t.Run("cancelled context unsubscribes", func(t *testing.T) {
		broker := NewBroker[string]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())

		events := broker.Subscribe(ctx)

		if broker.SubscriberCount() != 1 {
			t.Errorf("expected 1 subscriber, got %d", broker.SubscriberCount())
		}

		cancel()
		time.Sleep(50 * time.Millisecond) // Allow cleanup goroutine to run

		if broker.SubscriberCount() != 0 {
			t.Errorf("expected 0 subscribers after cancel, got %d", broker.SubscriberCount())
		}

		// Channel should be closed.
		select {
		case _, ok := <-events:
			if ok {
				t.Error("expected closed channel after cancel")
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("timeout waiting for channel close")
		}
	})

	t.Run("full subscriber drops events without blocking", func(t *testing.T) {
		broker := NewBroker[int]("test")
		defer broker.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub := broker.Subscribe(ctx)

		done := make(chan struct{})
		go func() {
			for i := 0; i < DefaultBufferSize*2; i++ {
				broker.Publish(EventProgress, i)
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on full subscriber")
		}

		// Drain what was buffered; the rest were dropped.
		drained := 0
		for {
			select {
			case <-sub:
				drained++
			default:
				if drained == 0 || drained > DefaultBufferSize {
					t.Errorf("drained %d events, want 1..%d", drained, DefaultBufferSize)
				}
				return
			}
		}
	})
}

func TestBrokerShutdown(t *testing.T) {
	t.Run("shutdown closes subscriber channels", func(t *testing.T) {
		broker := NewBroker[string]("test")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := broker.Subscribe(ctx)

		broker.Shutdown()

		select {
		case _, ok := <-events:
			if ok {
				t.Error("expected closed channel after shutdown")
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("timeout waiting for channel close")
		}
	})

	t.Run("publish after shutdown is a no-op", func(t *testing.T) {
		broker := NewBroker[string]("test")
		broker.Shutdown()

		// Must not panic.
		broker.Publish(EventCreated, "late")
	})

	t.Run("subscribe after shutdown returns closed channel", func(t *testing.T) {
		broker := NewBroker[string]("test")
		broker.Shutdown()

		events := broker.Subscribe(context.Background())
		if _, ok := <-events; ok {
			t.Error("expected closed channel from Subscribe after shutdown")
		}
	})

	t.Run("double shutdown is safe", func(t *testing.T) {
		broker := NewBroker[string]("test")
		broker.Shutdown()
		broker.Shutdown()
	})
}
