package events

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventRiskAlert, 1)
	defer unsub()

	bus.Publish(EventRiskAlert, "daily loss limit breached")

	select {
	case msg := <-ch:
		if msg != "daily loss limit breached" {
			t.Fatalf("got %v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventOrderPlaced, 1)
	defer unsub()

	bus.Publish(EventOrderPlaced, 1)
	bus.Publish(EventOrderPlaced, 2) // dropped, buffer full

	if got := <-ch; got != 1 {
		t.Fatalf("got %v, expected first message", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected second message %v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventOrderFilled, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(EventOrderFilled, "x")
}
