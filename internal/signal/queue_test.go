package signal

import (
	"context"
	"testing"
	"time"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(10)
	q.Push(Signal{Direction: DirectionBuy, Size: 1})
	q.Push(Signal{Direction: DirectionSell, Size: 2})
	q.Push(Signal{Direction: DirectionHold})
	q.Close()

	var got []Direction
	q.Drain(context.Background(), func(s Signal) {
		got = append(got, s.Direction)
	})

	want := []Direction{DirectionBuy, DirectionSell, DirectionHold}
	if len(got) != len(want) {
		t.Fatalf("drained %d signals, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v, expected %v", i, got[i], want[i])
		}
	}
}

func TestTryPushDropsOnBacklog(t *testing.T) {
	q := NewQueue(1)
	if !q.TryPush(Signal{Direction: DirectionBuy, Size: 1}) {
		t.Fatal("first TryPush should succeed")
	}
	if q.TryPush(Signal{Direction: DirectionBuy, Size: 2}) {
		t.Fatal("second TryPush should drop on full queue")
	}
	if q.Len() != 1 {
		t.Fatalf("Len=%d, expected 1", q.Len())
	}
}

func TestDrainStopsOnContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		q.Drain(ctx, func(Signal) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after context cancel")
	}
}
