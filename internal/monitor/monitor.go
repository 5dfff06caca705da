package monitor

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"execution-core/internal/events"
)

// Monitor watches the event stream, keeps counters current, and forwards
// risk alerts to AlertFn.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	AlertFn func(string)
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("monitor: bus not configured, skipping")
		return
	}
	go m.watchCounters(ctx)
	if m.AlertFn != nil {
		go m.watchAlerts(ctx)
	}
}

func (m *Monitor) watchCounters(ctx context.Context) {
	if m.Metrics == nil {
		return
	}
	type tap struct {
		event events.Event
		count func()
	}
	taps := []tap{
		{events.EventSignalReceived, m.Metrics.IncrementSignals},
		{events.EventOrderPlaced, m.Metrics.IncrementPlaced},
		{events.EventOrderFilled, m.Metrics.IncrementFilled},
		{events.EventOrderCancelled, m.Metrics.IncrementCancelled},
		{events.EventOrderRejected, m.Metrics.IncrementErrors},
	}
	for _, t := range taps {
		stream, unsub := m.Bus.Subscribe(t.event, 100)
		go func(stream <-chan any, count func(), unsub func()) {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-stream:
					if !ok {
						return
					}
					count()
				}
			}
		}(stream, t.count, unsub)
	}
}

func (m *Monitor) watchAlerts(ctx context.Context) {
	stream, unsub := m.Bus.Subscribe(events.EventRiskAlert, 50)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			m.AlertFn(formatAlert(msg))
		}
	}
}

func formatAlert(msg any) string {
	return "[" + time.Now().UTC().Format(time.RFC3339) + "] " + toString(msg)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return "alert triggered"
	}
}
