package order

import (
	"context"
	"log"
	"time"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/state"
	"execution-core/pkg/exchanges/common"
)

// Poller watches every tracked open order from a single loop. One goroutine
// serves the whole open set; spawning a poller per order does not survive
// bursts. Orders that stay open past the budget are cancelled and evicted so
// a dead order cannot pin the loop forever.
type Poller struct {
	executor  *Executor
	positions *state.Manager
	bus       *events.Bus
	metrics   *monitor.SystemMetrics

	interval time.Duration
	budget   time.Duration
}

// SetMetrics attaches the latency histograms. Call before Run.
func (p *Poller) SetMetrics(m *monitor.SystemMetrics) {
	p.metrics = m
}

func NewPoller(e *Executor, positions *state.Manager, bus *events.Bus, interval, budget time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if budget <= 0 {
		budget = 5 * time.Minute
	}
	return &Poller{
		executor:  e,
		positions: positions,
		bus:       bus,
		interval:  interval,
		budget:    budget,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	log.Printf("poller: started, interval=%s budget=%s", p.interval, p.budget)

	for {
		select {
		case <-ctx.Done():
			log.Println("poller: stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep checks each tracked order once.
func (p *Poller) sweep(ctx context.Context) {
	if p.metrics != nil {
		defer monitor.NewTimer(p.metrics.PollLatency).Stop()
	}
	for _, o := range p.executor.OpenOrders() {
		if ctx.Err() != nil {
			return
		}
		p.checkOrder(ctx, o)
	}
}

func (p *Poller) checkOrder(ctx context.Context, o Order) {
	snap, err := p.executor.gateway.OrderStatus(ctx, o.Symbol, o.ID)
	if err != nil {
		log.Printf("poller: status of %s: %v", o.ID, err)
		p.expireIfOverBudget(ctx, o)
		return
	}

	// Report newly filled quantity before acting on the status.
	if snap.FilledSize > o.FilledQty {
		p.recordFill(ctx, o, snap)
	}

	switch snap.Status {
	case common.StatusFilled:
		p.executor.Evict(ctx, o.ID, common.StatusFilled, snap.FilledSize)
		log.Printf("poller: order %s filled qty=%.6f avg=%.2f", o.ID, snap.FilledSize, snap.AvgPrice)
		if p.bus != nil {
			p.bus.Publish(events.EventOrderFilled, o.ID)
		}
	case common.StatusCancelled, common.StatusRejected:
		p.executor.Evict(ctx, o.ID, snap.Status, snap.FilledSize)
		log.Printf("poller: order %s ended %s", o.ID, snap.Status)
	case common.StatusPartial:
		p.executor.updateFilled(o.ID, snap.FilledSize)
		p.expireIfOverBudget(ctx, o)
	default:
		p.expireIfOverBudget(ctx, o)
	}
}

// recordFill feeds the fill delta into position tracking and risk accounting.
func (p *Poller) recordFill(ctx context.Context, o Order, snap common.OrderSnapshot) {
	delta := snap.FilledSize - o.FilledQty
	price := snap.AvgPrice
	if price == 0 {
		price = snap.Price
	}
	if p.positions == nil || delta <= 0 {
		return
	}
	_, realized, err := p.positions.RecordFill(ctx, o.Symbol, o.Side, delta, price)
	if err != nil {
		log.Printf("poller: record fill for %s: %v", o.ID, err)
		return
	}
	if realized != 0 && p.executor.risk != nil {
		p.executor.risk.ApplyFill(ctx, realized)
	}
}

// expireIfOverBudget cancels orders that outlived the poll budget.
func (p *Poller) expireIfOverBudget(ctx context.Context, o Order) {
	if time.Since(o.PlacedAt) < p.budget {
		return
	}
	log.Printf("poller: order %s exceeded poll budget, cancelling", o.ID)
	if err := p.executor.CancelOrder(ctx, o.ID); err != nil {
		log.Printf("poller: expire cancel %s: %v", o.ID, err)
		// Evict anyway; the exchange-side order may already be gone.
		p.executor.Evict(ctx, o.ID, common.StatusUnknown, o.FilledQty)
	}
}
