package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/risk"
	"execution-core/internal/signal"
	"execution-core/pkg/db"
	"execution-core/pkg/exchanges/common"

	"github.com/google/uuid"
)

// ErrTradingPaused is returned when a signal arrives while trading is paused.
var ErrTradingPaused = errors.New("trading is paused")

// Executor turns signals into exchange orders, tracks the in-flight set, and
// feeds risk accounting after each placement. Placement happens first and the
// risk check runs after it, so the circuit breaker reacts to the trade that
// tripped it by cancelling everything still open.
type Executor struct {
	gateway common.Gateway
	risk    *risk.Manager
	db      *db.Database
	bus     *events.Bus
	metrics *monitor.SystemMetrics
	symbol  string

	active atomic.Bool

	mu   sync.Mutex
	open map[string]*Order
}

func NewExecutor(gw common.Gateway, rm *risk.Manager, database *db.Database, bus *events.Bus, symbol string) *Executor {
	e := &Executor{
		gateway: gw,
		risk:    rm,
		db:      database,
		bus:     bus,
		symbol:  symbol,
		open:    make(map[string]*Order),
	}
	e.active.Store(true)
	return e
}

// SetMetrics attaches the latency histograms. Call before Run.
func (e *Executor) SetMetrics(m *monitor.SystemMetrics) {
	e.metrics = m
}

// TradingActive reports whether signals are currently being executed.
func (e *Executor) TradingActive() bool { return e.active.Load() }

// PauseTrading stops signal execution. Safe to call repeatedly.
func (e *Executor) PauseTrading() {
	if e.active.CompareAndSwap(true, false) {
		log.Println("executor: trading paused")
		if e.bus != nil {
			e.bus.Publish(events.EventTradingPaused, time.Now().UTC())
		}
	}
}

// ResumeTrading re-enables signal execution. Resuming does not clear a
// breached daily loss limit; a breached day stays paused until rollover.
func (e *Executor) ResumeTrading() error {
	if e.risk != nil && e.risk.Breached() {
		return fmt.Errorf("cannot resume: daily loss limit breached")
	}
	if e.active.CompareAndSwap(false, true) {
		log.Println("executor: trading resumed")
		if e.bus != nil {
			e.bus.Publish(events.EventTradingResumed, time.Now().UTC())
		}
	}
	return nil
}

// Run drains the signal queue until ctx is cancelled.
func (e *Executor) Run(ctx context.Context, q *signal.Queue) {
	log.Printf("executor: started for %s", e.symbol)
	q.Drain(ctx, func(sig signal.Signal) {
		// Panic recovery so one bad signal cannot kill the loop.
		defer func() {
			if r := recover(); r != nil {
				log.Printf("executor: panic while handling signal: %v", r)
				if e.bus != nil {
					e.bus.Publish(events.EventRiskAlert, fmt.Sprintf("signal processing panic: %v", r))
				}
			}
		}()
		if err := e.ExecuteSignal(ctx, sig); err != nil && !errors.Is(err, ErrTradingPaused) {
			log.Printf("executor: execute signal %s: %v", sig.Direction, err)
		}
	})
	log.Println("executor: stopped")
}

// ExecuteSignal places one order for a buy or sell signal. Hold signals are
// discarded; signals arriving while paused are dropped with an error.
func (e *Executor) ExecuteSignal(ctx context.Context, sig signal.Signal) error {
	if e.bus != nil {
		e.bus.Publish(events.EventSignalReceived, sig)
	}
	if sig.Direction == signal.DirectionHold {
		return nil
	}
	if !e.active.Load() {
		log.Printf("executor: dropping %s signal, trading paused", sig.Direction)
		return ErrTradingPaused
	}

	qty := sig.Size
	if qty <= 0 && e.risk != nil {
		qty = e.risk.CalculatePositionSize()
	}
	if qty <= 0 {
		return fmt.Errorf("signal has no size and no risk sizing configured")
	}

	side := common.SideBuy
	if sig.Direction == signal.DirectionSell {
		side = common.SideSell
	}
	orderType := common.OrderTypeMarket
	if sig.Price > 0 {
		orderType = common.OrderTypeLimit
	}

	req := common.OrderRequest{
		Symbol:   e.symbol,
		Side:     side,
		Type:     orderType,
		Size:     qty,
		Price:    sig.Price,
		ClientID: clientID(),
	}

	placeStart := time.Now()
	res, err := e.gateway.PlaceOrder(ctx, req)
	if e.metrics != nil {
		e.metrics.OrderLatency.RecordDuration(time.Since(placeStart))
	}
	if err != nil {
		if e.bus != nil {
			e.bus.Publish(events.EventOrderRejected, err.Error())
		}
		return fmt.Errorf("place order: %w", err)
	}

	o := &Order{
		ID:       res.OrderID,
		ClientID: req.ClientID,
		Symbol:   e.symbol,
		Side:     side,
		Type:     orderType,
		Qty:      qty,
		Price:    sig.Price,
		Status:   common.StatusOpen,
		PlacedAt: time.Now().UTC(),
	}
	e.mu.Lock()
	e.open[o.ID] = o
	e.mu.Unlock()

	if e.db != nil {
		if err := e.db.InsertOrder(ctx, db.Order{
			ID:       o.ID,
			ClientID: o.ClientID,
			Symbol:   o.Symbol,
			Side:     string(o.Side),
			Price:    o.Price,
			Qty:      o.Qty,
			Status:   string(o.Status),
		}); err != nil {
			log.Printf("executor: store order: %v", err)
		}
	}

	log.Printf("executor: placed %s %s qty=%.6f id=%s", o.Side, o.Symbol, o.Qty, o.ID)
	if e.bus != nil {
		e.bus.Publish(events.EventOrderPlaced, *o)
	}

	// Risk accounting runs after placement so a breach cancels this order too.
	if e.risk != nil {
		e.risk.ManageRisk(ctx)
	}
	return nil
}

// CancelOrder cancels a single tracked order and evicts it.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) error {
	e.mu.Lock()
	o, ok := e.open[orderID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("order %s is not tracked", orderID)
	}
	if err := e.gateway.CancelOrder(ctx, o.Symbol, orderID); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	e.Evict(ctx, orderID, common.StatusCancelled, o.FilledQty)
	return nil
}

// CancelAllOrders cancels every tracked open order. The open set is copied
// under the lock; exchange calls run outside it. Orders that fail to cancel
// stay tracked so the poller keeps watching them.
func (e *Executor) CancelAllOrders(ctx context.Context) (cancelled, failed int) {
	e.mu.Lock()
	snapshot := make([]*Order, 0, len(e.open))
	for _, o := range e.open {
		snapshot = append(snapshot, o)
	}
	e.mu.Unlock()

	for _, o := range snapshot {
		if err := e.gateway.CancelOrder(ctx, o.Symbol, o.ID); err != nil {
			log.Printf("executor: cancel %s failed: %v", o.ID, err)
			failed++
			continue
		}
		e.Evict(ctx, o.ID, common.StatusCancelled, o.FilledQty)
		cancelled++
	}
	if cancelled > 0 || failed > 0 {
		log.Printf("executor: cancel-all done, cancelled=%d failed=%d", cancelled, failed)
	}
	return cancelled, failed
}

// OpenOrders returns a copy of the tracked in-flight orders.
func (e *Executor) OpenOrders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make([]Order, 0, len(e.open))
	for _, o := range e.open {
		res = append(res, *o)
	}
	return res
}

// updateFilled records partial-fill progress on a tracked order.
func (e *Executor) updateFilled(orderID string, filled float64) {
	e.mu.Lock()
	if o, ok := e.open[orderID]; ok {
		o.FilledQty = filled
		o.Status = common.StatusPartial
	}
	e.mu.Unlock()
}

// Evict removes an order from the open set and records its final status.
func (e *Executor) Evict(ctx context.Context, orderID string, status common.OrderStatus, filled float64) {
	e.mu.Lock()
	delete(e.open, orderID)
	e.mu.Unlock()

	if e.db != nil {
		if err := e.db.UpdateOrderStatus(ctx, orderID, string(status), filled); err != nil {
			log.Printf("executor: update order %s: %v", orderID, err)
		}
	}
	if e.bus != nil && status == common.StatusCancelled {
		e.bus.Publish(events.EventOrderCancelled, orderID)
	}
}

func clientID() string {
	// OKX client ids must be alphanumeric, so strip the uuid dashes.
	id := uuid.NewString()
	buf := make([]byte, 0, 32)
	for i := 0; i < len(id); i++ {
		if id[i] != '-' {
			buf = append(buf, id[i])
		}
	}
	return string(buf)
}
