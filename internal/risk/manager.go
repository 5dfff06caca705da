package risk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"execution-core/internal/events"
)

// ErrLeverageOutOfRange is returned by UpdateLeverage when the requested
// value falls outside [MinLeverage, MaxLeverage]. The current leverage is
// left untouched.
var ErrLeverageOutOfRange = errors.New("leverage out of range")

// Controls is what the manager drives when the daily loss limit trips.
// The order executor satisfies it.
type Controls interface {
	PauseTrading()
	CancelAllOrders(ctx context.Context) (cancelled, failed int)
}

// LeverageSetter propagates a leverage change to the exchange. Implementations
// are bound to a single instrument. The exchange call must succeed before the
// manager adopts the new value locally.
type LeverageSetter interface {
	SetLeverage(ctx context.Context, leverage float64) error
}

// Store persists daily risk accounting across restarts. Optional.
type Store interface {
	UpsertDailyRisk(day string, dailyLoss float64, trades int, breached bool) error
	LoadDailyRisk(day string) (dailyLoss float64, trades int, breached bool, ok bool, err error)
}

// Manager tracks leverage and the daily loss accumulator, sizes positions,
// and trips the circuit breaker when the loss limit is reached. All state is
// guarded by a single mutex; exchange calls happen outside it.
type Manager struct {
	cfg      Config
	controls Controls
	setter   LeverageSetter
	store    Store
	bus      *events.Bus

	mu          sync.Mutex
	leverage    float64
	dailyLoss   float64
	tradesToday int
	breached    bool
	lastReset   time.Time

	// injected for tests
	now   func() time.Time
	pnlFn func() float64
}

// NewManager builds a Manager from cfg. controls and setter may be wired
// later via Bind; nil is tolerated until the first breach or leverage update.
func NewManager(cfg Config, bus *events.Bus) *Manager {
	m := &Manager{
		cfg:      cfg,
		bus:      bus,
		leverage: cfg.InitialLeverage,
		now:      time.Now,
	}
	m.lastReset = utcDay(m.now())
	if cfg.Mode == ModePaper {
		m.pnlFn = paperPnL
	}
	return m
}

// Bind wires the executor-facing hooks. Called once during startup after the
// executor exists; resolves the construction cycle between the two.
func (m *Manager) Bind(controls Controls, setter LeverageSetter) {
	m.controls = controls
	m.setter = setter
}

// SetStore attaches persistence and restores today's accounting if present.
func (m *Manager) SetStore(store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
	day := m.lastReset.Format("2006-01-02")
	loss, trades, breached, ok, err := store.LoadDailyRisk(day)
	if err != nil {
		return fmt.Errorf("risk: restore daily state: %w", err)
	}
	if ok {
		m.dailyLoss = loss
		m.tradesToday = trades
		m.breached = breached
	}
	return nil
}

// CalculatePositionSize converts the current leverage into an order size,
// capped at MaxPosition.
func (m *Manager) CalculatePositionSize() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.leverage * m.cfg.BaseUnit
	if size > m.cfg.MaxPosition {
		size = m.cfg.MaxPosition
	}
	return size
}

// Leverage returns the current leverage.
func (m *Manager) Leverage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leverage
}

// ManageRisk records one executed trade against the daily accounting. In
// paper mode it draws a simulated P&L contribution; in fills mode the
// contribution arrives later via ApplyFill. Runs after order placement.
func (m *Manager) ManageRisk(ctx context.Context) {
	m.mu.Lock()
	m.resetIfNewDayLocked()
	m.tradesToday++
	var tripped bool
	if m.pnlFn != nil {
		m.dailyLoss += m.pnlFn()
		tripped = m.checkBreachLocked()
	}
	m.persistLocked()
	m.mu.Unlock()

	if tripped {
		m.TriggerRiskControls(ctx)
	}
}

// ApplyFill folds realized P&L (quote currency) from an observed fill into
// the daily accounting. Only active in fills mode.
func (m *Manager) ApplyFill(ctx context.Context, realizedPnL float64) {
	if m.cfg.Mode != ModeFills || realizedPnL == 0 {
		return
	}
	frac := realizedPnL / m.cfg.EquityBase
	m.mu.Lock()
	m.resetIfNewDayLocked()
	m.dailyLoss += frac
	tripped := m.checkBreachLocked()
	m.persistLocked()
	m.mu.Unlock()

	if tripped {
		m.TriggerRiskControls(ctx)
	}
}

// checkBreachLocked reports whether this call crossed the limit. Caller holds mu.
func (m *Manager) checkBreachLocked() bool {
	if m.breached {
		return false
	}
	if m.dailyLoss <= -m.cfg.DailyLossLimit {
		m.breached = true
		return true
	}
	return false
}

// TriggerRiskControls pauses trading and cancels all open orders. Safe to
// call more than once; the underlying operations are idempotent.
func (m *Manager) TriggerRiskControls(ctx context.Context) {
	m.mu.Lock()
	loss := m.dailyLoss
	m.mu.Unlock()

	log.Printf("risk: daily loss limit breached (%.4f <= -%.4f), pausing trading", loss, m.cfg.DailyLossLimit)
	if m.bus != nil {
		m.bus.Publish(events.EventRiskAlert, map[string]any{
			"daily_loss": loss,
			"limit":      m.cfg.DailyLossLimit,
		})
	}
	if m.controls == nil {
		return
	}
	m.controls.PauseTrading()
	cancelled, failed := m.controls.CancelAllOrders(ctx)
	log.Printf("risk: circuit breaker cancelled %d orders (%d failed)", cancelled, failed)
}

// UpdateLeverage validates the requested leverage, pushes it to the exchange,
// and only adopts it locally once the exchange call succeeds.
func (m *Manager) UpdateLeverage(ctx context.Context, leverage float64) error {
	if leverage < m.cfg.MinLeverage || leverage > m.cfg.MaxLeverage {
		return fmt.Errorf("%w: %.2f not in [%.2f, %.2f]",
			ErrLeverageOutOfRange, leverage, m.cfg.MinLeverage, m.cfg.MaxLeverage)
	}
	if m.setter != nil {
		if err := m.setter.SetLeverage(ctx, leverage); err != nil {
			return fmt.Errorf("risk: set leverage on exchange: %w", err)
		}
	}
	m.mu.Lock()
	m.leverage = leverage
	m.mu.Unlock()

	log.Printf("risk: leverage updated to %.0fx", leverage)
	if m.bus != nil {
		m.bus.Publish(events.EventLeverageUpdated, leverage)
	}
	return nil
}

// CheckAndResetDailyLoss rolls the accounting over when the UTC day has
// changed. Returns true when a reset happened. Also called lazily from the
// accounting paths, so a standalone ticker is belt and braces for quiet days.
func (m *Manager) CheckAndResetDailyLoss() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetIfNewDayLocked()
}

func (m *Manager) resetIfNewDayLocked() bool {
	today := utcDay(m.now())
	if !today.After(m.lastReset) {
		return false
	}
	log.Printf("risk: daily reset (previous loss %.4f, %d trades)", m.dailyLoss, m.tradesToday)
	m.dailyLoss = 0
	m.tradesToday = 0
	m.breached = false
	m.lastReset = today
	m.persistLocked()
	return true
}

// Breached reports whether the loss limit has tripped for the current day.
func (m *Manager) Breached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	return m.breached
}

// Snapshot returns the current risk state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	return Snapshot{
		CurrentLeverage: m.leverage,
		DailyLoss:       m.dailyLoss,
		DailyLossLimit:  m.cfg.DailyLossLimit,
		Breached:        m.breached,
		TradesToday:     m.tradesToday,
		LastReset:       m.lastReset,
		Mode:            m.cfg.Mode,
	}
}

func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	day := m.lastReset.Format("2006-01-02")
	if err := m.store.UpsertDailyRisk(day, m.dailyLoss, m.tradesToday, m.breached); err != nil {
		log.Printf("risk: persist daily state: %v", err)
	}
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// paperPnL mirrors the legacy simulated draw: uniform in [-0.02, 0.02].
func paperPnL() float64 {
	return rand.Float64()*0.04 - 0.02
}
