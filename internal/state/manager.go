package state

import (
	"context"
	"sync"

	"execution-core/pkg/db"
	"execution-core/pkg/exchanges/common"
)

// Manager keeps an in-memory view of net positions while persisting to DB
// for durability. Realized P&L uses average-cost accounting: closing part of
// a position realizes (fill price - avg price) * closed quantity, with sign
// following the position direction.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]db.Position
	db        *db.Database
}

func NewManager(database *db.Database) *Manager {
	return &Manager{
		db:        database,
		positions: make(map[string]db.Position),
	}
}

// Load seeds in-memory state from DB on startup.
func (m *Manager) Load(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	pos, err := m.db.ListPositions(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pos {
		m.positions[p.Symbol] = p
	}
	return nil
}

// Position returns the latest in-memory snapshot for a symbol.
func (m *Manager) Position(symbol string) db.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[symbol]
}

// Positions returns a snapshot of all positions.
func (m *Manager) Positions() []db.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]db.Position, 0, len(m.positions))
	for _, p := range m.positions {
		res = append(res, p)
	}
	return res
}

// RecordFill folds a fill into the position and returns the realized P&L
// this fill produced (zero when the fill only opens or adds).
func (m *Manager) RecordFill(ctx context.Context, symbol string, side common.Side, qty, price float64) (db.Position, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.positions[symbol]
	p.Symbol = symbol

	signed := qty
	if side == common.SideSell {
		signed = -qty
	}

	var realized float64
	switch {
	case p.Qty == 0 || sameSign(p.Qty, signed):
		// Opening or adding: blend the average entry price.
		newQty := p.Qty + signed
		p.AvgPrice = (p.AvgPrice*abs(p.Qty) + price*qty) / abs(newQty)
		p.Qty = newQty
	case abs(signed) <= abs(p.Qty):
		// Reducing or flat-closing: realize on the closed quantity.
		closed := abs(signed)
		realized = (price - p.AvgPrice) * closed * sign(p.Qty)
		p.Qty += signed
		if p.Qty == 0 {
			p.AvgPrice = 0
		}
	default:
		// Crossing through zero: close the whole position, open the rest
		// on the other side at the fill price.
		realized = (price - p.AvgPrice) * abs(p.Qty) * sign(p.Qty)
		p.Qty += signed
		p.AvgPrice = price
	}
	p.RealizedPnL += realized

	if m.db != nil {
		_ = m.db.UpsertPosition(ctx, p)
	}
	m.positions[symbol] = p
	return p, realized, nil
}

// SetPosition directly sets a position, used when syncing from the exchange.
func (m *Manager) SetPosition(ctx context.Context, symbol string, qty, avgPrice float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.positions[symbol]
	p.Symbol = symbol
	p.Qty = qty
	p.AvgPrice = avgPrice

	if m.db != nil {
		if err := m.db.UpsertPosition(ctx, p); err != nil {
			return err
		}
	}
	m.positions[symbol] = p
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
