package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// InsertOrder persists a newly placed order.
func (d *Database) InsertOrder(ctx context.Context, o Order) error {
	defer d.observe(time.Now())
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (id, client_id, symbol, side, price, qty, filled_qty, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.ClientID, o.Symbol, o.Side, o.Price, o.Qty, o.FilledQty, o.Status)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOrderStatus records a status transition and fill progress.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID, status string, filledQty float64) error {
	defer d.observe(time.Now())
	res, err := d.DB.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_qty = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, filledQty, orderID)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentOrders returns the newest orders first, up to limit.
func (d *Database) RecentOrders(ctx context.Context, limit int) ([]Order, error) {
	defer d.observe(time.Now())
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, COALESCE(client_id, ''), symbol, side, price, qty,
		       COALESCE(filled_qty, 0), status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ClientID, &o.Symbol, &o.Side, &o.Price, &o.Qty,
			&o.FilledQty, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpsertPosition creates or updates the position row for a symbol.
func (d *Database) UpsertPosition(ctx context.Context, p Position) error {
	defer d.observe(time.Now())
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions (symbol, qty, avg_price, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			qty = excluded.qty,
			avg_price = excluded.avg_price,
			realized_pnl = excluded.realized_pnl,
			updated_at = CURRENT_TIMESTAMP
	`, p.Symbol, p.Qty, p.AvgPrice, p.RealizedPnL)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.Symbol, err)
	}
	return nil
}

// ListPositions returns all persisted positions.
func (d *Database) ListPositions(ctx context.Context) ([]Position, error) {
	defer d.observe(time.Now())
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, qty, avg_price, COALESCE(realized_pnl, 0), updated_at
		FROM positions
	`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Qty, &p.AvgPrice, &p.RealizedPnL, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpsertDailyRisk persists one UTC day of risk accounting.
func (d *Database) UpsertDailyRisk(day string, dailyLoss float64, trades int, breached bool) error {
	defer d.observe(time.Now())
	b := 0
	if breached {
		b = 1
	}
	_, err := d.DB.Exec(`
		INSERT INTO risk_daily (day, daily_loss, trades, breached, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day) DO UPDATE SET
			daily_loss = excluded.daily_loss,
			trades = excluded.trades,
			breached = excluded.breached,
			updated_at = CURRENT_TIMESTAMP
	`, day, dailyLoss, trades, b)
	if err != nil {
		return fmt.Errorf("upsert risk day %s: %w", day, err)
	}
	return nil
}

// LoadDailyRisk fetches the accounting row for a UTC day. ok is false when
// no row exists for that day.
func (d *Database) LoadDailyRisk(day string) (dailyLoss float64, trades int, breached bool, ok bool, err error) {
	defer d.observe(time.Now())
	var b int
	err = d.DB.QueryRow(`
		SELECT daily_loss, trades, breached FROM risk_daily WHERE day = ?
	`, day).Scan(&dailyLoss, &trades, &b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, false, nil
		}
		return 0, 0, false, false, fmt.Errorf("load risk day %s: %w", day, err)
	}
	return dailyLoss, trades, b != 0, true, nil
}
