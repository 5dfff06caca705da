package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return d
}

func TestOrderLifecycle(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	o := Order{ID: "1001", ClientID: "c-1", Symbol: "BTC-USDT-SWAP", Side: "buy", Price: 50000, Qty: 0.5, Status: "OPEN"}
	if err := d.InsertOrder(ctx, o); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if err := d.UpdateOrderStatus(ctx, "1001", "FILLED", 0.5); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	orders, err := d.RecentOrders(ctx, 10)
	if err != nil {
		t.Fatalf("RecentOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	if orders[0].Status != "FILLED" || orders[0].FilledQty != 0.5 {
		t.Fatalf("order = %+v, want FILLED 0.5", orders[0])
	}
}

func TestUpdateMissingOrder(t *testing.T) {
	d := testDB(t)
	err := d.UpdateOrderStatus(context.Background(), "nope", "FILLED", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPositionUpsert(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.UpsertPosition(ctx, Position{Symbol: "BTC-USDT-SWAP", Qty: 1, AvgPrice: 50000}); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}
	if err := d.UpsertPosition(ctx, Position{Symbol: "BTC-USDT-SWAP", Qty: 2, AvgPrice: 51000, RealizedPnL: 120}); err != nil {
		t.Fatalf("UpsertPosition update: %v", err)
	}

	positions, err := d.ListPositions(ctx)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	p := positions[0]
	if p.Qty != 2 || p.AvgPrice != 51000 || p.RealizedPnL != 120 {
		t.Fatalf("position = %+v, want qty 2 avg 51000 pnl 120", p)
	}
}

func TestLatencyHookObservesQueries(t *testing.T) {
	d := testDB(t)
	var samples int
	d.SetLatencyHook(func(time.Duration) { samples++ })

	ctx := context.Background()
	if err := d.InsertOrder(ctx, Order{ID: "1", Symbol: "BTC-USDT-SWAP", Side: "buy", Qty: 1, Status: "OPEN"}); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if _, err := d.RecentOrders(ctx, 5); err != nil {
		t.Fatalf("RecentOrders: %v", err)
	}
	if samples != 2 {
		t.Fatalf("latency samples = %d, want 2", samples)
	}
}

func TestDailyRiskRoundTrip(t *testing.T) {
	d := testDB(t)

	_, _, _, ok, err := d.LoadDailyRisk("2026-03-01")
	if err != nil {
		t.Fatalf("LoadDailyRisk empty: %v", err)
	}
	if ok {
		t.Fatal("expected no row for fresh day")
	}

	if err := d.UpsertDailyRisk("2026-03-01", -0.031, 7, false); err != nil {
		t.Fatalf("UpsertDailyRisk: %v", err)
	}
	if err := d.UpsertDailyRisk("2026-03-01", -0.052, 9, true); err != nil {
		t.Fatalf("UpsertDailyRisk update: %v", err)
	}

	loss, trades, breached, ok, err := d.LoadDailyRisk("2026-03-01")
	if err != nil {
		t.Fatalf("LoadDailyRisk: %v", err)
	}
	if !ok || loss != -0.052 || trades != 9 || !breached {
		t.Fatalf("got loss=%v trades=%v breached=%v ok=%v", loss, trades, breached, ok)
	}
}
