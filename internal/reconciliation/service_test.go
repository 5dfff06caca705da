package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"execution-core/internal/order"
	"execution-core/internal/signal"
	"execution-core/pkg/exchanges/common"
)

const symbol = "BTC-USDT-SWAP"

type fakeGateway struct {
	mu        sync.Mutex
	pending   []common.OrderSnapshot
	statuses  map[string]common.OrderSnapshot
	cancelled []string
	nextID    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]common.OrderSnapshot)}
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("ord-%d", f.nextID)
	snap := common.OrderSnapshot{OrderID: id, Symbol: req.Symbol, Side: req.Side, Size: req.Size, Status: common.StatusOpen}
	f.pending = append(f.pending, snap)
	f.statuses[id] = snap
	return common.OrderResult{OrderID: id}, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeGateway) OpenOrders(ctx context.Context, symbol string) ([]common.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]common.OrderSnapshot, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

func (f *fakeGateway) OrderStatus(ctx context.Context, symbol, orderID string) (common.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[orderID], nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	return nil
}

func TestReconcileNoDrift(t *testing.T) {
	gw := newFakeGateway()
	exec := order.NewExecutor(gw, nil, nil, nil, symbol)
	exec.ExecuteSignal(context.Background(), signal.Signal{Direction: signal.DirectionBuy, Size: 1, Price: 40000})

	svc := NewService(gw, exec, symbol, time.Minute)
	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.HasDiffs {
		t.Fatalf("report = %+v, want no drift", report)
	}
}

func TestReconcileCancelsUntracked(t *testing.T) {
	gw := newFakeGateway()
	exec := order.NewExecutor(gw, nil, nil, nil, symbol)

	// An order the exchange knows but this session never placed.
	gw.pending = append(gw.pending, common.OrderSnapshot{OrderID: "ghost-1", Symbol: symbol, Status: common.StatusOpen})

	svc := NewService(gw, exec, symbol, time.Minute)
	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Untracked) != 1 || report.Synced != 1 {
		t.Fatalf("report = %+v, want 1 untracked synced", report)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "ghost-1" {
		t.Fatalf("cancelled = %v, want [ghost-1]", gw.cancelled)
	}
}

func TestReconcileResolvesStale(t *testing.T) {
	gw := newFakeGateway()
	exec := order.NewExecutor(gw, nil, nil, nil, symbol)
	exec.ExecuteSignal(context.Background(), signal.Signal{Direction: signal.DirectionBuy, Size: 1, Price: 40000})
	id := exec.OpenOrders()[0].ID

	// The exchange filled it while we were not looking.
	gw.mu.Lock()
	gw.pending = nil
	gw.statuses[id] = common.OrderSnapshot{OrderID: id, Symbol: symbol, FilledSize: 1, Status: common.StatusFilled}
	gw.mu.Unlock()

	svc := NewService(gw, exec, symbol, time.Minute)
	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Stale) != 1 {
		t.Fatalf("report = %+v, want 1 stale", report)
	}
	if len(exec.OpenOrders()) != 0 {
		t.Fatal("stale order still tracked after reconcile")
	}
}

func TestAutoSyncDisabled(t *testing.T) {
	gw := newFakeGateway()
	exec := order.NewExecutor(gw, nil, nil, nil, symbol)
	gw.pending = append(gw.pending, common.OrderSnapshot{OrderID: "ghost-1", Symbol: symbol, Status: common.StatusOpen})

	svc := NewService(gw, exec, symbol, time.Minute)
	svc.SetAutoSync(false)
	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Synced != 0 {
		t.Fatalf("synced = %d, want 0 with auto-sync off", report.Synced)
	}
	if len(gw.cancelled) != 0 {
		t.Fatal("cancelled orders with auto-sync off")
	}
}
