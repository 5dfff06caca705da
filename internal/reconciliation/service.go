package reconciliation

import (
	"context"
	"log"
	"sync"
	"time"

	"execution-core/internal/order"
	"execution-core/pkg/exchanges/common"
)

// Service periodically compares the executor's tracked open orders against
// what the exchange reports and repairs drift in the local view. Drift shows
// up after restarts and after missed poll cycles.
type Service struct {
	gateway  common.Gateway
	executor *order.Executor
	symbol   string
	interval time.Duration
	autoSync bool
	mu       sync.Mutex
}

// Report contains one reconciliation pass's findings.
type Report struct {
	Timestamp time.Time
	Untracked []string // open on the exchange, unknown locally
	Stale     []string // tracked locally, gone on the exchange
	HasDiffs  bool
	Synced    int
}

func NewService(gateway common.Gateway, executor *order.Executor, symbol string, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		gateway:  gateway,
		executor: executor,
		symbol:   symbol,
		interval: interval,
		autoSync: true,
	}
}

// SetAutoSync enables or disables automatic repair of drift.
func (s *Service) SetAutoSync(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSync = enabled
	log.Printf("reconciliation: auto-sync %v", enabled)
}

// Start begins periodic reconciliation.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := s.Reconcile(ctx)
				if err != nil {
					log.Printf("reconciliation: %v", err)
					continue
				}
				logReport(report)
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Printf("reconciliation: started (interval %v)", s.interval)
}

// Reconcile performs one pass.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	autoSync := s.autoSync
	s.mu.Unlock()

	report := &Report{Timestamp: time.Now().UTC()}

	exchangeOpen, err := s.gateway.OpenOrders(ctx, s.symbol)
	if err != nil {
		return nil, err
	}
	onExchange := make(map[string]common.OrderSnapshot, len(exchangeOpen))
	for _, snap := range exchangeOpen {
		onExchange[snap.OrderID] = snap
	}

	tracked := make(map[string]order.Order)
	for _, o := range s.executor.OpenOrders() {
		tracked[o.ID] = o
	}

	// Orders the exchange holds that we lost track of. The executor did not
	// place them this session, so the safe repair is to cancel them.
	for id := range onExchange {
		if _, ok := tracked[id]; ok {
			continue
		}
		report.Untracked = append(report.Untracked, id)
		report.HasDiffs = true
		if autoSync {
			if err := s.gateway.CancelOrder(ctx, s.symbol, id); err != nil {
				log.Printf("reconciliation: cancel untracked %s: %v", id, err)
				continue
			}
			report.Synced++
		}
	}

	// Orders we track that the exchange no longer lists as open. They ended
	// while we were not looking; the poller's status query resolves how.
	for id := range tracked {
		if _, ok := onExchange[id]; ok {
			continue
		}
		report.Stale = append(report.Stale, id)
		report.HasDiffs = true
		if autoSync {
			s.resolveStale(ctx, id)
			report.Synced++
		}
	}

	return report, nil
}

// resolveStale fetches the terminal status of an order that dropped out of
// the pending list and evicts it with that status.
func (s *Service) resolveStale(ctx context.Context, orderID string) {
	snap, err := s.gateway.OrderStatus(ctx, s.symbol, orderID)
	if err != nil {
		log.Printf("reconciliation: status of stale %s: %v", orderID, err)
		s.executor.Evict(ctx, orderID, common.StatusUnknown, 0)
		return
	}
	status := snap.Status
	if !status.Terminal() {
		status = common.StatusUnknown
	}
	s.executor.Evict(ctx, orderID, status, snap.FilledSize)
	log.Printf("reconciliation: resolved stale order %s as %s", orderID, status)
}

func logReport(report *Report) {
	if !report.HasDiffs {
		return
	}
	log.Printf("reconciliation: drift detected, untracked=%d stale=%d synced=%d",
		len(report.Untracked), len(report.Stale), report.Synced)
}
