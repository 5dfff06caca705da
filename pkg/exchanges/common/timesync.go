package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync keeps a running offset between local time and an exchange server
// clock so signed request timestamps stay inside the exchange's acceptance
// window.
type TimeSync struct {
	getServerTime func(ctx context.Context) (int64, error)
	offset        int64 // milliseconds, server - local
	lastSync      time.Time
	syncInterval  time.Duration
	mu            sync.RWMutex
}

// NewTimeSync creates a time synchronization manager around a server-time
// fetcher returning epoch milliseconds.
func NewTimeSync(getServerTime func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		syncInterval:  30 * time.Minute,
	}
}

// Start performs an initial sync and then resyncs periodically until the
// context is cancelled.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("initial time sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("time sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync fetches server time once and updates the offset. Network latency is
// assumed symmetric.
func (ts *TimeSync) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	serverTime, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()

	local := before + (after-before)/2

	ts.mu.Lock()
	ts.offset = serverTime - local
	ts.lastSync = time.Now()
	ts.mu.Unlock()

	log.Printf("time sync: offset=%dms", serverTime-local)
	return nil
}

// Now returns the current time adjusted for the server offset.
func (ts *TimeSync) Now() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().Add(time.Duration(ts.offset) * time.Millisecond)
}

// Offset returns the current offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
