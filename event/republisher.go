/*
republisher.go - Background redelivery of undelivered events

PURPOSE:
  Periodically scans the delivery store for events still short of full
  delivery and replays them to the subscribers that have not confirmed.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only events published more than GracePeriod ago are retried, so the
    republisher never races an in-flight first attempt
  - Events older than the Window are left alone; redelivery that far
    after the sale needs operator attention, not an automatic retry
  - A single in-process run flag keeps scans from overlapping when one
    sweep outlasts the interval

CONFIGURATION:
  - CheckInterval: How often to scan (default: 5 minutes)
  - GracePeriod:   Minimum event age before retry (default: 15 minutes)
  - Window:        Maximum event age considered (default: 24 hours)

USAGE:
  rp := NewRepublisher(deliveries, publisher)
  rp.Start()
  // ... later
  rp.Stop()

SEE ALSO:
  - publisher.go: The delivery attempt itself
*/
package event

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/pos-core/pos"
)

// Republisher retries undelivered events on a schedule.
type Republisher struct {
	Deliveries    DeliveryLister
	Publisher     *Publisher
	CheckInterval time.Duration
	GracePeriod   time.Duration
	Window        time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// DeliveryLister is the slice of the delivery store the republisher needs.
type DeliveryLister interface {
	ListUndelivered(ctx context.Context, olderThan, newerThan time.Time) ([]*pos.EventDelivery, error)
}

// NewRepublisher creates a republisher with default timing.
func NewRepublisher(ds DeliveryLister, pub *Publisher) *Republisher {
	return &Republisher{
		Deliveries:    ds,
		Publisher:     pub,
		CheckInterval: 5 * time.Minute,
		GracePeriod:   15 * time.Minute,
		Window:        24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the republisher.
func (rp *Republisher) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if !rp.Enabled {
		log.Println("[Republisher] Disabled, not starting")
		return
	}

	rp.ticker = time.NewTicker(rp.CheckInterval)
	rp.wg.Add(1)

	go rp.run()

	log.Printf("[Republisher] Started with check interval: %v", rp.CheckInterval)
}

// Stop stops the republisher.
func (rp *Republisher) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.ticker != nil {
		rp.ticker.Stop()
		close(rp.stop)
		rp.wg.Wait()
		log.Println("[Republisher] Stopped")
	}
}

func (rp *Republisher) run() {
	defer rp.wg.Done()

	for {
		select {
		case <-rp.ticker.C:
			rp.RunNow()
		case <-rp.stop:
			return
		}
	}
}

// RunNow performs one redelivery sweep (also used by tests/admin).
func (rp *Republisher) RunNow() {
	rp.mu.Lock()
	if rp.running {
		rp.mu.Unlock()
		log.Println("[Republisher] Previous sweep still running, skipping")
		return
	}
	rp.running = true
	rp.mu.Unlock()
	defer func() {
		rp.mu.Lock()
		rp.running = false
		rp.mu.Unlock()
	}()

	ctx := context.Background()
	now := time.Now().UTC()
	olderThan := now.Add(-rp.GracePeriod)
	newerThan := now.Add(-rp.Window)

	pending, err := rp.Deliveries.ListUndelivered(ctx, olderThan, newerThan)
	if err != nil {
		log.Printf("[Republisher] Error listing undelivered events: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("[Republisher] Retrying %d undelivered events", len(pending))
	recovered := 0
	for _, d := range pending {
		rp.Publisher.Redeliver(ctx, d)
		if d.OverallStatus == pos.DeliveryDelivered {
			recovered++
		}
	}
	log.Printf("[Republisher] Sweep completed: %d recovered, %d still pending", recovered, len(pending)-recovered)
}
