/*
scheduler.go - Automated monthly accrual scheduler

PURPOSE:
  Periodically sweeps every family's eligible debt accounts and applies
  any monthly updates that have come due.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - NotYetDue is the normal case between billing dates and stays quiet
  - Real failures are logged per account, never stop the sweep

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAccrualScheduler(store, engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ApplyUpdate / RunFamilyUpdates endpoints (manual paths)
  - debt/accrual.go: Engine
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/debt-engine/debt"
)

// AccrualScheduler applies due monthly updates in the background.
type AccrualScheduler struct {
	Store         Storage
	Engine        *debt.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(store Storage, engine *debt.Engine) *AccrualScheduler {
	return &AccrualScheduler{
		Store:         store,
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AccrualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AccrualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AccrualScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.checkAndProcess()

	for {
		select {
		case <-as.ticker.C:
			as.checkAndProcess()
		case <-as.stop:
			return
		}
	}
}

func (as *AccrualScheduler) checkAndProcess() {
	ctx := context.Background()

	families, err := as.Store.ListFamilies(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing families: %v", err)
		return
	}

	updatedCount := 0
	failedCount := 0

	for _, familyID := range families {
		result, err := as.Engine.RunMonthlyUpdatesForFamily(ctx, familyID)
		if err != nil {
			log.Printf("[Scheduler] Error running updates for family %s: %v", familyID, err)
			continue
		}

		updatedCount += result.UpdatedCount
		for _, batchErr := range result.Errors {
			if debt.IsInformational(batchErr.Err) {
				continue
			}
			failedCount++
			log.Printf("[Scheduler] Account %s: %v", batchErr.AccountID, batchErr.Err)
		}
	}

	if updatedCount > 0 || failedCount > 0 {
		log.Printf("[Scheduler] Completed: %d accruals applied, %d failed", updatedCount, failedCount)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (as *AccrualScheduler) RunNow() {
	as.checkAndProcess()
}
