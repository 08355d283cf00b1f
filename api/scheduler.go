/*
scheduler.go - Automated bank reconciliation scheduler

PURPOSE:
  Periodically re-runs the bank pass on every stored ledger so that bank
  statements imported after a reconciliation run get matched without an
  operator asking for it.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick runs Service.RunBank over all statements for every ledger
  - The merge is first-write-wins, so a tick on unchanged data adds nothing
  - Keeps the outcome of the last run for the status endpoint

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBankScheduler(store, handler.Service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBank endpoint (manual bank pass)
  - recon/bank.go: MergeBankResults
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/warp/reconciliation-engine/recon"
	"github.com/warp/reconciliation-engine/store/sqlite"
	"go.uber.org/zap"
)

// SchedulerRun summarizes one pass over all ledgers.
type SchedulerRun struct {
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Ledgers     int       `json:"ledgers"`
	Added       int       `json:"added"`
	Failed      int       `json:"failed"`
}

// BankScheduler handles automated bank passes.
type BankScheduler struct {
	Store         *sqlite.Store
	Service       *recon.Service
	CheckInterval time.Duration
	Enabled       bool

	log     *zap.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun *SchedulerRun
}

// NewBankScheduler creates a new scheduler.
func NewBankScheduler(store *sqlite.Store, service *recon.Service, log *zap.Logger) *BankScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BankScheduler{
		Store:         store,
		Service:       service,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (bs *BankScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled || bs.CheckInterval <= 0 {
		bs.log.Info("disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run(bs.ticker, bs.stop)

	bs.log.Info("started", zap.Duration("check_interval", bs.CheckInterval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (bs *BankScheduler) Stop() {
	bs.mu.Lock()
	if bs.ticker == nil {
		bs.mu.Unlock()
		return
	}
	bs.ticker.Stop()
	close(bs.stop)
	bs.ticker = nil
	bs.mu.Unlock()

	bs.wg.Wait()
	bs.log.Info("stopped")
}

func (bs *BankScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer bs.wg.Done()

	// Run immediately on start
	bs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			bs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow runs the bank pass on every ledger (for testing/admin).
func (bs *BankScheduler) RunNow(ctx context.Context) SchedulerRun {
	run := SchedulerRun{StartedAt: time.Now().UTC()}

	ids, err := bs.Store.LedgerIDs(ctx)
	if err != nil {
		bs.log.Error("listing ledgers failed", zap.Error(err))
		run.Failed++
		return bs.finish(run)
	}

	for _, id := range ids {
		result, err := bs.Service.RunBank(ctx, id, nil)
		if err != nil {
			bs.log.Warn("bank pass failed", zap.String("analysis_id", id), zap.Error(err))
			run.Failed++
			continue
		}
		run.Ledgers++
		run.Added += result.Added
	}

	if run.Added > 0 || run.Failed > 0 {
		bs.log.Info("completed",
			zap.Int("ledgers", run.Ledgers),
			zap.Int("added", run.Added),
			zap.Int("failed", run.Failed))
	}
	return bs.finish(run)
}

func (bs *BankScheduler) finish(run SchedulerRun) SchedulerRun {
	run.CompletedAt = time.Now().UTC()
	bs.mu.Lock()
	bs.lastRun = &run
	bs.mu.Unlock()
	return run
}

// LastRun returns the outcome of the most recent pass, if any.
func (bs *BankScheduler) LastRun() *SchedulerRun {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.lastRun == nil {
		return nil
	}
	run := *bs.lastRun
	return &run
}

// GetNextRunTime returns when the next scheduled check will occur.
func (bs *BankScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(bs.CheckInterval)
}

// Status reports the scheduler state.
// GET /api/scheduler/status
func (bs *BankScheduler) Status(w http.ResponseWriter, r *http.Request) {
	bs.mu.Lock()
	running := bs.ticker != nil
	bs.mu.Unlock()

	resp := map[string]any{
		"enabled":       bs.Enabled,
		"running":       running,
		"checkInterval": bs.CheckInterval.String(),
		"lastRun":       bs.LastRun(),
	}
	if running {
		resp["nextRun"] = bs.GetNextRunTime()
	}
	writeJSON(w, http.StatusOK, resp)
}
