// Package worker hosts the background loops that run alongside the API.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
	"github.com/AlisonTamayo/BancoArcbank/internal/observability"
)

// PendingLister surfaces claims that never finished their saga.
type PendingLister interface {
	ListStuckPending(ctx context.Context, cutoff time.Time, limit int32) ([]models.Transaction, error)
}

// StuckPendingWorker periodically sweeps for PENDING records older than the
// configured age. The saga completes or unwinds synchronously, so a stuck
// claim means the process died mid-flight and an operator needs to look at
// the funds position.
type StuckPendingWorker struct {
	store      PendingLister
	interval   time.Duration
	stuckAfter time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewStuckPendingWorker constructs a worker with hourly sweeps flagging
// claims older than fifteen minutes.
func NewStuckPendingWorker(store PendingLister) *StuckPendingWorker {
	return &StuckPendingWorker{
		store:      store,
		interval:   time.Hour,
		stuckAfter: 15 * time.Minute,
		stopCh:     make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *StuckPendingWorker) WithInterval(interval time.Duration) *StuckPendingWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithStuckAfter updates the age at which a PENDING claim counts as stuck.
func (w *StuckPendingWorker) WithStuckAfter(age time.Duration) *StuckPendingWorker {
	if age > 0 {
		w.stuckAfter = age
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *StuckPendingWorker) Start(ctx context.Context) {
	zap.L().Info("stuck-pending worker starting",
		zap.Duration("interval", w.interval),
		zap.Duration("stuck_after", w.stuckAfter),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("stuck-pending worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("stuck-pending worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *StuckPendingWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *StuckPendingWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *StuckPendingWorker) runOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.stuckAfter)
	stuck, err := w.store.ListStuckPending(ctx, cutoff, 100)
	if err != nil {
		observability.IncrementWorkerRun("stuck_pending", "failed")
		zap.L().Error("stuck-pending sweep failed", zap.Error(err))
		return
	}

	for _, txn := range stuck {
		zap.L().Warn("transaction stuck in PENDING, needs operator review",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("reference", txn.Reference),
			zap.String("type", string(txn.Type)),
			zap.String("amount", txn.Amount.String()),
			zap.Time("created_at", txn.CreatedAt),
		)
	}
	observability.IncrementWorkerRun("stuck_pending", "success")
}
