package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"cryptocard-ledger/internal/domain"
)

// PendingSource lists the transactions currently awaiting approval.
type PendingSource interface {
	PendingTransactions(ctx context.Context) ([]domain.Transaction, error)
}

// Watcher feeds the pending set into a Dispatcher on a cron schedule.
type Watcher struct {
	cron       *cron.Cron
	source     PendingSource
	dispatcher *Dispatcher
	logger     *slog.Logger
	timeout    time.Duration
}

// NewWatcher schedules observations according to schedule, e.g. "@every 5s".
func NewWatcher(source PendingSource, dispatcher *Dispatcher, schedule string, logger *slog.Logger) (*Watcher, error) {
	w := &Watcher{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		source:     source,
		dispatcher: dispatcher,
		logger:     logger,
		timeout:    10 * time.Second,
	}
	if _, err := w.cron.AddFunc(schedule, w.Tick); err != nil {
		return nil, fmt.Errorf("invalid alert schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start begins the schedule in the background.
func (w *Watcher) Start() {
	w.cron.Start()
	w.logger.Info("Pending transaction watcher started")
}

// Stop halts the schedule and waits for a running tick to finish.
func (w *Watcher) Stop(ctx context.Context) error {
	select {
	case <-w.cron.Stop().Done():
		w.logger.Info("Pending transaction watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick performs a single observation.
func (w *Watcher) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	pending, err := w.source.PendingTransactions(ctx)
	if err != nil {
		w.logger.Error("Failed to list pending transactions", "error", err)
		return
	}
	if batch, ok := w.dispatcher.Observe(ctx, pending); ok {
		w.logger.Debug("Alerted administrators", "count", len(batch.Alerts))
	}
}
