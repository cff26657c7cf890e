// Package notify alerts administrators about transactions waiting for approval.
//
// The set of already-alerted ids lives in process memory only. After a restart
// every transaction that is still pending is alerted once more.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cryptocard-ledger/internal/domain"
)

// Sink receives alert batches.
type Sink interface {
	Notify(ctx context.Context, batch domain.AlertBatch) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch domain.AlertBatch) error

func (f SinkFunc) Notify(ctx context.Context, batch domain.AlertBatch) error {
	return f(ctx, batch)
}

// Dispatcher turns successive observations of the pending set into alerts,
// at most one per transaction id.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	alerted map[string]struct{}
}

// NewDispatcher creates a Dispatcher that fans batches out to sinks.
func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		logger:  logger,
		now:     time.Now,
		alerted: make(map[string]struct{}),
	}
}

// Observe compares pending against the ids alerted so far. When new pending
// transactions are found it emits one batch covering all of them, records
// their ids and returns the batch with ok set.
func (d *Dispatcher) Observe(ctx context.Context, pending []domain.Transaction) (domain.AlertBatch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var alerts []domain.Alert
	for _, tx := range pending {
		if tx.Status != domain.TransactionStatusPending {
			continue
		}
		if _, seen := d.alerted[tx.ID]; seen {
			continue
		}
		alerts = append(alerts, domain.Alert{TransactionID: tx.ID, Type: tx.Type, Amount: tx.Amount})
	}
	if len(alerts) == 0 {
		return domain.AlertBatch{}, false
	}

	batch := domain.AlertBatch{Alerts: alerts, ObservedAt: d.now().UTC()}
	for _, sink := range d.sinks {
		if err := sink.Notify(ctx, batch); err != nil {
			d.logger.Error("Failed to deliver alert batch", "error", err, "alerts", len(alerts))
		}
	}

	for _, a := range alerts {
		d.alerted[a.TransactionID] = struct{}{}
	}
	return batch, true
}

// Alerted reports whether id has already been alerted.
func (d *Dispatcher) Alerted(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.alerted[id]
	return ok
}

// Reset forgets every alerted id, as a process restart would.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerted = make(map[string]struct{})
}

// LogSink writes each batch to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, batch domain.AlertBatch) error {
	ids := make([]string, 0, len(batch.Alerts))
	for _, a := range batch.Alerts {
		ids = append(ids, a.TransactionID)
	}
	s.Logger.InfoContext(ctx, batch.Title(), "summary", batch.Summary(), "transaction_ids", ids)
	return nil
}
