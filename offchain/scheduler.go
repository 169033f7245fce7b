// Package offchain implements the asynchronous side channel of the kitty
// ledger: the scheduler persists pending-work records as transitions
// execute, and the worker later picks them up, performs the slow
// computation outside the transition boundary, and re-enters the ledger
// through an ordinary signed transaction.
package offchain

import (
	"log/slog"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/storage"
)

// Scheduler records offchain pending work. It satisfies vm.Scheduler and
// is invoked by transition handlers after their ledger mutations have
// succeeded. The write bypasses the state buffer: it is not part of the
// block's atomic write set and is never rolled back with a failed
// transaction.
type Scheduler struct {
	pending *storage.PendingStore
	metrics *Metrics
	log     *slog.Logger
}

// NewScheduler creates a Scheduler over the pending store. metrics may be
// nil.
func NewScheduler(pending *storage.PendingStore, metrics *Metrics, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{pending: pending, metrics: metrics, log: log}
}

// Schedule writes the pending-work record for id, keyed by the height of
// the block being executed. One record per height: a second create in the
// same block overwrites the first, which is acceptable for this
// best-effort channel.
func (s *Scheduler) Schedule(height int64, id core.KittyID) error {
	if err := s.pending.Put(height, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Scheduled.Inc()
	}
	s.log.Debug("offchain work scheduled", "height", height, "kitty_id", id)
	return nil
}
