package offchain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/storage"
	"github.com/tolelom/kittychain/wallet"
)

// assetEven and assetOdd are the toy results of the simulated heavy
// computation, selected by epoch parity.
const (
	assetEven uint32 = 200
	assetOdd  uint32 = 100
)

// SubmitFunc delivers a signed callback transaction into the ledger's
// public submission path (normally Mempool.Add).
type SubmitFunc func(tx *core.Transaction) error

// NonceFunc returns the current committed nonce for an address.
type NonceFunc func(address string) (uint64, error)

// WorkerConfig tunes one worker instance.
type WorkerConfig struct {
	ChainID string
	// ComputeDelay is the duration of the simulated heavy computation.
	ComputeDelay time.Duration
	// SubmitRate caps callback submissions per second. Zero means no cap.
	SubmitRate float64
}

// Worker is the out-of-band, best-effort half of the offchain protocol.
// Once per epoch (a committed block) it derives the pending-work key for
// that height, performs the slow computation without holding any ledger
// lock, and re-enters the ledger through a signed update_kitty
// transaction. It retries nothing: failure is logged, the record is left
// for a later epoch, and the ledger never sees an error from here.
type Worker struct {
	cfg     WorkerConfig
	pending *storage.PendingStore
	signer  *wallet.Wallet
	submit  SubmitFunc
	nonceOf NonceFunc
	limiter *rate.Limiter
	metrics *Metrics
	log     *slog.Logger

	epochs chan int64

	mu        sync.Mutex
	nextNonce uint64 // floor for the next submission's nonce
}

// NewWorker creates a Worker. metrics may be nil.
func NewWorker(cfg WorkerConfig, pending *storage.PendingStore, signer *wallet.Wallet, submit SubmitFunc, nonceOf NonceFunc, metrics *Metrics, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	if cfg.SubmitRate > 0 {
		limit = rate.Limit(cfg.SubmitRate)
	}
	return &Worker{
		cfg:     cfg,
		pending: pending,
		signer:  signer,
		submit:  submit,
		nonceOf: nonceOf,
		limiter: rate.NewLimiter(limit, 1),
		metrics: metrics,
		log:     log.With("worker", uuid.NewString()[:8]),
		epochs:  make(chan int64, 16),
	}
}

// Start subscribes the worker to block-commit events and launches its
// loop. The subscription handler only queues the epoch number, so block
// production is never delayed by a busy worker; when the queue is full
// the epoch is skipped and the pending record simply waits.
func (w *Worker) Start(ctx context.Context, emitter *events.Emitter) {
	emitter.Subscribe(events.EventBlockCommit, func(ev events.Event) {
		select {
		case w.epochs <- ev.BlockHeight:
		default:
			w.log.Warn("worker busy, skipping epoch", "height", ev.BlockHeight)
		}
	})
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case height := <-w.epochs:
			w.processEpoch(ctx, height)
		}
	}
}

// processEpoch handles one activation: read the record for this height,
// simulate the heavy computation, then try the callback exactly once.
func (w *Worker) processEpoch(ctx context.Context, height int64) {
	id, ok, err := w.pending.Get(height)
	if err != nil {
		w.log.Error("read pending record", "height", height, "err", err)
		return
	}
	if !ok {
		return // nothing scheduled this epoch
	}

	job := w.log.With("job", uuid.NewString()[:8], "height", height, "kitty_id", id)
	if w.metrics != nil {
		w.metrics.Epochs.Inc()
		w.metrics.InFlight.Inc()
		defer w.metrics.InFlight.Dec()
	}

	// Simulated heavy computation. Cancellable: on teardown the record
	// stays put and a later epoch may pick it up again, which is safe
	// because the result is a pure function of (height, id).
	job.Info("offchain computation started", "delay", w.cfg.ComputeDelay)
	select {
	case <-ctx.Done():
		job.Info("offchain computation cancelled")
		return
	case <-time.After(w.cfg.ComputeDelay):
	}

	asset := assetOdd
	if height%2 == 0 {
		asset = assetEven
	}

	if err := w.limiter.Wait(ctx); err != nil {
		job.Info("offchain submission cancelled")
		return
	}
	if err := w.sendCallback(id, asset); err != nil {
		// Try once, log and drop. No retry, no ledger error.
		if w.metrics != nil {
			w.metrics.Dropped.Inc()
		}
		job.Error("callback dropped", "asset", asset, "err", err)
		return
	}
	if w.metrics != nil {
		w.metrics.Submitted.Inc()
	}
	job.Info("callback submitted", "asset", asset)

	// Record hygiene only: leaving it would be harmless (same height,
	// same result), but there is no reason to reprocess it.
	if err := w.pending.Delete(height); err != nil {
		job.Warn("clear pending record", "err", err)
	}
}

// sendCallback signs and submits update_kitty(id, asset) with the next
// usable nonce. The local floor covers submissions not yet mined; the
// committed state covers restarts.
func (w *Worker) sendCallback(id core.KittyID, asset uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := w.nonceOf(w.signer.PubKey())
	if err != nil {
		return err
	}
	if w.nextNonce > nonce {
		nonce = w.nextNonce
	}

	tx, err := w.signer.UpdateKitty(w.cfg.ChainID, id, asset, nonce, 0)
	if err != nil {
		return err
	}
	if err := w.submit(tx); err != nil {
		return err
	}
	w.nextNonce = nonce + 1
	return nil
}
