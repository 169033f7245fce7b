// Package consensus drives block production. A single fixed sealer
// executes pooled transactions one at a time against the shared state, so
// ledger transitions never interleave; each block is signed by the sealer
// and committed together with its state write set.
package consensus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/crypto"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/vm"
)

// Sealer builds, signs and commits blocks on a fixed schedule.
type Sealer struct {
	chainID     string
	maxBlockTxs int
	bc          *core.Blockchain
	state       core.State
	mempool     *core.Mempool
	exec        *vm.Executor
	emitter     *events.Emitter
	privKey     crypto.PrivateKey
	pubKey      crypto.PublicKey
	log         *slog.Logger
}

// New creates a Sealer signing with privKey.
func New(chainID string, maxBlockTxs int, bc *core.Blockchain, state core.State, mempool *core.Mempool, exec *vm.Executor, emitter *events.Emitter, privKey crypto.PrivateKey) *Sealer {
	if maxBlockTxs <= 0 {
		maxBlockTxs = 500
	}
	return &Sealer{
		chainID:     chainID,
		maxBlockTxs: maxBlockTxs,
		bc:          bc,
		state:       state,
		mempool:     mempool,
		exec:        exec,
		emitter:     emitter,
		privKey:     privKey,
		pubKey:      privKey.Public(),
		log:         slog.Default(),
	}
}

// SealBlock executes pending transactions and commits the next block.
// A failing transaction is reverted individually, logged and dropped from
// the pool; the rest of the block proceeds. Returns (nil, nil) when the
// pool is empty.
func (s *Sealer) SealBlock() (*core.Block, error) {
	txs := s.mempool.Pending(s.maxBlockTxs)
	if len(txs) == 0 {
		return nil, nil
	}

	tip := s.bc.Tip()
	if tip == nil {
		return nil, errors.New("no genesis block")
	}

	block := core.NewBlock(tip.Header.Height+1, tip.Hash, s.pubKey.Hex(), nil)

	processed := make([]string, 0, len(txs))
	for _, tx := range txs {
		processed = append(processed, tx.ID)
		if tx.ChainID != s.chainID {
			s.log.Warn("dropping cross-chain tx", "tx", tx.ID, "chain_id", tx.ChainID)
			continue
		}
		if err := s.exec.ExecuteTx(block, len(block.Transactions), tx); err != nil {
			s.log.Warn("tx rejected", "tx", tx.ID, "type", tx.Type, "err", err)
			continue
		}
		block.Transactions = append(block.Transactions, tx)
	}

	if len(block.Transactions) == 0 {
		s.mempool.Remove(processed)
		return nil, nil
	}

	block.Header.TxRoot = core.ComputeTxRoot(block.Transactions)
	// Compute root from the write buffer BEFORE flushing so that if
	// AddBlock fails the state has not been persisted and the node stays
	// consistent.
	block.Header.StateRoot = s.state.ComputeRoot()
	block.Sign(s.privKey)

	if err := s.bc.AddBlock(block); err != nil {
		return nil, fmt.Errorf("add block: %w", err)
	}

	// Flush state only after the block is safely stored.
	if err := s.state.Commit(); err != nil {
		s.log.Error("block stored but state commit failed",
			"height", block.Header.Height, "err", err)
		os.Exit(1)
	}

	// Emit after Sign() so block.Hash is set; the offchain worker keys
	// its epoch off this event.
	s.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
	})

	s.mempool.Remove(processed)
	return block, nil
}

// Run starts the sealing loop with the given interval. It blocks until
// done is closed.
func (s *Sealer) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, err := s.SealBlock(); err != nil {
				s.log.Error("seal block", "err", err)
			}
		}
	}
}
