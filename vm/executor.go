// Package vm dispatches transactions to self-registered handlers under a
// per-transaction snapshot, so every transition either fully applies or
// leaves the ledger untouched.
package vm

import (
	"fmt"
	"math"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/ledger"
)

// Scheduler receives offchain pending-work requests from handlers. It is
// an interface here so the vm does not depend on the offchain package;
// the real implementation writes outside the state buffer and is
// therefore not reverted with a failing later transaction.
type Scheduler interface {
	Schedule(height int64, id core.KittyID) error
}

// Context is passed to every Handler and provides access to the chain
// state, the current block, the triggering transaction and its index
// within the block, the event emitter, the ledger parameters, the
// randomness source and the offchain scheduler.
type Context struct {
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	TxIndex int
	Emitter *events.Emitter

	Params    ledger.Params
	Rand      ledger.RandSource
	Scheduler Scheduler
}

// Executor applies transactions to the state using the global Handler
// registry. It is the single writer of ledger state: transitions never
// interleave.
type Executor struct {
	state     core.State
	emitter   *events.Emitter
	params    ledger.Params
	rand      ledger.RandSource
	scheduler Scheduler
}

// NewExecutor creates an Executor. rand may be nil, in which case the OS
// entropy source is used. scheduler may be nil to disable offchain
// scheduling (tests).
func NewExecutor(state core.State, emitter *events.Emitter, params ledger.Params, rand ledger.RandSource, scheduler Scheduler) *Executor {
	if rand == nil {
		rand = ledger.OSRandom
	}
	return &Executor{
		state:     state,
		emitter:   emitter,
		params:    params,
		rand:      rand,
		scheduler: scheduler,
	}
}

// ExecuteTx verifies and executes a single transaction with
// snapshot/rollback. txIndex is the transaction's position in its block.
func (e *Executor) ExecuteTx(block *core.Block, txIndex int, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := e.applyTx(block, txIndex, tx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	if e.emitter != nil {
		e.emitter.Emit(events.Event{
			Type:        events.EventTxExecuted,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the
// handler.
func (e *Executor) applyTx(block *core.Block, txIndex int, tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	ctx := &Context{
		State:     e.state,
		Block:     block,
		Tx:        tx,
		TxIndex:   txIndex,
		Emitter:   e.emitter,
		Params:    e.params,
		Rand:      e.rand,
		Scheduler: e.scheduler,
	}
	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
