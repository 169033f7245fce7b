// Package kitties implements the kitty ledger's state transitions:
// create, breed, transfer and the offchain worker's update callback.
// Every handler validates all preconditions against the current state and
// relies on the executor's per-transaction snapshot for rollback, so a
// failure at any step leaves no observable effect.
package kitties

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/ledger"
	"github.com/tolelom/kittychain/vm"
)

func init() {
	vm.Register(core.TxCreateKitty, handleCreate)
	vm.Register(core.TxBreedKitty, handleBreed)
	vm.Register(core.TxTransferKitty, handleTransfer)
	vm.Register(core.TxUpdateKitty, handleUpdate)
}

func handleCreate(ctx *vm.Context, _ json.RawMessage) error {
	who := ctx.Tx.From
	price := ctx.Params.KittyPrice
	esc := ledger.NewEscrow(ctx.State)
	reg := ledger.NewRegistry(ctx.State, ctx.Params)

	ok, err := esc.CanReserve(who, price)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("create kitty: %w", core.ErrInsufficientFunds)
	}

	id, err := reg.NextID()
	if errors.Is(err, core.ErrKittyIDOverflow) {
		return fmt.Errorf("id counter exhausted: %w", core.ErrInvalidKittyID)
	}
	if err != nil {
		return err
	}

	seed, err := ctx.Rand()
	if err != nil {
		return fmt.Errorf("random seed: %w", err)
	}
	kitty := &core.Kitty{DNA: ledger.DeriveDNA(seed, who, ctx.TxIndex)}

	if err := esc.Reserve(who, price); err != nil {
		return err
	}
	// A capacity failure here reverts the reservation with the rest of
	// the transaction.
	if err := reg.Insert(id, kitty, who); err != nil {
		return err
	}
	if err := reg.AdvanceID(); err != nil {
		return err
	}

	schedule(ctx, id)
	emitKitty(ctx, events.EventKittyCreated, id, kitty, who)
	return nil
}

func handleBreed(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BreedKittyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode breed_kitty payload: %w", err)
	}
	if p.KittyID1 == p.KittyID2 {
		return fmt.Errorf("breed %d with itself: %w", p.KittyID1, core.ErrSameKittyID)
	}

	who := ctx.Tx.From
	price := ctx.Params.KittyPrice
	esc := ledger.NewEscrow(ctx.State)
	reg := ledger.NewRegistry(ctx.State, ctx.Params)

	parent1, err := reg.Get(p.KittyID1)
	if err != nil {
		return err
	}
	parent2, err := reg.Get(p.KittyID2)
	if err != nil {
		return err
	}

	ok, err := esc.CanReserve(who, price)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("breed kitty: %w", core.ErrInsufficientFunds)
	}

	id, err := reg.NextID()
	if errors.Is(err, core.ErrKittyIDOverflow) {
		return fmt.Errorf("id counter exhausted: %w", core.ErrInvalidKittyID)
	}
	if err != nil {
		return err
	}

	seed, err := ctx.Rand()
	if err != nil {
		return fmt.Errorf("random seed: %w", err)
	}
	kitty := &core.Kitty{DNA: ledger.Combine(parent1.DNA, parent2.DNA, seed)}

	if err := esc.Reserve(who, price); err != nil {
		return err
	}
	if err := reg.Insert(id, kitty, who); err != nil {
		return err
	}
	if err := reg.AdvanceID(); err != nil {
		return err
	}

	schedule(ctx, id)
	emitKitty(ctx, events.EventKittyBred, id, kitty, who)
	return nil
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferKittyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer_kitty payload: %w", err)
	}
	if p.To == "" {
		return errors.New("to address required")
	}

	who := ctx.Tx.From
	price := ctx.Params.KittyPrice
	esc := ledger.NewEscrow(ctx.State)
	reg := ledger.NewRegistry(ctx.State, ctx.Params)

	if _, err := reg.Get(p.KittyID); err != nil {
		return err
	}

	// The escrow follows the kitty: the new owner must be able to back it.
	ok, err := esc.CanReserve(p.To, price)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transfer kitty to %s: %w", p.To, core.ErrInsufficientFunds)
	}

	owner, err := reg.OwnerOf(p.KittyID)
	if err != nil {
		return err
	}
	if owner != who {
		return fmt.Errorf("kitty %d owned by %s: %w", p.KittyID, owner, core.ErrNotOwner)
	}

	// Unreserve, reserve and move are one atomic step under the tx
	// snapshot: if reserve or the capacity check below fails, the
	// unreserve is rolled back too.
	if err := esc.Unreserve(who, price); err != nil {
		return err
	}
	if err := esc.Reserve(p.To, price); err != nil {
		return err
	}
	if err := reg.MoveOwnership(p.KittyID, who, p.To); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventKittyTransferred,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"kitty_id": p.KittyID,
				"from":     who,
				"to":       p.To,
			},
		})
	}
	return nil
}

// handleUpdate is the offchain worker's re-entry point. It overwrites the
// kitty's mutable asset field and nothing else: dna, owner and escrow are
// untouched. A missing id fails with ErrInvalidKittyID rather than
// silently succeeding; the worker tolerates that by dropping the result.
func handleUpdate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UpdateKittyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode update_kitty payload: %w", err)
	}

	if auth := ctx.Params.WorkerAuthority; auth != "" && ctx.Tx.From != auth {
		return fmt.Errorf("update_kitty from %s: not the worker authority", ctx.Tx.From)
	}

	reg := ledger.NewRegistry(ctx.State, ctx.Params)
	kitty, err := reg.Get(p.KittyID)
	if err != nil {
		return err
	}

	kitty.Asset = p.Asset
	if err := ctx.State.SetKitty(p.KittyID, kitty); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventKittyUpdated,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"kitty_id": p.KittyID,
				"asset":    p.Asset,
			},
		})
	}
	return nil
}

// schedule records offchain follow-up work for id. It runs only after
// every ledger mutation of the handler has succeeded; the pending store
// writes outside the state buffer, so the record stands even if a later
// transaction in this block is reverted. Failures are logged, never
// propagated: the ledger transition has already succeeded.
func schedule(ctx *vm.Context, id core.KittyID) {
	if ctx.Scheduler == nil {
		return
	}
	if err := ctx.Scheduler.Schedule(ctx.Block.Header.Height, id); err != nil {
		slog.Error("schedule offchain work", "kitty_id", id, "height", ctx.Block.Header.Height, "err", err)
	}
}

func emitKitty(ctx *vm.Context, typ events.EventType, id core.KittyID, kitty *core.Kitty, owner string) {
	if ctx.Emitter == nil {
		return
	}
	ctx.Emitter.Emit(events.Event{
		Type:        typ,
		TxID:        ctx.Tx.ID,
		BlockHeight: ctx.Block.Header.Height,
		Data: map[string]any{
			"kitty_id": id,
			"owner":    owner,
			"dna":      hex.EncodeToString(kitty.DNA[:]),
		},
	})
}
