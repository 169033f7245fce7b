// Package ledger implements the kitty ledger's state components: the
// escrow ledger, the asset registry and the genetic combiner. All of them
// operate on core.State; atomicity comes from the executor's per-
// transaction snapshot, so partial writes here are rolled back wholesale
// when a handler fails.
package ledger

import (
	"fmt"

	"github.com/tolelom/kittychain/core"
)

// Escrow tracks, per account, the split between free and reserved funds.
// Reserve and Unreserve only ever move value between the two fields:
// Balance+Reserved is conserved by every escrow operation.
type Escrow struct {
	state core.State
}

// NewEscrow creates an Escrow over state.
func NewEscrow(state core.State) Escrow {
	return Escrow{state: state}
}

// CanReserve reports whether addr has at least amount of free balance.
func (e Escrow) CanReserve(addr string, amount uint64) (bool, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return false, err
	}
	return acc.Balance >= amount, nil
}

// Reserve moves amount from free to reserved balance. Fails with
// core.ErrInsufficientFunds if the free balance is too low.
func (e Escrow) Reserve(addr string, amount uint64) error {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return fmt.Errorf("reserve %d for %s: %w", amount, addr, core.ErrInsufficientFunds)
	}
	acc.Balance -= amount
	acc.Reserved += amount
	return e.state.SetAccount(acc)
}

// Unreserve moves amount from reserved back to free balance, clamped at
// zero reserved. It never fails on a short reserve: this models the
// non-failing release used when escrow ownership is handed to another
// account.
func (e Escrow) Unreserve(addr string, amount uint64) error {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if amount > acc.Reserved {
		amount = acc.Reserved
	}
	acc.Reserved -= amount
	acc.Balance += amount
	return e.state.SetAccount(acc)
}

// ReservedBalance returns addr's reserved balance.
func (e Escrow) ReservedBalance(addr string) (uint64, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Reserved, nil
}
