package ledger

import (
	"errors"
	"fmt"

	"github.com/tolelom/kittychain/core"
)

// Params are the configured constants of the kitty ledger, injected into
// every transition.
type Params struct {
	// KittyPrice is the escrow locked per owned kitty, for create, breed
	// and transfer alike.
	KittyPrice uint64
	// MaxOwned bounds the per-account owned-kitty list.
	MaxOwned int
	// MaxKittyID saturates the id counter; allocation fails there rather
	// than wrapping.
	MaxKittyID core.KittyID
	// WorkerAuthority, when non-empty, restricts update_kitty to this
	// sender pubkey. Empty accepts any signed caller.
	WorkerAuthority string
}

// Registry owns the monotonic id counter, the id->kitty map, the
// id->owner map and the owner->owned-ids index, and enforces the
// per-owner capacity bound.
type Registry struct {
	state    core.State
	maxOwned int
	maxID    core.KittyID
}

// NewRegistry creates a Registry over state with the given bounds.
func NewRegistry(state core.State, p Params) Registry {
	return Registry{state: state, maxOwned: p.MaxOwned, maxID: p.MaxKittyID}
}

// NextID returns the id the next created kitty will get. Fails with
// core.ErrKittyIDOverflow once the counter has reached the ceiling.
func (r Registry) NextID() (core.KittyID, error) {
	id, err := r.state.NextKittyID()
	if err != nil {
		return 0, err
	}
	if id >= r.maxID {
		return 0, core.ErrKittyIDOverflow
	}
	return id, nil
}

// AdvanceID increments the id counter. Callers must have validated the
// current value via NextID first.
func (r Registry) AdvanceID() error {
	id, err := r.state.NextKittyID()
	if err != nil {
		return err
	}
	return r.state.SetNextKittyID(id + 1)
}

// Get returns the kitty for id, or core.ErrInvalidKittyID if it does not
// exist.
func (r Registry) Get(id core.KittyID) (*core.Kitty, error) {
	k, err := r.state.GetKitty(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("kitty %d: %w", id, core.ErrInvalidKittyID)
	}
	return k, err
}

// OwnerOf returns the owning address of id, or core.ErrInvalidKittyID.
func (r Registry) OwnerOf(id core.KittyID) (string, error) {
	owner, err := r.state.KittyOwner(id)
	if errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("kitty %d: %w", id, core.ErrInvalidKittyID)
	}
	return owner, err
}

// OwnedBy returns the ordered list of ids owned by addr.
func (r Registry) OwnedBy(addr string) ([]core.KittyID, error) {
	return r.state.OwnedKitties(addr)
}

// Insert records the kitty, its owner and the owner-index entry. Fails
// with core.ErrOwnTooManyKitties if the owner's list is already full; in
// that case nothing is written.
func (r Registry) Insert(id core.KittyID, k *core.Kitty, owner string) error {
	owned, err := r.state.OwnedKitties(owner)
	if err != nil {
		return err
	}
	if len(owned) >= r.maxOwned {
		return fmt.Errorf("account %s: %w", owner, core.ErrOwnTooManyKitties)
	}
	if err := r.state.SetKitty(id, k); err != nil {
		return err
	}
	if err := r.state.SetKittyOwner(id, owner); err != nil {
		return err
	}
	return r.state.SetOwnedKitties(owner, append(owned, id))
}

// MoveOwnership removes id from from's list and appends it to to's list,
// updating the owner map. Fails with core.ErrNotOwner if from does not
// hold the id, or core.ErrOwnTooManyKitties if to is at capacity. The
// caller's transaction snapshot makes the two-sided update atomic.
func (r Registry) MoveOwnership(id core.KittyID, from, to string) error {
	fromOwned, err := r.state.OwnedKitties(from)
	if err != nil {
		return err
	}
	pos := -1
	for i, owned := range fromOwned {
		if owned == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("kitty %d not held by %s: %w", id, from, core.ErrNotOwner)
	}
	if from == to {
		return nil // self-transfer, nothing moves
	}

	toOwned, err := r.state.OwnedKitties(to)
	if err != nil {
		return err
	}
	if len(toOwned) >= r.maxOwned {
		return fmt.Errorf("account %s: %w", to, core.ErrOwnTooManyKitties)
	}

	fromOwned = append(fromOwned[:pos], fromOwned[pos+1:]...)
	if err := r.state.SetOwnedKitties(from, fromOwned); err != nil {
		return err
	}
	if err := r.state.SetOwnedKitties(to, append(toOwned, id)); err != nil {
		return err
	}
	return r.state.SetKittyOwner(id, to)
}
