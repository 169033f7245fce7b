package core

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions: every
// public call either fully applies or leaves no trace.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Kitties
	GetKitty(id KittyID) (*Kitty, error)
	SetKitty(id KittyID, k *Kitty) error

	// Ownership: one owner per kitty, plus the per-owner ordered id list.
	// KittyOwner returns ErrNotFound for an unowned (nonexistent) id.
	KittyOwner(id KittyID) (string, error)
	SetKittyOwner(id KittyID, owner string) error
	OwnedKitties(owner string) ([]KittyID, error)
	SetOwnedKitties(owner string, ids []KittyID) error

	// Id counter. NextKittyID returns 0 for a fresh chain.
	NextKittyID() (KittyID, error)
	SetNextKittyID(id KittyID) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current
	// write buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the header.
	Commit() error
}
