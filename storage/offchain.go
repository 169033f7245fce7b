package storage

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tolelom/kittychain/core"
)

// pendingKeyPrefix namespaces offchain pending-work records. The prefix is
// deliberately NOT registered as a state prefix: pending records are a
// side channel, excluded from the state root and from snapshot/rollback.
const pendingKeyPrefix = "ocw:kitty:"

// PendingStore persists offchain pending-work records. Writes go straight
// to the underlying DB, bypassing the StateDB write buffer, so a record
// survives even if a later transaction in the same block is reverted.
// At most one record lives per height; rewriting the key overwrites it.
type PendingStore struct {
	db DB
}

// NewPendingStore creates a PendingStore over db.
func NewPendingStore(db DB) *PendingStore {
	return &PendingStore{db: db}
}

// PendingKey derives the record key for a block height. The worker derives
// the same key for its current epoch to find work scheduled in that block.
func PendingKey(height int64) []byte {
	return []byte(pendingKeyPrefix + strconv.FormatInt(height, 10))
}

// Put records that kitty id awaits asynchronous post-processing, keyed by
// the height of the block that created it.
func (p *PendingStore) Put(height int64, id core.KittyID) error {
	return p.db.Set(PendingKey(height), []byte(strconv.FormatUint(uint64(id), 10)))
}

// Get returns the kitty id scheduled at height. ok is false if no record
// exists. Reading does not consume the record.
func (p *PendingStore) Get(height int64) (core.KittyID, bool, error) {
	data, err := p.db.Get(PendingKey(height))
	if errors.Is(err, core.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt pending record at height %d: %w", height, err)
	}
	return core.KittyID(n), true, nil
}

// Delete removes the record for height. Workers call this after a
// successful callback submission; leaving the record in place is harmless
// because reprocessing the same height computes the same result.
func (p *PendingStore) Delete(height int64) error {
	return p.db.Delete(PendingKey(height))
}
