// Package storage provides the ordered key-value abstraction backing the
// ledger, its LevelDB implementation, the buffered StateDB and the
// offchain pending-work side channel.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount = registerPrefix("acct:")
	prefixKitty   = registerPrefix("kitty:")
	prefixOwner   = registerPrefix("owner:")
	prefixOwned   = registerPrefix("owned:")
	prefixNextID  = registerPrefix("nextid:")
)

// keyNextKittyID is the single state value holding the id counter.
var keyNextKittyID = prefixNextID + "kitty"

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
// The sealer is the only writer, but the RPC handler and the offchain
// worker read the same instance from their own goroutines, so the buffer
// maps are guarded by a mutex.
type StateDB struct {
	db        DB
	mu        sync.RWMutex
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, key)
	s.deleted[key] = true
}

func kittyKey(id core.KittyID) string {
	return prefixKitty + strconv.FormatUint(uint64(id), 10)
}

func ownerKey(id core.KittyID) string {
	return prefixOwner + strconv.FormatUint(uint64(id), 10)
}

// ---- Accounts ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// ---- Kitties ----

func (s *StateDB) GetKitty(id core.KittyID) (*core.Kitty, error) {
	data, err := s.get(kittyKey(id))
	if err != nil {
		return nil, err
	}
	var k core.Kitty
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *StateDB) SetKitty(id core.KittyID, k *core.Kitty) error {
	data, err := json.Marshal(k)
	if err != nil {
		return err
	}
	s.set(kittyKey(id), data)
	return nil
}

// ---- Ownership ----

func (s *StateDB) KittyOwner(id core.KittyID) (string, error) {
	data, err := s.get(ownerKey(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) SetKittyOwner(id core.KittyID, owner string) error {
	s.set(ownerKey(id), []byte(owner))
	return nil
}

func (s *StateDB) OwnedKitties(owner string) ([]core.KittyID, error) {
	data, err := s.get(prefixOwned + owner)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil // empty list
	}
	if err != nil {
		return nil, err
	}
	var ids []core.KittyID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *StateDB) SetOwnedKitties(owner string, ids []core.KittyID) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	s.set(prefixOwned+owner, data)
	return nil
}

// ---- Id counter ----

func (s *StateDB) NextKittyID() (core.KittyID, error) {
	data, err := s.get(keyNextKittyID)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil // fresh chain
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt next kitty id: %w", err)
	}
	return core.KittyID(n), nil
}

func (s *StateDB) SetNextKittyID(id core.KittyID) error {
	s.set(keyNextKittyID, []byte(strconv.FormatUint(uint64(id), 10)))
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved
// snapshot. The snapshot maps are deep-copied so that subsequent writes
// cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known
// state prefixes) with the current write buffer, then hashes the sorted
// key-value pairs using length-prefix encoding. It does NOT flush or
// modify state, so it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	// Apply the in-memory write buffer (uncommitted changes this block).
	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// write batch and then clears it. Call ComputeRoot() before signing the
// block, then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
