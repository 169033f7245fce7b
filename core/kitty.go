package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
)

// KittyID indexes kitties. IDs are allocated monotonically starting at 0
// and are never reused.
type KittyID uint64

// MaxKittyID is the hard ceiling of the id space. Allocation saturates
// here; it never wraps.
const MaxKittyID = KittyID(math.MaxUint64)

// DNASize is the fixed length of a kitty's genetic payload.
const DNASize = 16

// DNA is the immutable genetic payload of a kitty. It is rendered as hex
// in JSON to match the module's key and signature encoding.
type DNA [DNASize]byte

// MarshalJSON encodes the DNA as a hex string.
func (d DNA) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(d[:]))
}

// UnmarshalJSON decodes a hex string of exactly DNASize bytes.
func (d *DNA) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid dna hex: %w", err)
	}
	if len(b) != DNASize {
		return fmt.Errorf("dna must be %d bytes, got %d", DNASize, len(b))
	}
	copy(d[:], b)
	return nil
}

// Kitty is the ledger's core entity. DNA is fixed at creation; Asset is
// the one attribute that may change afterwards, written by the offchain
// worker's update_kitty callback.
type Kitty struct {
	DNA   DNA    `json:"dna"`
	Asset uint32 `json:"asset"`
}

// Account holds a participant's funds and replay-protection nonce.
// Balance is freely spendable; Reserved is escrow locked against owned
// kitties. Escrow operations only ever move value between the two fields.
type Account struct {
	Address  string `json:"address"` // pubkey hex
	Balance  uint64 `json:"balance"`
	Reserved uint64 `json:"reserved"`
	Nonce    uint64 `json:"nonce"`
}
