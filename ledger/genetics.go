package ledger

import (
	"encoding/binary"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/crypto"
)

// RandSource yields one seed per call. Seeds must be unpredictable enough
// to avoid breeding collisions; they are not reproducible across replays.
type RandSource func() (core.DNA, error)

// OSRandom is the default RandSource, reading from the OS entropy pool.
func OSRandom() (core.DNA, error) {
	var d core.DNA
	b, err := crypto.RandomSeed(core.DNASize)
	if err != nil {
		return d, err
	}
	copy(d[:], b)
	return d, nil
}

// Combine derives a child dna from two parents and a random seed:
// for every byte i, child[i] = (a[i] & seed[i]) | (b[i] & seed[i]).
// Note this keeps the source formula as-is: where a seed bit is 0 the
// result bit is 0 regardless of either parent, so the operator is biased
// toward the seed's 1-bits rather than being a per-bit parent selector.
// Deterministic for identical (a, b, seed).
func Combine(a, b, seed core.DNA) core.DNA {
	var child core.DNA
	for i := 0; i < core.DNASize; i++ {
		child[i] = (a[i] & seed[i]) | (b[i] & seed[i])
	}
	return child
}

// DeriveDNA builds a fresh dna for create from the random seed, the
// sender and the transaction's index within its block. The index keeps
// two creates by the same sender in one block from colliding.
func DeriveDNA(seed core.DNA, sender string, txIndex int) core.DNA {
	payload := make([]byte, 0, core.DNASize+len(sender)+4)
	payload = append(payload, seed[:]...)
	payload = append(payload, sender...)
	payload = binary.BigEndian.AppendUint32(payload, uint32(txIndex))

	var d core.DNA
	copy(d[:], crypto.HashBytes(payload)[:core.DNASize])
	return d
}
