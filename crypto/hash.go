package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// RandomSeed fills and returns n bytes from the OS entropy source.
// Seeds are not reproducible across replays; callers needing
// determinism must inject their own source instead.
func RandomSeed(n int) ([]byte, error) {
	seed := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, err
	}
	return seed, nil
}
