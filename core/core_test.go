package core_test

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/crypto"
	"github.com/tolelom/kittychain/wallet"
)

// TestKeyGenAndAddress verifies that key generation and address derivation work.
func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(pub.Hex()) != 64 {
		t.Errorf("pubkey hex length: got %d want 64", len(pub.Hex()))
	}
	addr := pub.Address()
	if len(addr) != 40 {
		t.Errorf("address length: got %d want 40", len(addr))
	}
	// Roundtrip: derived public key should match
	derived := priv.Public()
	if derived.Hex() != pub.Hex() {
		t.Error("derived public key does not match")
	}
}

// TestSignVerify ensures Sign/Verify round-trips correctly.
func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello kittychain")
	sig := crypto.Sign(priv, data)
	if err := crypto.Verify(pub, data, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := crypto.Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered data should fail verification")
	}
}

// TestTransactionSignVerify ensures transaction signing and verification work.
func TestTransactionSignVerify(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}

	tx, err := w.NewTx("test-chain", core.TxTransfer, 0, 0, core.TransferPayload{
		To:     "deadbeef",
		Amount: 100,
	})
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	if tx.ID == "" {
		t.Error("tx ID should be set after signing")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Tamper with the fee to check that verification catches it.
	tx.Fee = 999
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

// TestBlockHash ensures that hashing a block is deterministic.
func TestBlockHash(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := core.NewBlock(1, "0000", pub.Hex(), nil)
	block.Sign(priv)

	if block.Hash == "" {
		t.Error("hash should be set after signing")
	}
	// Re-compute and compare
	if block.ComputeHash() != block.Hash {
		t.Error("ComputeHash() does not match stored hash")
	}
	if err := block.Verify(pub); err != nil {
		t.Errorf("block signature: %v", err)
	}
}

// TestMempool verifies add/pending/remove operations.
func TestMempool(t *testing.T) {
	mp := core.NewMempool()
	w, _ := wallet.Generate()

	tx1, _ := w.NewTx("test-chain", core.TxTransfer, 0, 0, core.TransferPayload{To: "aa", Amount: 1})
	tx2, _ := w.NewTx("test-chain", core.TxTransfer, 1, 0, core.TransferPayload{To: "bb", Amount: 2})

	if err := mp.Add(tx1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mp.Add(tx2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mp.Add(tx1); err == nil {
		t.Error("duplicate add should fail")
	}
	if mp.Size() != 2 {
		t.Errorf("size: got %d want 2", mp.Size())
	}

	pending := mp.Pending(10)
	if len(pending) != 2 || pending[0].ID != tx1.ID || pending[1].ID != tx2.ID {
		t.Errorf("pending order wrong: %v", pending)
	}

	mp.Remove([]string{tx1.ID})
	if mp.Size() != 1 {
		t.Errorf("size after remove: got %d want 1", mp.Size())
	}
	if _, ok := mp.Get(tx1.ID); ok {
		t.Error("removed tx still present")
	}
}

// TestDNAJSONRoundTrip checks the hex encoding of dna values.
func TestDNAJSONRoundTrip(t *testing.T) {
	var d core.DNA
	for i := range d {
		d[i] = byte(i)
	}

	data, err := json.Marshal(core.Kitty{DNA: d, Asset: 7})
	if err != nil {
		t.Fatal(err)
	}

	var k core.Kitty
	if err := json.Unmarshal(data, &k); err != nil {
		t.Fatal(err)
	}
	if k.DNA != d || k.Asset != 7 {
		t.Errorf("round trip: got %+v", k)
	}
}
