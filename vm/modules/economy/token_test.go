package economy_test

import (
	"testing"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/internal/testutil"
	"github.com/tolelom/kittychain/ledger"
	"github.com/tolelom/kittychain/vm"
	"github.com/tolelom/kittychain/wallet"

	_ "github.com/tolelom/kittychain/vm/modules/economy"
)

const chainID = "kittychain-test"

func newExecutor(state core.State) *vm.Executor {
	params := ledger.Params{KittyPrice: 10, MaxOwned: 3, MaxKittyID: core.MaxKittyID}
	return vm.NewExecutor(state, events.NewEmitter(), params, nil, nil)
}

// TestTokenTransfer verifies that the transfer handler moves free balance.
func TestTokenTransfer(t *testing.T) {
	state := testutil.NewStateDB()
	exec := newExecutor(state)

	sender, _ := wallet.Generate()
	receiver, _ := wallet.Generate()
	_ = state.SetAccount(&core.Account{Address: sender.PubKey(), Balance: 1000})

	tx, err := sender.Transfer(chainID, receiver.PubKey(), 300, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	block := core.NewBlock(1, "0000", sender.PubKey(), []*core.Transaction{tx})
	if err := exec.ExecuteTx(block, 0, tx); err != nil {
		t.Fatalf("ExecuteTx: %v", err)
	}

	senderAcc, _ := state.GetAccount(sender.PubKey())
	if senderAcc.Balance != 700 {
		t.Errorf("sender balance: got %d want 700", senderAcc.Balance)
	}
	receiverAcc, _ := state.GetAccount(receiver.PubKey())
	if receiverAcc.Balance != 300 {
		t.Errorf("receiver balance: got %d want 300", receiverAcc.Balance)
	}
}

// TestTokenTransferLeavesReserved verifies escrowed funds cannot be spent.
func TestTokenTransferLeavesReserved(t *testing.T) {
	state := testutil.NewStateDB()
	exec := newExecutor(state)

	sender, _ := wallet.Generate()
	receiver, _ := wallet.Generate()
	_ = state.SetAccount(&core.Account{Address: sender.PubKey(), Balance: 50, Reserved: 100})

	tx, err := sender.Transfer(chainID, receiver.PubKey(), 80, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	block := core.NewBlock(1, "0000", sender.PubKey(), []*core.Transaction{tx})
	if err := exec.ExecuteTx(block, 0, tx); err == nil {
		t.Fatal("transfer exceeding free balance should fail even with reserved funds")
	}

	senderAcc, _ := state.GetAccount(sender.PubKey())
	if senderAcc.Balance != 50 || senderAcc.Reserved != 100 {
		t.Errorf("failed transfer must not move funds: %+v", senderAcc)
	}
}

// TestNonceReplay verifies that replaying a transaction with the same nonce fails.
func TestNonceReplay(t *testing.T) {
	state := testutil.NewStateDB()
	exec := newExecutor(state)

	sender, _ := wallet.Generate()
	receiver, _ := wallet.Generate()
	_ = state.SetAccount(&core.Account{Address: sender.PubKey(), Balance: 1000})

	tx, err := sender.Transfer(chainID, receiver.PubKey(), 100, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	block := core.NewBlock(1, "0000", sender.PubKey(), nil)
	if err := exec.ExecuteTx(block, 0, tx); err != nil {
		t.Fatalf("first execution: %v", err)
	}
	if err := exec.ExecuteTx(block, 1, tx); err == nil {
		t.Fatal("replay with stale nonce should fail")
	}

	receiverAcc, _ := state.GetAccount(receiver.PubKey())
	if receiverAcc.Balance != 100 {
		t.Errorf("receiver balance: got %d want 100", receiverAcc.Balance)
	}
}
