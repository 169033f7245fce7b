package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/internal/testutil"
	"github.com/tolelom/kittychain/ledger"
)

func TestEscrowReserveMovesFunds(t *testing.T) {
	state := testutil.NewStateDB()
	esc := ledger.NewEscrow(state)

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 100}))

	ok, err := esc.CanReserve("alice", 10)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, esc.Reserve("alice", 10))

	acc, err := state.GetAccount("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(90), acc.Balance)
	require.Equal(t, uint64(10), acc.Reserved)
}

func TestEscrowReserveInsufficient(t *testing.T) {
	state := testutil.NewStateDB()
	esc := ledger.NewEscrow(state)

	require.NoError(t, state.SetAccount(&core.Account{Address: "bob", Balance: 1}))

	ok, err := esc.CanReserve("bob", 10)
	require.NoError(t, err)
	require.False(t, ok)

	err = esc.Reserve("bob", 10)
	require.ErrorIs(t, err, core.ErrInsufficientFunds)

	// Nothing moved.
	acc, err := state.GetAccount("bob")
	require.NoError(t, err)
	require.Equal(t, uint64(1), acc.Balance)
	require.Equal(t, uint64(0), acc.Reserved)
}

func TestEscrowConservation(t *testing.T) {
	state := testutil.NewStateDB()
	esc := ledger.NewEscrow(state)

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 100}))

	for _, amount := range []uint64{10, 25, 40} {
		require.NoError(t, esc.Reserve("alice", amount))
	}
	require.NoError(t, esc.Unreserve("alice", 25))

	acc, err := state.GetAccount("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(100), acc.Balance+acc.Reserved,
		"reserve/unreserve must conserve total funds")
	require.Equal(t, uint64(50), acc.Reserved)
}

func TestEscrowUnreserveClampsAtZero(t *testing.T) {
	state := testutil.NewStateDB()
	esc := ledger.NewEscrow(state)

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 90, Reserved: 10}))

	// Releasing more than is reserved releases only what is there.
	require.NoError(t, esc.Unreserve("alice", 50))

	acc, err := state.GetAccount("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(100), acc.Balance)
	require.Equal(t, uint64(0), acc.Reserved)
}

func TestEscrowUnknownAccount(t *testing.T) {
	state := testutil.NewStateDB()
	esc := ledger.NewEscrow(state)

	// Fresh accounts have zero balance, so reserving fails but asking
	// does not error.
	ok, err := esc.CanReserve("nobody", 1)
	require.NoError(t, err)
	require.False(t, ok)

	reserved, err := esc.ReservedBalance("nobody")
	require.NoError(t, err)
	require.Zero(t, reserved)
}
