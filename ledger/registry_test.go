package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/internal/testutil"
	"github.com/tolelom/kittychain/ledger"
)

func testParams() ledger.Params {
	return ledger.Params{
		KittyPrice: 10,
		MaxOwned:   3,
		MaxKittyID: core.MaxKittyID,
	}
}

func TestRegistryIDAllocation(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	id, err := reg.NextID()
	require.NoError(t, err)
	require.Equal(t, core.KittyID(0), id, "counter starts at zero")

	require.NoError(t, reg.AdvanceID())
	id, err = reg.NextID()
	require.NoError(t, err)
	require.Equal(t, core.KittyID(1), id)
}

func TestRegistryIDOverflow(t *testing.T) {
	state := testutil.NewStateDB()
	p := testParams()
	p.MaxKittyID = 2
	reg := ledger.NewRegistry(state, p)

	require.NoError(t, state.SetNextKittyID(2))

	_, err := reg.NextID()
	require.ErrorIs(t, err, core.ErrKittyIDOverflow)
}

func TestRegistryGetMissing(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	_, err := reg.Get(42)
	require.ErrorIs(t, err, core.ErrInvalidKittyID)

	_, err = reg.OwnerOf(42)
	require.ErrorIs(t, err, core.ErrInvalidKittyID)
}

func TestRegistryInsertAndCapacity(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Insert(core.KittyID(i), &core.Kitty{}, "alice"))
	}

	err := reg.Insert(3, &core.Kitty{}, "alice")
	require.ErrorIs(t, err, core.ErrOwnTooManyKitties)

	// The fourth kitty was not written at all.
	_, err = reg.Get(3)
	require.ErrorIs(t, err, core.ErrInvalidKittyID)

	owned, err := reg.OwnedBy("alice")
	require.NoError(t, err)
	require.Equal(t, []core.KittyID{0, 1, 2}, owned)
}

func TestRegistryMoveOwnership(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	require.NoError(t, reg.Insert(0, &core.Kitty{}, "alice"))
	require.NoError(t, reg.Insert(1, &core.Kitty{}, "alice"))

	require.NoError(t, reg.MoveOwnership(0, "alice", "bob"))

	owner, err := reg.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, "bob", owner)

	aliceOwned, err := reg.OwnedBy("alice")
	require.NoError(t, err)
	require.Equal(t, []core.KittyID{1}, aliceOwned)

	bobOwned, err := reg.OwnedBy("bob")
	require.NoError(t, err)
	require.Equal(t, []core.KittyID{0}, bobOwned)
}

func TestRegistryMoveOwnershipNotOwner(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	require.NoError(t, reg.Insert(0, &core.Kitty{}, "alice"))

	err := reg.MoveOwnership(0, "bob", "carol")
	require.ErrorIs(t, err, core.ErrNotOwner)
}

func TestRegistryMoveOwnershipDestinationFull(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	require.NoError(t, reg.Insert(0, &core.Kitty{}, "alice"))
	for i := 1; i <= 3; i++ {
		require.NoError(t, reg.Insert(core.KittyID(i), &core.Kitty{}, "bob"))
	}

	err := reg.MoveOwnership(0, "alice", "bob")
	require.ErrorIs(t, err, core.ErrOwnTooManyKitties)
}

func TestRegistryMoveOwnershipToSelf(t *testing.T) {
	state := testutil.NewStateDB()
	reg := ledger.NewRegistry(state, testParams())

	// Fill alice to capacity; a self-transfer must still succeed.
	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Insert(core.KittyID(i), &core.Kitty{}, "alice"))
	}

	require.NoError(t, reg.MoveOwnership(1, "alice", "alice"))

	owned, err := reg.OwnedBy("alice")
	require.NoError(t, err)
	require.Equal(t, []core.KittyID{0, 1, 2}, owned)
}
