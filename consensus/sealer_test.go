package consensus_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/kittychain/consensus"
	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/internal/testutil"
	"github.com/tolelom/kittychain/ledger"
	"github.com/tolelom/kittychain/storage"
	"github.com/tolelom/kittychain/vm"
	"github.com/tolelom/kittychain/wallet"

	_ "github.com/tolelom/kittychain/vm/modules/economy"
	_ "github.com/tolelom/kittychain/vm/modules/kitties"
)

const chainID = "kittychain-test"

type sealerHarness struct {
	state   *storage.StateDB
	bc      *core.Blockchain
	mempool *core.Mempool
	emitter *events.Emitter
	sealer  *consensus.Sealer
}

func newSealerHarness(t *testing.T) *sealerHarness {
	t.Helper()

	proposer, err := wallet.Generate()
	require.NoError(t, err)

	state := testutil.NewStateDB()
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	require.NoError(t, bc.Init())

	genesis := core.NewBlock(0, "", proposer.PubKey(), nil)
	genesis.Sign(proposer.PrivKey())
	require.NoError(t, bc.AddBlock(genesis))

	emitter := events.NewEmitter()
	params := ledger.Params{KittyPrice: 10, MaxOwned: 3, MaxKittyID: core.MaxKittyID}
	exec := vm.NewExecutor(state, emitter, params, nil, nil)
	mempool := core.NewMempool()

	return &sealerHarness{
		state:   state,
		bc:      bc,
		mempool: mempool,
		emitter: emitter,
		sealer:  consensus.New(chainID, 100, bc, state, mempool, exec, emitter, proposer.PrivKey()),
	}
}

func TestSealBlockEmptyPool(t *testing.T) {
	h := newSealerHarness(t)

	block, err := h.sealer.SealBlock()
	require.NoError(t, err)
	require.Nil(t, block, "no block without transactions")
	require.Equal(t, int64(0), h.bc.Height())
}

func TestSealBlockCommitsTransactions(t *testing.T) {
	h := newSealerHarness(t)

	alice, _ := wallet.Generate()
	require.NoError(t, h.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 100}))
	require.NoError(t, h.state.Commit())

	tx, err := alice.CreateKitty(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.mempool.Add(tx))

	var committed []events.Event
	h.emitter.Subscribe(events.EventBlockCommit, func(ev events.Event) {
		committed = append(committed, ev)
	})

	block, err := h.sealer.SealBlock()
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, int64(1), block.Header.Height)
	require.Len(t, block.Transactions, 1)
	require.NotEmpty(t, block.Header.StateRoot)

	require.Len(t, committed, 1)
	require.Equal(t, int64(1), committed[0].BlockHeight)

	require.Zero(t, h.mempool.Size(), "mined txs leave the pool")

	// The state write survived the commit.
	owner, err := h.state.KittyOwner(0)
	require.NoError(t, err)
	require.Equal(t, alice.PubKey(), owner)
}

func TestSealBlockSkipsFailingTx(t *testing.T) {
	h := newSealerHarness(t)

	alice, _ := wallet.Generate()
	poor, _ := wallet.Generate()
	require.NoError(t, h.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 100}))
	require.NoError(t, h.state.SetAccount(&core.Account{Address: poor.PubKey(), Balance: 1}))
	require.NoError(t, h.state.Commit())

	bad, err := poor.CreateKitty(chainID, 0, 0)
	require.NoError(t, err)
	good, err := alice.CreateKitty(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.mempool.Add(bad))
	require.NoError(t, h.mempool.Add(good))

	block, err := h.sealer.SealBlock()
	require.NoError(t, err)
	require.NotNil(t, block)

	// The failing tx was dropped, the good one mined.
	require.Len(t, block.Transactions, 1)
	require.Equal(t, good.ID, block.Transactions[0].ID)
	require.Zero(t, h.mempool.Size(), "rejected txs are dropped from the pool too")

	owner, err := h.state.KittyOwner(0)
	require.NoError(t, err)
	require.Equal(t, alice.PubKey(), owner)

	acc, _ := h.state.GetAccount(poor.PubKey())
	require.Equal(t, uint64(1), acc.Balance, "failed tx leaves no trace")
	require.Zero(t, acc.Reserved)
}

func TestSealBlockDropsCrossChainTx(t *testing.T) {
	h := newSealerHarness(t)

	alice, _ := wallet.Generate()
	require.NoError(t, h.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 100}))
	require.NoError(t, h.state.Commit())

	foreign, err := alice.CreateKitty("other-chain", 0, 0)
	require.NoError(t, err)
	require.NoError(t, h.mempool.Add(foreign))

	block, err := h.sealer.SealBlock()
	require.NoError(t, err)
	require.Nil(t, block, "a pool of only rejected txs seals nothing")
	require.Zero(t, h.mempool.Size())
}

// TestSealBlockConcurrentStateReads seals a run of blocks while other
// goroutines read the same state, the way the RPC handler and the
// offchain worker's nonce lookup do in the running node. Run with -race.
func TestSealBlockConcurrentStateReads(t *testing.T) {
	h := newSealerHarness(t)

	alice, _ := wallet.Generate()
	bob, _ := wallet.Generate()
	require.NoError(t, h.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 1000}))
	require.NoError(t, h.state.Commit())

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := h.state.GetAccount(alice.PubKey()); err != nil {
					t.Error(err)
					return
				}
				h.state.ComputeRoot()
			}
		}()
	}

	for nonce := uint64(0); nonce < 50; nonce++ {
		tx, err := alice.Transfer(chainID, bob.PubKey(), 1, nonce, 0)
		require.NoError(t, err)
		require.NoError(t, h.mempool.Add(tx))
		block, err := h.sealer.SealBlock()
		require.NoError(t, err)
		require.NotNil(t, block)
	}
	close(done)
	wg.Wait()

	acc, err := h.state.GetAccount(bob.PubKey())
	require.NoError(t, err)
	require.Equal(t, uint64(50), acc.Balance)
}

func TestSealBlockChainsBlocks(t *testing.T) {
	h := newSealerHarness(t)

	alice, _ := wallet.Generate()
	require.NoError(t, h.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 100}))
	require.NoError(t, h.state.Commit())

	tx1, _ := alice.CreateKitty(chainID, 0, 0)
	require.NoError(t, h.mempool.Add(tx1))
	b1, err := h.sealer.SealBlock()
	require.NoError(t, err)
	require.NotNil(t, b1)

	tx2, _ := alice.CreateKitty(chainID, 1, 0)
	require.NoError(t, h.mempool.Add(tx2))
	b2, err := h.sealer.SealBlock()
	require.NoError(t, err)
	require.NotNil(t, b2)

	require.Equal(t, b1.Hash, b2.Header.PrevHash)
	require.Equal(t, int64(2), h.bc.Height())
}
