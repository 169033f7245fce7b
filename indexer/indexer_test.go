package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/indexer"
	"github.com/tolelom/kittychain/internal/testutil"
)

func TestIndexerRecordsProvenance(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type:        events.EventKittyCreated,
		TxID:        "tx1",
		BlockHeight: 1,
		Data:        map[string]any{"kitty_id": core.KittyID(0), "owner": "alice"},
	})
	emitter.Emit(events.Event{
		Type:        events.EventKittyTransferred,
		TxID:        "tx2",
		BlockHeight: 2,
		Data:        map[string]any{"kitty_id": core.KittyID(0), "from": "alice", "to": "bob"},
	})
	emitter.Emit(events.Event{
		Type:        events.EventKittyUpdated,
		TxID:        "tx3",
		BlockHeight: 3,
		Data:        map[string]any{"kitty_id": core.KittyID(0), "asset": uint32(200)},
	})

	history, err := idx.GetKittyHistory(0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	require.Equal(t, "created", history[0].Event)
	require.Equal(t, "alice", history[0].Owner)
	require.Equal(t, int64(1), history[0].Height)

	require.Equal(t, "transferred", history[1].Event)
	require.Equal(t, "alice", history[1].From)
	require.Equal(t, "bob", history[1].To)

	require.Equal(t, "updated", history[2].Event)
	require.Equal(t, uint32(200), history[2].Asset)
}

func TestIndexerSeparatesKitties(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	emitter.Emit(events.Event{
		Type: events.EventKittyBred,
		TxID: "tx1",
		Data: map[string]any{"kitty_id": core.KittyID(5), "owner": "alice"},
	})

	history, err := idx.GetKittyHistory(5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "bred", history[0].Event)

	other, err := idx.GetKittyHistory(6)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestIndexerIgnoresMalformedEvents(t *testing.T) {
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)

	// Missing or mistyped kitty_id must not panic or write anything.
	emitter.Emit(events.Event{Type: events.EventKittyCreated, Data: map[string]any{}})
	emitter.Emit(events.Event{Type: events.EventKittyCreated, Data: map[string]any{"kitty_id": "zero"}})

	history, err := idx.GetKittyHistory(0)
	require.NoError(t, err)
	require.Empty(t, history)
}
