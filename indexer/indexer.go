// Package indexer maintains a secondary provenance index over committed
// kitty events, so observers can query the full history of an asset
// without replaying the chain.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tolelom/kittychain/core"
	"github.com/tolelom/kittychain/events"
	"github.com/tolelom/kittychain/storage"
)

const prefixKittyHistory = "idx:kitty:history:"

// HistoryEntry is one provenance record of a kitty's life.
type HistoryEntry struct {
	Event  string `json:"event"` // created | bred | transferred | updated
	Height int64  `json:"height"`
	TxID   string `json:"tx_id"`
	Owner  string `json:"owner,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Asset  uint32 `json:"asset,omitempty"`
}

// Indexer subscribes to chain events and appends provenance entries.
type Indexer struct {
	db  storage.DB
	log *slog.Logger
}

// New creates an Indexer backed by db and subscribes to kitty events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, log: slog.Default()}
	emitter.Subscribe(events.EventKittyCreated, idx.onBorn("created"))
	emitter.Subscribe(events.EventKittyBred, idx.onBorn("bred"))
	emitter.Subscribe(events.EventKittyTransferred, idx.onTransferred)
	emitter.Subscribe(events.EventKittyUpdated, idx.onUpdated)
	return idx
}

// GetKittyHistory returns the provenance entries for id, oldest first.
func (idx *Indexer) GetKittyHistory(id core.KittyID) ([]HistoryEntry, error) {
	data, err := idx.db.Get(historyKey(id))
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil // no history
	}
	if err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return entries, nil
}

// ---- event handlers ----

func (idx *Indexer) onBorn(event string) events.Handler {
	return func(ev events.Event) {
		id, ok := ev.Data["kitty_id"].(core.KittyID)
		if !ok {
			return
		}
		owner, _ := ev.Data["owner"].(string)
		idx.append(id, HistoryEntry{
			Event:  event,
			Height: ev.BlockHeight,
			TxID:   ev.TxID,
			Owner:  owner,
		})
	}
}

func (idx *Indexer) onTransferred(ev events.Event) {
	id, ok := ev.Data["kitty_id"].(core.KittyID)
	if !ok {
		return
	}
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	idx.append(id, HistoryEntry{
		Event:  "transferred",
		Height: ev.BlockHeight,
		TxID:   ev.TxID,
		From:   from,
		To:     to,
	})
}

func (idx *Indexer) onUpdated(ev events.Event) {
	id, ok := ev.Data["kitty_id"].(core.KittyID)
	if !ok {
		return
	}
	asset, _ := ev.Data["asset"].(uint32)
	idx.append(id, HistoryEntry{
		Event:  "updated",
		Height: ev.BlockHeight,
		TxID:   ev.TxID,
		Asset:  asset,
	})
}

// ---- helpers ----

func historyKey(id core.KittyID) []byte {
	return []byte(prefixKittyHistory + strconv.FormatUint(uint64(id), 10))
}

func (idx *Indexer) append(id core.KittyID, entry HistoryEntry) {
	entries, err := idx.GetKittyHistory(id)
	if err != nil {
		idx.log.Error("indexer read history", "kitty_id", id, "err", err)
		return
	}
	entries = append(entries, entry)
	data, err := json.Marshal(entries)
	if err != nil {
		idx.log.Error("indexer marshal history", "kitty_id", id, "err", err)
		return
	}
	if err := idx.db.Set(historyKey(id), data); err != nil {
		idx.log.Error("indexer write history", "kitty_id", id, "err", err)
	}
}
