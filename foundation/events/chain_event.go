package events

import (
	"encoding/json"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
)

// Kind names one of the structured, fire-and-forget event types the
// node emits, distinct from the free-form log lines
// chain.EventHandler/mempool's notify/miner.EventHandler already send
// through Events.Send for the debug log stream.
type Kind string

// The four event kinds a subscriber can receive.
const (
	KindBlockConnected    Kind = "block_connected"
	KindBlockDisconnected Kind = "block_disconnected"
	KindTxAdmitted        Kind = "tx_admitted"
	KindTxEvicted         Kind = "tx_evicted"
)

// ChainEvent is the structured payload published for one of the four
// named kinds. Only the fields relevant to Kind are populated; a
// block_connected/disconnected event carries Hash+Height, a
// tx_admitted/evicted event carries TxID (+Reason for eviction).
type ChainEvent struct {
	Kind   Kind            `json:"kind"`
	Hash   chainmodel.Hash `json:"hash,omitempty"`
	Height uint32          `json:"height,omitempty"`
	TxID   chainmodel.Hash `json:"txid,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// PublishBlockConnected sends a block_connected event over evt's existing
// string channels, so it reaches the same websocket clients the raw log
// lines do. A marshal failure is swallowed rather than propagated: a
// chain writer must never fail a block connect because a downstream
// event encoding broke.
func PublishBlockConnected(evt *Events, hash chainmodel.Hash, height uint32) {
	publish(evt, ChainEvent{Kind: KindBlockConnected, Hash: hash, Height: height})
}

// PublishBlockDisconnected sends a block_disconnected event, emitted for
// every block a reorg or truncation removes from the active chain.
func PublishBlockDisconnected(evt *Events, hash chainmodel.Hash, height uint32) {
	publish(evt, ChainEvent{Kind: KindBlockDisconnected, Hash: hash, Height: height})
}

// PublishTxAdmitted sends a tx_admitted event for a transaction the
// mempool just accepted.
func PublishTxAdmitted(evt *Events, txid chainmodel.Hash) {
	publish(evt, ChainEvent{Kind: KindTxAdmitted, TxID: txid})
}

// PublishTxEvicted sends a tx_evicted event for a transaction the
// mempool dropped, naming why (the mempool passes "replaced by fee",
// "evicted for capacity", "included in block", or "no longer valid after
// block connect").
func PublishTxEvicted(evt *Events, txid chainmodel.Hash, reason string) {
	publish(evt, ChainEvent{Kind: KindTxEvicted, TxID: txid, Reason: reason})
}

func publish(evt *Events, ce ChainEvent) {
	if evt == nil {
		return
	}

	b, err := json.Marshal(ce)
	if err != nil {
		return
	}
	evt.Send(string(b))
}
