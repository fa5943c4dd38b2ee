package events_test

import (
	"encoding/json"
	"testing"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/events"
)

func Test_PublishBlockConnectedDeliversAStructuredEventToSubscribers(t *testing.T) {
	evt := events.New()
	defer evt.Shutdown()

	ch := evt.Acquire("sub-1")
	defer evt.Release("sub-1")

	hash := chainmodel.Hash{1, 2, 3}
	events.PublishBlockConnected(evt, hash, 42)

	select {
	case msg := <-ch:
		var ce events.ChainEvent
		if err := json.Unmarshal([]byte(msg), &ce); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if ce.Kind != events.KindBlockConnected {
			t.Fatalf("got kind %q, want %q", ce.Kind, events.KindBlockConnected)
		}
		if ce.Hash != hash {
			t.Fatal("expected the event's hash to match the published hash")
		}
		if ce.Height != 42 {
			t.Fatalf("got height %d, want 42", ce.Height)
		}
	default:
		t.Fatal("expected a message to be waiting on the subscriber channel")
	}
}

func Test_PublishTxEvictedCarriesItsReason(t *testing.T) {
	evt := events.New()
	defer evt.Shutdown()

	ch := evt.Acquire("sub-1")
	defer evt.Release("sub-1")

	txid := chainmodel.Hash{9}
	events.PublishTxEvicted(evt, txid, "replaced-by-fee")

	msg := <-ch
	var ce events.ChainEvent
	if err := json.Unmarshal([]byte(msg), &ce); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ce.Kind != events.KindTxEvicted {
		t.Fatalf("got kind %q, want %q", ce.Kind, events.KindTxEvicted)
	}
	if ce.TxID != txid {
		t.Fatal("expected the event's txid to match the published txid")
	}
	if ce.Reason != "replaced-by-fee" {
		t.Fatalf("got reason %q, want replaced-by-fee", ce.Reason)
	}
}

func Test_PublishOnANilEventsValueIsANoOp(t *testing.T) {
	events.PublishTxAdmitted(nil, chainmodel.Hash{1})
}
