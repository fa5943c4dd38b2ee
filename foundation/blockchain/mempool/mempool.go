// Package mempool maintains the pool of transactions admitted but not
// yet mined, ordered by fee-rate for block assembly.
package mempool

import (
	"container/heap"
	"sync"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
	"github.com/carbonchain/node/foundation/blockchain/validation"
	"github.com/carbonchain/node/foundation/events"
)

// MinRelayFeeRate is the minimum fee-rate, in satoshi per serialized
// byte, a transaction must pay to be admitted. genesis.MinRelayFee is
// the companion absolute-fee floor.
const MinRelayFeeRate = 1

// Capacity bounds for the pool.
const (
	MaxTxCount = 10_000
	MaxBytes   = 300 * 1 << 20
)

// entry is one pooled transaction plus the bookkeeping the priority
// order and capacity eviction need.
type entry struct {
	tx          chainmodel.Transaction
	txid        chainmodel.Hash
	fee         uint64
	size        int
	feeRate     float64
	arrivalTime time.Time
	heapIndex   int
}

// Mempool is the node's single pool of admitted-but-unmined
// transactions. Like utxo.Index and ledger.Ledger it is shared between
// concurrent admission callers and the chain writer, but unlike them it
// serializes every access under one lock rather than reader/writer
// split, so admission and block-connect eviction never interleave.
type Mempool struct {
	mu sync.Mutex

	utxo           *utxo.Index
	ledger         *ledger.Ledger
	addressVersion crypto.AddressVersion
	evt            *events.Events

	byTxID     map[chainmodel.Hash]*entry
	spentBy    map[chainmodel.OutPoint]chainmodel.Hash
	certByID   map[string]chainmodel.Hash
	pq         priorityQueue
	totalBytes int
}

// New constructs an empty mempool backed by idx and lgr for admission
// checks. evt may be nil; if given, admitted/evicted transactions are
// announced on it as tx_admitted/tx_evicted events.
func New(idx *utxo.Index, lgr *ledger.Ledger, addressVersion crypto.AddressVersion, evt *events.Events) *Mempool {
	return &Mempool{
		utxo:           idx,
		ledger:         lgr,
		addressVersion: addressVersion,
		evt:            evt,
		byTxID:         make(map[chainmodel.Hash]*entry),
		spentBy:        make(map[chainmodel.OutPoint]chainmodel.Hash),
		certByID:       make(map[string]chainmodel.Hash),
	}
}

// Count returns the number of pooled transactions.
func (mp *Mempool) Count() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return len(mp.byTxID)
}

// Bytes returns the pool's total serialized size.
func (mp *Mempool) Bytes() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.totalBytes
}

// Has reports whether txid is currently pooled.
func (mp *Mempool) Has(txid chainmodel.Hash) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	_, ok := mp.byTxID[txid]
	return ok
}

// Admit runs the pool's admission policy against tx: Phase B and Phase C
// against the live UTXO/ledger, no double-spend against the pool
// (subject to Replace-By-Fee), no second ASSIGN_CERT claiming a
// certificate_id another pooled transaction already claims, and the
// relay fee floors. On success it returns the transaction's fee and
// pools it, evicting the lowest fee-rate entries if capacity is now
// exceeded.
func (mp *Mempool) Admit(tx chainmodel.Transaction) (uint64, error) {
	txid := tx.TxID()

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if existing, ok := mp.byTxID[txid]; ok {
		return existing.fee, nil
	}

	fee, _, _, err := validation.ValidateTransactionAgainstChain(tx, mp.utxo, mp.ledger, mp.addressVersion)
	if err != nil {
		return 0, err
	}

	size := len(tx.Serialize())
	feeRate := float64(fee) / float64(size)

	if fee < genesis.MinRelayFee || feeRate < MinRelayFeeRate {
		return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeFeeTooLow,
			"fee %d (rate %.2f sat/byte) is below the relay minimum", fee, feeRate)
	}

	conflicts := mp.conflictingEntries(tx)

	if tx.Kind == chainmodel.AssignCert {
		certID := tx.Metadata[validation.MetaCertID]
		if pooledTxID, ok := mp.certByID[certID]; ok && pooledTxID != txid && !entriesContainTxID(conflicts, pooledTxID) {
			return 0, chainerr.Newf(chainerr.Conflict, chainerr.CodeCertIDReused,
				"certificate_id %s is already claimed by a pooled transaction", certID)
		}
	}

	if len(conflicts) > 0 {
		var replacedFee uint64
		for _, c := range conflicts {
			replacedFee += c.fee
		}

		required := replacedFee + MinRelayFeeRate*uint64(size)
		if fee <= replacedFee || fee < required {
			return 0, chainerr.Newf(chainerr.Conflict, chainerr.CodeRBFUnderbid,
				"replacement fee %d does not exceed the replaced set's fee %d by the relay minimum", fee, replacedFee)
		}

		for _, c := range conflicts {
			mp.removeLocked(c, "replaced by fee")
		}
	}

	e := &entry{
		tx:          tx,
		txid:        txid,
		fee:         fee,
		size:        size,
		feeRate:     feeRate,
		arrivalTime: time.Now(),
	}
	mp.insertLocked(e)

	mp.evictToCapacityLocked()

	events.PublishTxAdmitted(mp.evt, txid)

	return fee, nil
}

// conflictingEntries returns the distinct pooled entries that share at
// least one input OutPoint with tx.
func (mp *Mempool) conflictingEntries(tx chainmodel.Transaction) []*entry {
	seen := make(map[chainmodel.Hash]*entry)
	for _, in := range tx.Inputs {
		if conflictTxID, ok := mp.spentBy[in.Prev]; ok {
			if e, pooled := mp.byTxID[conflictTxID]; pooled {
				seen[conflictTxID] = e
			}
		}
	}

	conflicts := make([]*entry, 0, len(seen))
	for _, e := range seen {
		conflicts = append(conflicts, e)
	}
	return conflicts
}

// entriesContainTxID reports whether txid is one of entries.
func entriesContainTxID(entries []*entry, txid chainmodel.Hash) bool {
	for _, e := range entries {
		if e.txid == txid {
			return true
		}
	}
	return false
}

func (mp *Mempool) insertLocked(e *entry) {
	mp.byTxID[e.txid] = e
	for _, in := range e.tx.Inputs {
		mp.spentBy[in.Prev] = e.txid
	}
	if e.tx.Kind == chainmodel.AssignCert {
		mp.certByID[e.tx.Metadata[validation.MetaCertID]] = e.txid
	}
	mp.totalBytes += e.size
	heap.Push(&mp.pq, e)
}

func (mp *Mempool) removeLocked(e *entry, reason string) {
	delete(mp.byTxID, e.txid)
	for _, in := range e.tx.Inputs {
		if mp.spentBy[in.Prev] == e.txid {
			delete(mp.spentBy, in.Prev)
		}
	}
	if e.tx.Kind == chainmodel.AssignCert {
		certID := e.tx.Metadata[validation.MetaCertID]
		if mp.certByID[certID] == e.txid {
			delete(mp.certByID, certID)
		}
	}
	mp.totalBytes -= e.size
	if e.heapIndex >= 0 && e.heapIndex < len(mp.pq) && mp.pq[e.heapIndex] == e {
		heap.Remove(&mp.pq, e.heapIndex)
	}

	events.PublishTxEvicted(mp.evt, e.txid, reason)
}

// evictToCapacityLocked drops the lowest fee-rate entries until the pool
// is back within MaxTxCount and MaxBytes.
func (mp *Mempool) evictToCapacityLocked() {
	for len(mp.byTxID) > MaxTxCount || mp.totalBytes > MaxBytes {
		victim := mp.lowestFeeRateLocked()
		if victim == nil {
			return
		}
		mp.removeLocked(victim, "evicted for capacity")
	}
}

func (mp *Mempool) lowestFeeRateLocked() *entry {
	var victim *entry
	for _, e := range mp.pq {
		if victim == nil || e.feeRate < victim.feeRate {
			victim = e
		}
	}
	return victim
}

// Fee returns the fee a pooled transaction pays, if it is still pooled —
// the miner needs this alongside PickBest's selection to size a block
// template's coinbase reward without re-deriving every fee itself.
func (mp *Mempool) Fee(txid chainmodel.Hash) (uint64, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	e, ok := mp.byTxID[txid]
	if !ok {
		return 0, false
	}
	return e.fee, true
}

// Delete removes txid from the pool without ceremony, used when a
// transaction is included in a connected block.
func (mp *Mempool) Delete(txid chainmodel.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if e, ok := mp.byTxID[txid]; ok {
		mp.removeLocked(e, "included in block")
	}
}

// feeRateItem is a value-type (not pointer) scratch entry for the
// fee-rate heap PickBest builds per call: since picking is read-only
// with respect to the pool, it must not alias the live entries whose
// heapIndex fields priorityQueue's Swap mutates.
type feeRateItem struct {
	txid    chainmodel.Hash
	tx      chainmodel.Transaction
	feeRate float64
}

type feeRateHeap []feeRateItem

func (h feeRateHeap) Len() int            { return len(h) }
func (h feeRateHeap) Less(i, j int) bool  { return h[i].feeRate > h[j].feeRate }
func (h feeRateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *feeRateHeap) Push(x any)         { *h = append(*h, x.(feeRateItem)) }
func (h *feeRateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PickBest drains up to howMany pooled transactions in descending
// fee-rate order, respecting that a transaction spending another
// pooled transaction's output must not be picked before it (in-block
// dependency ordering). Pass -1 for every pooled transaction.
func (mp *Mempool) PickBest(howMany int) []chainmodel.Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if howMany < 0 || howMany > len(mp.byTxID) {
		howMany = len(mp.byTxID)
	}

	h := make(feeRateHeap, 0, len(mp.byTxID))
	for _, e := range mp.byTxID {
		h = append(h, feeRateItem{txid: e.txid, tx: e.tx, feeRate: e.feeRate})
	}
	heap.Init(&h)

	created := make(map[chainmodel.OutPoint]bool)
	var picked []chainmodel.Transaction
	var deferred []feeRateItem

	for len(picked) < howMany && len(h) > 0 {
		item := heap.Pop(&h).(feeRateItem)

		if dependsOnUnpicked(item.tx, created, mp.byTxID) {
			deferred = append(deferred, item)
			continue
		}

		picked = append(picked, item.tx)
		for i := range item.tx.Outputs {
			created[chainmodel.OutPoint{TxID: item.txid, Index: uint32(i)}] = true
		}

		for _, d := range deferred {
			heap.Push(&h, d)
		}
		deferred = deferred[:0]
	}

	return picked
}

// dependsOnUnpicked reports whether tx spends an OutPoint produced by
// another still-pooled transaction that has not yet been added to
// created.
func dependsOnUnpicked(tx chainmodel.Transaction, created map[chainmodel.OutPoint]bool, pool map[chainmodel.Hash]*entry) bool {
	for _, in := range tx.Inputs {
		if _, ok := pool[in.Prev.TxID]; ok && !created[in.Prev] {
			return true
		}
	}
	return false
}

// OnBlockConnected removes the block's transactions from the pool, then
// re-validates every remaining pooled transaction against the
// now-advanced UTXO/ledger, dropping any that no longer apply (spent
// inputs, now-reused certificate ids, and so on).
func (mp *Mempool) OnBlockConnected(block chainmodel.Block) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range block.Transactions {
		delete(mp.byTxID, tx.TxID())
	}
	mp.rebuildIndexesLocked()

	for _, e := range mp.snapshotEntriesLocked() {
		if _, _, _, err := validation.ValidateTransactionAgainstChain(e.tx, mp.utxo, mp.ledger, mp.addressVersion); err != nil {
			mp.removeLocked(e, "no longer valid after block connect")
		}
	}
}

// OnBlockDisconnected re-admits a disconnected block's non-coinbase
// transactions, subject to the ordinary admission rules; any that fail
// (for example because their inputs were spent elsewhere in the
// meantime) are simply dropped rather than reported as an error.
func (mp *Mempool) OnBlockDisconnected(block chainmodel.Block) {
	for _, tx := range block.Transactions {
		if tx.Kind == chainmodel.Coinbase {
			continue
		}
		_, _ = mp.Admit(tx)
	}
}

// rebuildIndexesLocked recomputes spentBy/totalBytes/pq from byTxID,
// used after a bulk removal (block connect) where patching each index
// incrementally would be no cheaper.
func (mp *Mempool) rebuildIndexesLocked() {
	mp.spentBy = make(map[chainmodel.OutPoint]chainmodel.Hash, len(mp.byTxID))
	mp.certByID = make(map[string]chainmodel.Hash, len(mp.byTxID))
	mp.totalBytes = 0
	mp.pq = make(priorityQueue, 0, len(mp.byTxID))

	for txid, e := range mp.byTxID {
		for _, in := range e.tx.Inputs {
			mp.spentBy[in.Prev] = txid
		}
		if e.tx.Kind == chainmodel.AssignCert {
			mp.certByID[e.tx.Metadata[validation.MetaCertID]] = txid
		}
		mp.totalBytes += e.size
		e.heapIndex = len(mp.pq)
		mp.pq = append(mp.pq, e)
	}
	heap.Init(&mp.pq)
}

func (mp *Mempool) snapshotEntriesLocked() []*entry {
	entries := make([]*entry, 0, len(mp.byTxID))
	for _, e := range mp.byTxID {
		entries = append(entries, e)
	}
	return entries
}
