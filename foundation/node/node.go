// Package node binds the storage collaborator, the UTXO index, the
// certificate/project ledger, the mempool, and the chain manager into
// the stable query surface a caller needs: tip, get_block, get_tx,
// get_utxo, balance, utxos, certificate, project, mempool_info,
// submit_tx, submit_block. A Node value is explicit, owned state — no
// package-level singleton — so a process can run more than one node
// side by side.
package node

import (
	"math/big"
	"sync"

	"github.com/carbonchain/node/foundation/blockchain/chain"
	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/mempool"
	"github.com/carbonchain/node/foundation/blockchain/storage"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
	"github.com/carbonchain/node/foundation/events"
)

// LogFunc is the free-form operational log sink threaded through to the
// chain manager.
type LogFunc func(format string, args ...any)

// Config bundles what a Node needs to start: the genesis block and
// network bits it was agreed to run with, the external storage
// collaborator, and the log/event sinks.
type Config struct {
	Genesis        chainmodel.Block
	GenesisBits    uint32
	AddressVersion crypto.AddressVersion
	PoWAlgorithm   crypto.PoWAlgorithm
	Store          storage.Store
	Events         *events.Events
	Log            LogFunc
}

// MempoolInfo answers the mempool_info() query.
type MempoolInfo struct {
	Count int `json:"count"`
	Bytes int `json:"bytes"`
}

// TipInfo answers the tip() query: height, hash, and cumulative work.
type TipInfo struct {
	Height         uint32          `json:"height"`
	Hash           chainmodel.Hash `json:"hash"`
	CumulativeWork *big.Int        `json:"cumulative_work"`
}

// Node is the binding described at package level. Every field is
// unexported; callers only ever see the query/command methods below.
type Node struct {
	mu sync.Mutex

	store storage.Store
	evts  *events.Events
	log   LogFunc

	utxoIdx *utxo.Index
	ledger  *ledger.Ledger
	mempool *mempool.Mempool
	chain   *chain.Manager

	addressVersion crypto.AddressVersion

	// indexedHash records, for every height this Node has persisted to
	// store and added to the txid index, which block hash occupies it —
	// the state submitBlock's reconciliation pass diffs against to find
	// where a reorg diverges from what was last indexed.
	indexedHash map[uint32]chainmodel.Hash
}

// New constructs a Node seeded with cfg.Genesis. Genesis is validated,
// connected, and indexed before New returns.
func New(cfg Config) (*Node, error) {
	logf := func(format string, args ...any) {
		if cfg.Log != nil {
			cfg.Log(format, args...)
		}
	}

	idx := utxo.New()
	lgr := ledger.New()
	mp := mempool.New(idx, lgr, cfg.AddressVersion, cfg.Events)

	mgr, err := chain.New(chain.Config{
		Genesis:        cfg.Genesis,
		GenesisBits:    cfg.GenesisBits,
		UTXO:           idx,
		Ledger:         lgr,
		Mempool:        mp,
		AddressVersion: cfg.AddressVersion,
		PoWAlgorithm:   cfg.PoWAlgorithm,
		EventHandler:   chain.EventHandler(logf),
	})
	if err != nil {
		return nil, err
	}

	n := &Node{
		store:          cfg.Store,
		evts:           cfg.Events,
		log:            logf,
		utxoIdx:        idx,
		ledger:         lgr,
		mempool:        mp,
		chain:          mgr,
		addressVersion: cfg.AddressVersion,
		indexedHash:    make(map[uint32]chainmodel.Hash),
	}

	if err := n.indexHeightLocked(0, cfg.Genesis); err != nil {
		return nil, err
	}

	return n, nil
}

// Tip answers the tip() query.
func (n *Node) Tip() TipInfo {
	hash, height := n.chain.Tip()
	return TipInfo{Height: height, Hash: hash, CumulativeWork: n.chain.TipWork()}
}

// GetBlockByHeight answers get_block(height).
func (n *Node) GetBlockByHeight(height uint32) (chainmodel.Block, bool) {
	return n.chain.BlockAtHeight(height)
}

// GetBlockByHash answers get_block(hash).
func (n *Node) GetBlockByHash(hash chainmodel.Hash) (chainmodel.Block, bool) {
	return n.chain.GetBlock(hash)
}

// GetTx answers get_tx(txid): a point lookup through the storage
// collaborator's tx_by_id index, populated as each block is indexed.
func (n *Node) GetTx(txid chainmodel.Hash) (chainmodel.Transaction, bool) {
	b, err := n.store.Get(storage.TxByIDKey(txid))
	if err != nil {
		return chainmodel.Transaction{}, false
	}

	tx, err := chainmodel.DeserializeTransaction(b)
	if err != nil {
		return chainmodel.Transaction{}, false
	}
	return tx, true
}

// GetUTXO answers get_utxo(OutPoint).
func (n *Node) GetUTXO(op chainmodel.OutPoint) (chainmodel.TxOutput, bool) {
	return n.utxoIdx.Get(op)
}

// Balance answers balance(address).
func (n *Node) Balance(address string) uint64 {
	return n.utxoIdx.Balance(address)
}

// UTXOs answers utxos(address).
func (n *Node) UTXOs(address string) []chainmodel.OutPoint {
	return n.utxoIdx.UTXOsOf(address)
}

// Certificate answers certificate(id).
func (n *Node) Certificate(id string) (ledger.Certificate, bool) {
	return n.ledger.Certificate(id)
}

// Project answers project(id).
func (n *Node) Project(id string) (ledger.Project, bool) {
	return n.ledger.Project(id)
}

// MempoolInfo answers mempool_info().
func (n *Node) MempoolInfo() MempoolInfo {
	return MempoolInfo{Count: n.mempool.Count(), Bytes: n.mempool.Bytes()}
}

// Mempool exposes the underlying mempool for collaborators (the miner,
// the wallet's fee estimator) that need more than the summary
// MempoolInfo gives.
func (n *Node) Mempool() *mempool.Mempool {
	return n.mempool
}

// Chain exposes the underlying chain manager for collaborators (the
// miner's template loop) that need to observe tip advancement directly.
func (n *Node) Chain() *chain.Manager {
	return n.chain
}

// SubmitTx answers submit_tx(bytes): decode, admit to the mempool, and
// return the resulting txid on success.
func (n *Node) SubmitTx(raw []byte) (chainmodel.Hash, error) {
	tx, err := chainmodel.DeserializeTransaction(raw)
	if err != nil {
		return chainmodel.Hash{}, chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, err.Error())
	}

	if _, err := n.mempool.Admit(tx); err != nil {
		return chainmodel.Hash{}, err
	}

	return tx.TxID(), nil
}

// SubmitBlock answers submit_block(bytes): decode, hand to the chain
// manager, and on a successful connect (direct or via orphan replay),
// reconcile the storage-backed indices to match the new active chain.
func (n *Node) SubmitBlock(raw []byte) error {
	block, err := chainmodel.DeserializeBlock(raw)
	if err != nil {
		return chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, err.Error())
	}

	if err := n.chain.AcceptBlock(block); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	return n.syncIndexLocked()
}

// syncIndexLocked reconciles indexedHash (and the storage-backed
// block/tx indices derived from it) with the chain manager's current
// active chain. It walks down from the lower of the previously indexed
// height and the new tip height until it finds a height whose indexed
// hash still matches the active chain (the common ancestor after a
// reorg, or simply the previous tip after a plain extension), unindexing
// every height above that point, then indexes every height from there
// up to the new tip.
func (n *Node) syncIndexLocked() error {
	_, tipHeight := n.chain.Tip()

	h := n.maxIndexedHeightLocked()
	if tipHeight < h {
		h = tipHeight
	}

	for h > 0 {
		activeBlock, ok := n.chain.BlockAtHeight(h)
		if ok && n.indexedHash[h] == activeBlock.Hash() {
			break
		}
		if err := n.unindexHeightLocked(h); err != nil {
			return err
		}
		h--
	}

	for height := h + 1; height <= tipHeight; height++ {
		block, ok := n.chain.BlockAtHeight(height)
		if !ok {
			break
		}
		if err := n.indexHeightLocked(height, block); err != nil {
			return err
		}
	}

	return nil
}

func (n *Node) maxIndexedHeightLocked() uint32 {
	var max uint32
	for h := range n.indexedHash {
		if h > max {
			max = h
		}
	}
	return max
}

func (n *Node) indexHeightLocked(height uint32, block chainmodel.Block) error {
	hash := block.Hash()

	batch := n.store.NewBatch()
	batch.Put(storage.BlockByHeightKey(height), hash[:])
	batch.Put(storage.BlockByHashKey(hash), block.Serialize())
	for _, tx := range block.Transactions {
		batch.Put(storage.TxByIDKey(tx.TxID()), tx.Serialize())
	}

	if err := n.store.WriteBatch(batch); err != nil {
		return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, err.Error())
	}

	n.indexedHash[height] = hash
	events.PublishBlockConnected(n.evts, hash, height)
	n.log("node: indexed block %s at height %d", hash, height)

	return nil
}

func (n *Node) unindexHeightLocked(height uint32) error {
	oldHash, ok := n.indexedHash[height]
	if !ok {
		return nil
	}

	if block, ok := n.chain.GetBlock(oldHash); ok {
		batch := n.store.NewBatch()
		batch.Delete(storage.BlockByHeightKey(height))
		batch.Delete(storage.BlockByHashKey(oldHash))
		for _, tx := range block.Transactions {
			batch.Delete(storage.TxByIDKey(tx.TxID()))
		}
		if err := n.store.WriteBatch(batch); err != nil {
			return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, err.Error())
		}
	}

	delete(n.indexedHash, height)
	events.PublishBlockDisconnected(n.evts, oldHash, height)
	n.log("node: unindexed block %s at height %d", oldHash, height)

	return nil
}
