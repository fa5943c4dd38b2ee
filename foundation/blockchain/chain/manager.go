// Package chain implements the chain manager: the owner of the active
// tip, the header store, the height index, the set of known side
// branches, and the orphan pool of blocks whose parent has not yet
// arrived. It is the only code permitted to mutate utxo.Index and
// ledger.Ledger.
package chain

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/mempool"
	"github.com/carbonchain/node/foundation/blockchain/pow"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
	"github.com/carbonchain/node/foundation/blockchain/validation"
)

// EventHandler is called for every notable chain-manager event. It is a
// free-form printf-style hook rather than a typed channel, since the
// chain manager's callers (app layer, CLI) want operational logging
// here; the typed tx/block pub-sub used for subscriber notification is a
// separate concern layered on top (see foundation/events).
type EventHandler func(format string, args ...any)

// headerEntry is what the chain manager keeps about every header it has
// ever accepted, on the active chain or any side branch.
type headerEntry struct {
	Header chainmodel.BlockHeader
	Height uint32
	Work   *big.Int // cumulative work of this header and every ancestor
	Parent chainmodel.Hash
}

// appliedDiff is the utxo/ledger Diff pair a connected block produced,
// kept so disconnect can undo it exactly.
type appliedDiff struct {
	utxo   utxo.Diff
	ledger ledger.Diff
}

// Config bundles what Manager needs to start up: a genesis block already
// agreed on by the network, and the shared UTXO/ledger/mempool the whole
// node operates on.
type Config struct {
	Genesis        chainmodel.Block
	GenesisBits    uint32
	UTXO           *utxo.Index
	Ledger         *ledger.Ledger
	Mempool        *mempool.Mempool
	AddressVersion crypto.AddressVersion
	PoWAlgorithm   crypto.PoWAlgorithm
	EventHandler   EventHandler
}

// Manager owns the active chain, its header/block stores, and every
// side branch and orphan known to this node. A Manager value is
// explicit, owned state — no package-level singleton — so a process can
// run more than one chain (tests, multiple networks) side by side.
type Manager struct {
	mu sync.RWMutex

	utxo           *utxo.Index
	ledger         *ledger.Ledger
	mempool        *mempool.Mempool
	addressVersion crypto.AddressVersion
	powAlgorithm   crypto.PoWAlgorithm
	powLimit       *big.Int
	evHandler      EventHandler

	headers map[chainmodel.Hash]*headerEntry
	blocks  map[chainmodel.Hash]chainmodel.Block
	diffs   map[chainmodel.Hash]appliedDiff

	activeChain []chainmodel.Hash // activeChain[h] is the hash at height h
	tip         chainmodel.Hash

	orphans map[chainmodel.Hash][]chainmodel.Block // keyed by the missing parent hash
}

// New constructs a Manager seeded with cfg.Genesis, validating it through
// the ordinary header/block pipeline with no prior history (expected
// bits fixed at GenesisBits, median-time-past floor of zero).
func New(cfg Config) (*Manager, error) {
	ev := func(format string, args ...any) {
		if cfg.EventHandler != nil {
			cfg.EventHandler(format, args...)
		}
	}

	m := &Manager{
		utxo:           cfg.UTXO,
		ledger:         cfg.Ledger,
		mempool:        cfg.Mempool,
		addressVersion: cfg.AddressVersion,
		powAlgorithm:   cfg.PoWAlgorithm,
		powLimit:       pow.CompactToTarget(cfg.GenesisBits),
		evHandler:      ev,
		headers:        make(map[chainmodel.Hash]*headerEntry),
		blocks:         make(map[chainmodel.Hash]chainmodel.Block),
		diffs:          make(map[chainmodel.Hash]appliedDiff),
		orphans:        make(map[chainmodel.Hash][]chainmodel.Block),
	}

	hCtx := validation.HeaderContext{
		ExpectedBits:   cfg.GenesisBits,
		MedianTimePast: 0,
		Now:            uint32(time.Now().Unix()),
		PoWAlgorithm:   cfg.PoWAlgorithm,
	}
	if err := validation.ValidateHeader(cfg.Genesis.Header, hCtx); err != nil {
		return nil, err
	}

	hash := cfg.Genesis.Hash()
	entry := &headerEntry{
		Header: cfg.Genesis.Header,
		Height: 0,
		Work:   pow.Work(cfg.Genesis.Header.Bits),
		Parent: cfg.Genesis.Header.PrevHash,
	}
	m.headers[hash] = entry

	if err := m.connectLocked(cfg.Genesis, hash, entry); err != nil {
		return nil, err
	}

	return m, nil
}

// Tip returns the active chain's current tip hash and height.
func (m *Manager) Tip() (chainmodel.Hash, uint32) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tip, m.headers[m.tip].Height
}

// TipWork returns the active tip's cumulative proof-of-work, alongside
// Tip's height and hash the full state a caller needs to answer a
// tip() query.
func (m *Manager) TipWork() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return new(big.Int).Set(m.headers[m.tip].Work)
}

// GetHeader returns the header known under hash, from any branch.
func (m *Manager) GetHeader(hash chainmodel.Hash) (chainmodel.BlockHeader, uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.headers[hash]
	if !ok {
		return chainmodel.BlockHeader{}, 0, false
	}
	return e.Header, e.Height, true
}

// GetBlock returns the full block body known under hash, from any
// branch, if the manager has it.
func (m *Manager) GetBlock(hash chainmodel.Hash) (chainmodel.Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocks[hash]
	return b, ok
}

// BlockAtHeight returns the active chain's block at height, if any.
func (m *Manager) BlockAtHeight(height uint32) (chainmodel.Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if uint64(height) >= uint64(len(m.activeChain)) {
		return chainmodel.Block{}, false
	}
	return m.blocks[m.activeChain[height]], true
}

// ExpectedBits returns the bits a block extending the current active
// tip must carry, the value a miner needs before it can assemble a
// template the manager will go on to accept.
func (m *Manager) ExpectedBits() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.expectedBitsLocked(m.headers[m.tip])
}

// AcceptHeader runs Phase A against h and, on success, records it. A
// header whose parent is not yet known is rejected with
// chainerr.CodeUnknownParent rather than stored; it is the caller's job
// (or AcceptBlock's orphan handling) to retry once the parent arrives.
func (m *Manager) AcceptHeader(h chainmodel.BlockHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.acceptHeaderLocked(h)
	return err
}

func (m *Manager) acceptHeaderLocked(h chainmodel.BlockHeader) (*headerEntry, error) {
	hash := h.Hash()
	if e, exists := m.headers[hash]; exists {
		return e, nil
	}

	parent, ok := m.headers[h.PrevHash]
	if !ok {
		return nil, chainerr.New(chainerr.UnknownParent, chainerr.CodeUnknownParent, "parent header not yet known")
	}

	hCtx := validation.HeaderContext{
		ExpectedBits:   m.expectedBitsLocked(parent),
		MedianTimePast: m.medianTimePastLocked(parent),
		Now:            uint32(time.Now().Unix()),
		PoWAlgorithm:   m.powAlgorithm,
	}
	if err := validation.ValidateHeader(h, hCtx); err != nil {
		return nil, err
	}

	entry := &headerEntry{
		Header: h,
		Height: parent.Height + 1,
		Work:   new(big.Int).Add(parent.Work, pow.Work(h.Bits)),
		Parent: h.PrevHash,
	}
	m.headers[hash] = entry

	return entry, nil
}

// expectedBitsLocked computes the bits the header following parent must
// carry: unchanged between retarget boundaries, recomputed from the
// interval's first and last timestamp at one. This walks parent's own
// ancestry to find the interval's first header, so it only gives the
// exact answer for a header extending the chain parent itself sits on —
// acceptable since every caller of this function is immediately about
// to extend parent.
func (m *Manager) expectedBitsLocked(parent *headerEntry) uint32 {
	nextHeight := parent.Height + 1
	if nextHeight%genesis.RetargetInterval != 0 {
		return parent.Header.Bits
	}

	firstHeight := nextHeight - genesis.RetargetInterval
	first := m.ancestorAtHeightLocked(parent, firstHeight)
	if first == nil {
		return parent.Header.Bits
	}

	params := pow.Params{
		PowLimit:         m.powLimit,
		RetargetInterval: genesis.RetargetInterval,
		TargetBlockTime:  genesis.TargetBlockTime,
	}
	return pow.Retarget(params, parent.Header.Bits, first.Header.Timestamp, parent.Header.Timestamp)
}

// medianTimePastLocked returns the median timestamp of parent and its
// preceding 10 ancestors (11 total).
func (m *Manager) medianTimePastLocked(parent *headerEntry) uint32 {
	const window = 11

	timestamps := make([]uint32, 0, window)
	cur := parent
	for i := 0; i < window && cur != nil; i++ {
		timestamps = append(timestamps, cur.Header.Timestamp)
		cur = m.headers[cur.Parent]
	}

	return pow.MedianTimePast(timestamps)
}

// ancestorAtHeightLocked walks from start back to the given height via
// Parent pointers. Returns nil if the ancestry does not reach that far
// (e.g. near genesis, before enough history exists).
func (m *Manager) ancestorAtHeightLocked(start *headerEntry, height uint32) *headerEntry {
	cur := start
	for cur != nil && cur.Height > height {
		cur = m.headers[cur.Parent]
	}
	if cur == nil || cur.Height != height {
		return nil
	}
	return cur
}

// AcceptBlock validates b's header and, on success, either connects the
// block to the active tip (running full stateful validation at connect
// time via validation.ValidateBlock), files it as a side branch, or
// triggers a reorganisation if the side branch it joins now outweighs
// the active chain. A block whose parent is entirely unknown is stashed
// in the orphan pool and replayed once that parent is accepted.
func (m *Manager) AcceptBlock(b chainmodel.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.acceptBlockLocked(b)
}

func (m *Manager) acceptBlockLocked(b chainmodel.Block) error {
	hash := b.Header.Hash()
	if _, exists := m.blocks[hash]; exists {
		return nil
	}

	entry, err := m.acceptHeaderLocked(b.Header)
	if err != nil {
		if chainerr.HasCode(err, chainerr.CodeUnknownParent) {
			m.orphans[b.Header.PrevHash] = append(m.orphans[b.Header.PrevHash], b)
		}
		return err
	}

	if entry.Height != b.Height {
		return chainerr.Newf(chainerr.InvalidBlock, chainerr.CodeMalformedEncoding,
			"block declares height %d, chain position is %d", b.Height, entry.Height)
	}

	m.blocks[hash] = b

	if b.Header.PrevHash == m.tip {
		if err := m.connectLocked(b, hash, entry); err != nil {
			return err
		}
		m.processOrphansLocked(hash)
		return nil
	}

	tipEntry := m.headers[m.tip]
	if entry.Work.Cmp(tipEntry.Work) > 0 {
		if err := m.reorganiseLocked(hash); err != nil {
			return err
		}
	}

	m.processOrphansLocked(hash)
	return nil
}

// processOrphansLocked replays every block that was waiting on hash to
// become known, letting chains of orphans resolve as their ancestors
// arrive one at a time.
func (m *Manager) processOrphansLocked(hash chainmodel.Hash) {
	waiting, ok := m.orphans[hash]
	if !ok {
		return
	}
	delete(m.orphans, hash)

	for _, ob := range waiting {
		if err := m.acceptBlockLocked(ob); err != nil {
			m.evHandler("chain: orphan %s failed on replay: %s", ob.Hash(), err)
		}
	}
}

// connectLocked runs stateful validation against b and, on success,
// applies its effect to the UTXO index and ledger, advances the active
// tip, and tells the mempool. hash and entry are the caller's
// already-computed b.Header.Hash() and headerEntry, so callers walking a
// branch don't recompute either per block.
func (m *Manager) connectLocked(b chainmodel.Block, hash chainmodel.Hash, entry *headerEntry) error {
	ctx := validation.BlockContext{UTXO: m.utxo, Ledger: m.ledger, AddressVersion: m.addressVersion}

	utxoDiff, ledgerDiff, err := validation.ValidateBlock(b, ctx)
	if err != nil {
		return err
	}

	if err := m.utxo.Apply(utxoDiff); err != nil {
		return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, err.Error())
	}
	if err := m.ledger.Apply(ledgerDiff); err != nil {
		if undoErr := m.utxo.Undo(utxoDiff); undoErr != nil {
			return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent,
				fmt.Sprintf("ledger apply failed (%s) and utxo undo also failed: %s", err, undoErr))
		}
		return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, err.Error())
	}

	m.blocks[hash] = b
	m.diffs[hash] = appliedDiff{utxo: utxoDiff, ledger: ledgerDiff}

	if int(entry.Height) != len(m.activeChain) {
		return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, "connect called out of height order")
	}
	m.activeChain = append(m.activeChain, hash)
	m.tip = hash

	if m.mempool != nil {
		m.mempool.OnBlockConnected(b)
	}

	m.evHandler("chain: connected block %s at height %d", hash, entry.Height)

	return nil
}

// disconnectLocked reverses the top block of the active chain, undoing
// its ledger and UTXO effects and handing its non-coinbase transactions
// back to the mempool.
func (m *Manager) disconnectLocked() error {
	hash := m.tip
	entry := m.headers[hash]
	diff := m.diffs[hash]
	b := m.blocks[hash]

	if err := m.ledger.Undo(diff.ledger); err != nil {
		return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, err.Error())
	}
	if err := m.utxo.Undo(diff.utxo); err != nil {
		return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, err.Error())
	}

	delete(m.diffs, hash)
	m.activeChain = m.activeChain[:len(m.activeChain)-1]
	m.tip = entry.Parent

	if m.mempool != nil {
		m.mempool.OnBlockDisconnected(b)
	}

	m.evHandler("chain: disconnected block %s at height %d", hash, entry.Height)

	return nil
}

// isActiveLocked reports whether hash sits on the current active chain.
func (m *Manager) isActiveLocked(hash chainmodel.Hash) bool {
	e, ok := m.headers[hash]
	if !ok {
		return false
	}
	return uint64(e.Height) < uint64(len(m.activeChain)) && m.activeChain[e.Height] == hash
}

// branchFromActiveLocked walks back from tipHash to the first ancestor
// that sits on the active chain, returning that ancestor's hash plus the
// new branch's hashes in ancestor-to-tip order.
func (m *Manager) branchFromActiveLocked(tipHash chainmodel.Hash) (chainmodel.Hash, []chainmodel.Hash, error) {
	var branch []chainmodel.Hash

	cur := tipHash
	for !m.isActiveLocked(cur) {
		branch = append(branch, cur)

		e, ok := m.headers[cur]
		if !ok {
			return chainmodel.Hash{}, nil, chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, "branch ancestor missing from header store")
		}
		cur = e.Parent
	}

	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}

	return cur, branch, nil
}

// reorganiseLocked switches the active chain to the branch ending at
// newTip: disconnect from the current tip down to the common ancestor,
// then connect the new branch block by block. If any new-branch block
// fails to connect, every change made so far in this call is reverted
// and the active chain is left exactly as it was.
func (m *Manager) reorganiseLocked(newTip chainmodel.Hash) error {
	ancestor, newBranch, err := m.branchFromActiveLocked(newTip)
	if err != nil {
		return err
	}

	var disconnected []chainmodel.Hash // tip-first order, as disconnected
	for m.tip != ancestor {
		h := m.tip
		if err := m.disconnectLocked(); err != nil {
			return err // fatal: IntegrityFault, nothing sane left to revert to
		}
		disconnected = append(disconnected, h)
	}

	var connected []chainmodel.Hash // ancestor-to-tip order, as connected
	for _, h := range newBranch {
		b, ok := m.blocks[h]
		if !ok {
			m.revertReorgLocked(disconnected, connected)
			return chainerr.New(chainerr.IntegrityFault, chainerr.CodeStorageInconsistent, "new branch block body missing")
		}
		entry := m.headers[h]

		if err := m.connectLocked(b, h, entry); err != nil {
			m.revertReorgLocked(disconnected, connected)
			return err
		}
		connected = append(connected, h)
	}

	m.evHandler("chain: reorganised to tip %s at height %d", m.tip, m.headers[m.tip].Height)

	return nil
}

// revertReorgLocked undoes a partially-applied reorganisation: it
// disconnects whatever new-branch blocks were connected (newest first),
// then reconnects the old branch's blocks in their original order
// (oldest first), restoring the active chain exactly as it was before
// reorganiseLocked began.
func (m *Manager) revertReorgLocked(disconnected, connected []chainmodel.Hash) {
	for range connected {
		if err := m.disconnectLocked(); err != nil {
			m.evHandler("chain: FATAL: failed to unwind partial reorg: %s", err)
			return
		}
	}

	for i := len(disconnected) - 1; i >= 0; i-- {
		h := disconnected[i]
		b := m.blocks[h]
		entry := m.headers[h]
		if err := m.connectLocked(b, h, entry); err != nil {
			m.evHandler("chain: FATAL: failed to restore old branch during reorg revert: %s", err)
			return
		}
	}
}
