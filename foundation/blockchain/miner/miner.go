// Package miner assembles block templates from the mempool and searches
// for a nonce satisfying the active target.
package miner

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/carbonchain/node/foundation/blockchain/mempool"
	"github.com/carbonchain/node/foundation/blockchain/pow"
)

// EventHandler is called for mining progress and outcome, mirroring the
// chain manager's free-form logging shape.
type EventHandler func(format string, args ...any)

// Config bundles what a Miner needs: the mempool to draw transactions
// from and the address its coinbase reward pays to.
type Config struct {
	Mempool            *mempool.Mempool
	BeneficiaryAddress string
	PoWAlgorithm       crypto.PoWAlgorithm
	EventHandler       EventHandler
}

// Miner assembles templates and searches nonces for one beneficiary
// address. Like chain.Manager, it is explicit owned state, not a
// singleton — a node can run more than one in principle (e.g. tests
// racing two templates), though ordinarily exactly one search runs
// active at a time per node.
type Miner struct {
	mempool      *mempool.Mempool
	beneficiary  string
	powAlgorithm crypto.PoWAlgorithm
	evHandler    EventHandler
}

// New constructs a Miner from cfg.
func New(cfg Config) *Miner {
	ev := func(format string, args ...any) {
		if cfg.EventHandler != nil {
			cfg.EventHandler(format, args...)
		}
	}

	return &Miner{
		mempool:      cfg.Mempool,
		beneficiary:  cfg.BeneficiaryAddress,
		powAlgorithm: cfg.PoWAlgorithm,
		evHandler:    ev,
	}
}

// AssembleTemplate picks the best-paying, dependency-ordered mempool
// transactions that fit within the node's per-block limits, builds the
// coinbase paying itself subsidy(height)+Σfees, and returns an unmined
// block: header complete except for Nonce, which Mine searches.
func (mnr *Miner) AssembleTemplate(prevHash chainmodel.Hash, height uint32, bits uint32) (chainmodel.Block, error) {
	candidates := mnr.mempool.PickBest(-1)

	coinbase := chainmodel.Transaction{
		Version: chainmodel.TransactionVersion,
		Kind:    chainmodel.Coinbase,
		Inputs:  []chainmodel.TxInput{chainmodel.NewCoinbaseInput(uint64(height))},
	}

	txs := make([]chainmodel.Transaction, 0, len(candidates)+1)
	txs = append(txs, coinbase)

	budget := genesis.MaxBlockBytes - len(coinbase.Serialize())
	var totalFees uint64
	var included int

	for _, tx := range candidates {
		if included >= genesis.MaxTxsPerBlock-1 {
			mnr.evHandler("miner: AssembleTemplate: stopped at MaxTxsPerBlock-1, %d candidates left unpicked", len(candidates)-included)
			break
		}

		size := len(tx.Serialize())
		if size > budget {
			continue
		}

		fee, ok := mnr.mempool.Fee(tx.TxID())
		if !ok {
			// Evicted between PickBest and here; skip rather than fail
			// the whole template.
			continue
		}

		txs = append(txs, tx)
		budget -= size
		totalFees += fee
		included++
	}

	coinbase.Outputs = []chainmodel.TxOutput{{
		Amount:    genesis.Subsidy(uint64(height)) + totalFees,
		Address:   mnr.beneficiary,
		CoinState: chainmodel.Spendable,
	}}
	txs[0] = coinbase

	block := chainmodel.Block{
		Header: chainmodel.BlockHeader{
			Version:   chainmodel.BlockVersion,
			PrevHash:  prevHash,
			Timestamp: uint32(time.Now().Unix()),
			Bits:      bits,
		},
		Height:       height,
		Transactions: txs,
	}

	tree, err := block.MerkleTree()
	if err != nil {
		return chainmodel.Block{}, err
	}
	copy(block.Header.MerkleRoot[:], tree.MerkleRoot)

	return block, nil
}

// Mine searches for a nonce making block's header hash meet its target,
// starting from a random point rather than always from zero. It checks
// ctx for cancellation
// periodically and after the search space of a uint32 nonce is
// exhausted without a solution, which is handled by bumping the header's
// timestamp (an "extra nonce" of sorts, since this header carries no
// dedicated extra-nonce field) and continuing — the coinbase's
// beneficiary address, not the timestamp, is what keeps two miners' otherwise
// identical templates from colliding on the same hash.
func (mnr *Miner) Mine(ctx context.Context, block chainmodel.Block) (chainmodel.Block, error) {
	mnr.evHandler("miner: Mine: started")
	defer mnr.evHandler("miner: Mine: completed")

	start, err := rand.Int(rand.Reader, big.NewInt(math.MaxUint32))
	if err != nil {
		return chainmodel.Block{}, err
	}
	block.Header.Nonce = uint32(start.Uint64())

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			mnr.evHandler("miner: Mine: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			return chainmodel.Block{}, ctx.Err()
		}

		hash, err := crypto.PoWHash(mnr.powAlgorithm, block.Header.Encode())
		if err != nil {
			return chainmodel.Block{}, err
		}

		if pow.HashMeetsTarget(hash, block.Header.Bits) {
			mnr.evHandler("miner: Mine: SOLVED: block[%s] attempts[%d]", block.Hash(), attempts)
			return block, nil
		}

		if block.Header.Nonce == math.MaxUint32 {
			block.Header.Nonce = 0
			block.Header.Timestamp++
			continue
		}
		block.Header.Nonce++
	}
}
