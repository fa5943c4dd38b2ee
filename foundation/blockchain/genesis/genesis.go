// Package genesis maintains access to a network's genesis parameters: the
// constants that are configurable once, at chain creation, and immutable
// for every node and every block after that.
package genesis

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
)

// Network-wide constants, identical for every chain built from this
// codebase regardless of genesis configuration.
const (
	// InitialSubsidy is the coinbase reward at height 0, in satoshi.
	InitialSubsidy = 50 * 1e8

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval = 210_000

	// MaxHalvings is the number of halvings after which the subsidy is
	// defined to be exactly zero, rather than an ever-shrinking integer
	// that underflows to zero anyway — the two coincide at 64 halvings
	// of a 64-bit reward, but spelling out the boundary keeps Subsidy
	// from relying on shift-overflow behavior.
	MaxHalvings = 64

	// TargetBlockTime is the desired spacing between blocks, in seconds.
	TargetBlockTime = 600

	// RetargetInterval is the number of blocks between difficulty
	// retargets.
	RetargetInterval = 2016

	// MaxBlockBytes is the maximum encoded size of a block.
	MaxBlockBytes = 4 * 1 << 20

	// MinRelayFee is the minimum fee, in satoshi, the mempool will admit
	// a transaction at, independent of its byte size.
	MinRelayFee = 1000

	// MaxMoney is the maximum amount of satoshi that can ever exist.
	MaxMoney = 21_000_000 * 1e8

	// MaxTxBytes is the maximum encoded size of a single transaction.
	MaxTxBytes = 1 * 1 << 20

	// MaxTxsPerBlock bounds the transaction count of a single block,
	// independent of the byte-size cap.
	MaxTxsPerBlock = 5_000

	// CanonicalBurnAddress is the fixed, unspendable address BURN
	// transactions pay to. No private key corresponds to it; BURN
	// outputs paid here are COMPENSATED, so utxo.Index.Select never picks
	// them. The one SPENDABLE output it can hold is the genesis coinbase
	// output Params.Block creates when Balances is empty.
	CanonicalBurnAddress = "1BurnCarbonCreditsUnspendab1e000"
)

// Subsidy returns the coinbase reward at the given block height, halving
// every HalvingInterval blocks and dropping to zero once MaxHalvings have
// elapsed.
func Subsidy(height uint64) uint64 {
	halvings := height / HalvingInterval
	if halvings >= MaxHalvings {
		return 0
	}

	return InitialSubsidy >> halvings
}

// Params is the full set of choices a network fixes at genesis and can
// never change afterward: the genesis block's own header fields, and
// which hash/PoW-hash algorithm every subsequent block must agree on.
type Params struct {
	Date            time.Time             `json:"date"`
	ChainID         uint16                `json:"chain_id"`
	GenesisBits     uint32                `json:"genesis_bits"`
	GenesisTime     uint32                `json:"genesis_time"`
	HashAlgorithm   crypto.HashAlgorithm  `json:"hash_algorithm"`
	PoWAlgorithm    crypto.PoWAlgorithm   `json:"pow_algorithm"`
	AddressVersion  crypto.AddressVersion `json:"address_version"`
	Balances        map[string]uint64     `json:"balances"`
}

// Load opens and parses a network's genesis parameters from a JSON file,
// conventionally zblock/genesis.json relative to the node's working
// directory.
func Load(path string) (Params, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}

	var params Params
	if err := json.Unmarshal(content, &params); err != nil {
		return Params{}, err
	}

	return params, nil
}

// Block constructs the genesis block p describes: a single coinbase
// transaction with one output per entry of p.Balances (sorted by
// address for a deterministic encoding), and a header carrying p's
// fixed GenesisTime/GenesisBits with an all-zero previous hash. The
// merkle root is computed over that one transaction.
func (p Params) Block() (chainmodel.Block, error) {
	addrs := make([]string, 0, len(p.Balances))
	for addr := range p.Balances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	outputs := make([]chainmodel.TxOutput, 0, len(addrs))
	for _, addr := range addrs {
		outputs = append(outputs, chainmodel.TxOutput{
			Amount:    p.Balances[addr],
			Address:   addr,
			CoinState: chainmodel.Spendable,
		})
	}
	if len(outputs) == 0 {
		outputs = append(outputs, chainmodel.TxOutput{
			Amount:    Subsidy(0),
			Address:   CanonicalBurnAddress,
			CoinState: chainmodel.Spendable,
		})
	}

	coinbase := chainmodel.Transaction{
		Version:   chainmodel.TransactionVersion,
		Kind:      chainmodel.Coinbase,
		Inputs:    []chainmodel.TxInput{chainmodel.NewCoinbaseInput(0)},
		Outputs:   outputs,
		Timestamp: p.GenesisTime,
	}

	block := chainmodel.Block{
		Header: chainmodel.BlockHeader{
			Version:   chainmodel.BlockVersion,
			PrevHash:  chainmodel.Hash{},
			Timestamp: p.GenesisTime,
			Bits:      p.GenesisBits,
		},
		Height:       0,
		Transactions: []chainmodel.Transaction{coinbase},
	}

	tree, err := block.MerkleTree()
	if err != nil {
		return chainmodel.Block{}, err
	}
	copy(block.Header.MerkleRoot[:], tree.MerkleRoot)

	return block, nil
}
