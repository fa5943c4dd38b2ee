package validation

import (
	"strconv"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
)

// BlockContext bundles the chain-manager-owned state a block is
// validated against: the UTXO index and ledger at the connection point,
// plus the network's address version (for deriving an input's expected
// address from its public key).
type BlockContext struct {
	UTXO           *utxo.Index
	Ledger         *ledger.Ledger
	AddressVersion crypto.AddressVersion
}

// ValidateBlock runs Phase B and Phase C over every transaction in block
// plus the block-level checks (coinbase position and uniqueness,
// duplicate txids, subsidy bound). It does not run Phase A — the chain
// manager calls ValidateHeader separately, since that phase needs
// chain-position context (expected bits, median time past) this function
// is not given. On success it returns the combined utxo.Diff and
// ledger.Diff the chain manager applies atomically; on failure the whole
// block is rejected and nothing is applied.
func ValidateBlock(block chainmodel.Block, ctx BlockContext) (utxo.Diff, ledger.Diff, error) {
	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	if len(block.Transactions) == 0 {
		return utxoDiff, ledgerDiff, chainerr.New(chainerr.InvalidBlock, chainerr.CodeNoCoinbase, "block has no transactions")
	}

	if len(block.Serialize()) > genesis.MaxBlockBytes {
		return utxoDiff, ledgerDiff, chainerr.New(chainerr.InvalidBlock, chainerr.CodeOversizeBlock, "block exceeds max block size")
	}

	if len(block.Transactions) > genesis.MaxTxsPerBlock {
		return utxoDiff, ledgerDiff, chainerr.Newf(chainerr.InvalidBlock, chainerr.CodeOversizeBlock,
			"block has %d transactions, max is %d", len(block.Transactions), genesis.MaxTxsPerBlock)
	}

	if err := block.VerifyMerkleRoot(); err != nil {
		return utxoDiff, ledgerDiff, chainerr.New(chainerr.InvalidBlock, chainerr.CodeMerkleMismatch, err.Error())
	}

	if block.Transactions[0].Kind != chainmodel.Coinbase {
		return utxoDiff, ledgerDiff, chainerr.New(chainerr.InvalidBlock, chainerr.CodeMissingCoinbase, "first transaction is not a coinbase")
	}

	txids := make(map[chainmodel.Hash]struct{}, len(block.Transactions))
	for i, tx := range block.Transactions {
		if i > 0 && tx.Kind == chainmodel.Coinbase {
			return utxoDiff, ledgerDiff, chainerr.Newf(chainerr.InvalidBlock, chainerr.CodeDuplicateCoinbase, "transaction %d is an unexpected second coinbase", i)
		}

		txid := tx.TxID()
		if _, dup := txids[txid]; dup {
			return utxoDiff, ledgerDiff, chainerr.Newf(chainerr.InvalidBlock, chainerr.CodeMalformedEncoding, "duplicate txid %s", txid)
		}
		txids[txid] = struct{}{}

		if err := ValidateTransactionStructure(tx); err != nil {
			return utxo.Diff{}, ledger.Diff{}, err
		}
	}

	if height, err := block.Transactions[0].Inputs[0].CoinbaseHeight(); err != nil || uint32(height) != block.Height {
		return utxo.Diff{}, ledger.Diff{}, chainerr.New(chainerr.InvalidBlock, chainerr.CodeMalformedEncoding, "coinbase height does not match block height")
	}

	view := newBlockView(ctx.UTXO)
	lview := newLedgerView(ctx.Ledger)

	var totalFees uint64
	for i, tx := range block.Transactions[1:] {
		txCtx := TxContext{View: view, Ledger: lview, AddressVersion: ctx.AddressVersion, Height: block.Height}

		fee, err := ValidateTransactionStateful(tx, txCtx, &utxoDiff, &ledgerDiff)
		if err != nil {
			if ce, ok := chainerr.As(err); ok {
				return utxo.Diff{}, ledger.Diff{}, ce.WithDetail("tx_index", strconv.Itoa(i+1))
			}
			return utxo.Diff{}, ledger.Diff{}, err
		}

		var overflow bool
		totalFees, overflow = addOverflows(totalFees, fee)
		if overflow {
			return utxo.Diff{}, ledger.Diff{}, chainerr.New(chainerr.InvalidBlock, chainerr.CodeInvalidAmount, "accumulated fees overflow")
		}
	}

	if _, err := ValidateTransactionStateful(block.Transactions[0], TxContext{View: view, Ledger: lview, AddressVersion: ctx.AddressVersion, Height: block.Height}, &utxoDiff, &ledgerDiff); err != nil {
		return utxo.Diff{}, ledger.Diff{}, err
	}

	var coinbaseOut uint64
	for _, out := range block.Transactions[0].Outputs {
		coinbaseOut += out.Amount
	}

	expectedSubsidy := genesis.Subsidy(uint64(block.Height))
	if coinbaseOut > expectedSubsidy+totalFees {
		return utxo.Diff{}, ledger.Diff{}, chainerr.Newf(chainerr.InvalidBlock, chainerr.CodeBadSubsidy,
			"coinbase pays out %d, max is subsidy(%d)+fees(%d)=%d", coinbaseOut, expectedSubsidy, totalFees, expectedSubsidy+totalFees)
	}

	return utxoDiff, ledgerDiff, nil
}
