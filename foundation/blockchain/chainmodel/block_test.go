package chainmodel_test

import (
	"testing"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
)

func sampleCoinbase(height uint64, reward uint64, addr string) chainmodel.Transaction {
	return chainmodel.Transaction{
		Version:   chainmodel.TransactionVersion,
		Kind:      chainmodel.Coinbase,
		Inputs:    []chainmodel.TxInput{chainmodel.NewCoinbaseInput(height)},
		Outputs:   []chainmodel.TxOutput{{Amount: reward, Address: addr, CoinState: chainmodel.Spendable}},
		Timestamp: 1_700_000_000,
		Metadata:  chainmodel.Metadata{},
	}
}

func sampleBlock(t *testing.T) chainmodel.Block {
	t.Helper()

	coinbase := sampleCoinbase(1, 50*1e8, "miner")
	transfer := sampleTransfer()

	block := chainmodel.Block{
		Header: chainmodel.BlockHeader{
			Version:   chainmodel.BlockVersion,
			PrevHash:  chainmodel.Hash{},
			Timestamp: 1_700_000_600,
			Bits:      0x1d00ffff,
			Nonce:     42,
		},
		Height:       1,
		Transactions: []chainmodel.Transaction{coinbase, transfer},
	}

	tree, err := block.MerkleTree()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	copy(block.Header.MerkleRoot[:], tree.MerkleRoot)

	return block
}

func Test_BlockSerializeRoundTrip(t *testing.T) {
	block := sampleBlock(t)
	encoded := block.Serialize()

	decoded, err := chainmodel.DeserializeBlock(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if decoded.Hash() != block.Hash() {
		t.Fatal("decoded block has a different hash than the original")
	}

	if len(decoded.Transactions) != len(block.Transactions) {
		t.Fatal("decoded block has a different transaction count")
	}
}

func Test_BlockVerifyMerkleRoot(t *testing.T) {
	block := sampleBlock(t)

	if err := block.VerifyMerkleRoot(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	block.Header.MerkleRoot[0] ^= 0xff
	if err := block.VerifyMerkleRoot(); err != chainmodel.ErrMerkleMismatch {
		t.Fatalf("expected ErrMerkleMismatch, got %v", err)
	}
}

func Test_DeserializeBlockRejectsEmpty(t *testing.T) {
	block := sampleBlock(t)
	block.Transactions = nil

	// A header-only encoding with a zero tx count must fail to parse back
	// into a block, matching the "empty block refused" scenario.
	header := block.Header.Encode()
	encoded := append(header, 0x00)

	if _, err := chainmodel.DeserializeBlock(encoded); err != chainmodel.ErrEmptyBlock {
		t.Fatalf("expected ErrEmptyBlock, got %v", err)
	}
}

func Test_DeserializeBlockRejectsTrailingBytes(t *testing.T) {
	block := sampleBlock(t)
	encoded := append(block.Serialize(), 0x01)

	if _, err := chainmodel.DeserializeBlock(encoded); err != chainmodel.ErrTrailingBytes {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func Test_BlockHeaderEncodeDecodeRoundTrip(t *testing.T) {
	block := sampleBlock(t)

	encoded := block.Header.Encode()
	if len(encoded) != chainmodel.HeaderSize {
		t.Fatalf("got header size %d, want %d", len(encoded), chainmodel.HeaderSize)
	}

	decoded, err := chainmodel.DecodeBlockHeader(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if decoded.Hash() != block.Header.Hash() {
		t.Fatal("decoded header hash does not match the original")
	}
}

func Test_GenesisPrevHashIsZero(t *testing.T) {
	genesis := sampleBlock(t)
	genesis.Header.PrevHash = chainmodel.Hash{}

	if !genesis.Header.PrevHash.IsZero() {
		t.Fatal("expected genesis prev hash to be the zero hash")
	}
}
