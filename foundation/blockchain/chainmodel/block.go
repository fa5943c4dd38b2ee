package chainmodel

import (
	"bytes"
	"errors"

	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/merkle"
)

// HeaderSize is the fixed encoded size of a BlockHeader: version(4) ‖
// prev_hash(32) ‖ merkle_root(32) ‖ timestamp(4) ‖ bits(4) ‖ nonce(4).
const HeaderSize = 4 + 32 + 32 + 4 + 4 + 4

// BlockVersion is the only header version this build emits or accepts.
const BlockVersion = 1

// ErrEmptyBlock is returned when a block carries no transactions at all —
// every block, including genesis, must have at least a coinbase.
var ErrEmptyBlock = errors.New("chainmodel: block has no transactions")

// ErrMerkleMismatch is returned when a block's declared merkle root does
// not match the root recomputed from its transactions.
var ErrMerkleMismatch = errors.New("chainmodel: merkle root mismatch")

// BlockHeader is the 80 byte structure a miner searches a nonce for and
// every other node verifies against a target derived from Bits.
type BlockHeader struct {
	Version    uint32
	PrevHash   Hash
	MerkleRoot Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Encode returns the fixed 80 byte canonical encoding of the header.
func (h BlockHeader) Encode() []byte {
	buf := make([]byte, 0, HeaderSize)
	var tmp [4]byte

	putUint32(tmp[:], h.Version)
	buf = append(buf, tmp[:]...)

	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)

	putUint32(tmp[:], h.Timestamp)
	buf = append(buf, tmp[:]...)

	putUint32(tmp[:], h.Bits)
	buf = append(buf, tmp[:]...)

	putUint32(tmp[:], h.Nonce)
	buf = append(buf, tmp[:]...)

	return buf
}

// DecodeBlockHeader parses a BlockHeader from its fixed 80 byte encoding.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	if len(b) != HeaderSize {
		return BlockHeader{}, ErrTruncated
	}

	var h BlockHeader
	h.Version = getUint32(b[0:4])
	copy(h.PrevHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.Timestamp = getUint32(b[68:72])
	h.Bits = getUint32(b[72:76])
	h.Nonce = getUint32(b[76:80])

	return h, nil
}

// Hash reduces the header to its SHA-256d block hash. A block's identity
// is entirely determined by its header; transactions are committed via
// MerkleRoot, not hashed directly into the block hash.
func (h BlockHeader) Hash() Hash {
	return Hash(crypto.Hash256(h.Encode()))
}

// Block is a header plus the ordered transactions it commits to. Height
// is chain-manager context (a block's position once connected), not part
// of the wire encoding — the same bytes can in principle occupy different
// heights on different branches before one side wins.
type Block struct {
	Header       BlockHeader
	Height       uint32
	Transactions []Transaction
}

// Hash returns the block's identity hash, i.e. its header hash.
func (b Block) Hash() Hash {
	return b.Header.Hash()
}

// MerkleTree builds the merkle tree over b's transactions in order,
// duplicating the last one if the count is odd (merkle package default).
func (b Block) MerkleTree() (*merkle.Tree[Transaction], error) {
	if len(b.Transactions) == 0 {
		return nil, ErrEmptyBlock
	}

	return merkle.NewTree(b.Transactions)
}

// VerifyMerkleRoot recomputes the merkle root over b.Transactions and
// confirms it matches b.Header.MerkleRoot.
func (b Block) VerifyMerkleRoot() error {
	tree, err := b.MerkleTree()
	if err != nil {
		return err
	}

	var got Hash
	copy(got[:], tree.MerkleRoot)

	if got != b.Header.MerkleRoot {
		return ErrMerkleMismatch
	}

	return nil
}

// Serialize returns the canonical encoding of the block: the 80 byte
// header, a varint transaction count, then the concatenated canonical
// encodings of each transaction.
func (b Block) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(b.Header.Encode())
	putVarint(&buf, uint64(len(b.Transactions)))

	for _, tx := range b.Transactions {
		buf.Write(tx.Serialize())
	}

	return buf.Bytes()
}

// DeserializeBlock parses a Block from its canonical encoding. Height is
// not recoverable from the wire bytes and is left zero; callers that know
// a block's height (because they looked it up by position, or are
// connecting it to a known parent) set it afterward.
func DeserializeBlock(b []byte) (Block, error) {
	if len(b) < HeaderSize {
		return Block{}, ErrTruncated
	}

	header, err := DecodeBlockHeader(b[:HeaderSize])
	if err != nil {
		return Block{}, err
	}
	offset := HeaderSize

	count, n, err := readVarint(b[offset:])
	if err != nil {
		return Block{}, err
	}
	offset += n

	txs := make([]Transaction, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, n, err := decodeTransaction(b[offset:])
		if err != nil {
			return Block{}, err
		}
		offset += n
		txs = append(txs, tx)
	}

	if offset != len(b) {
		return Block{}, ErrTrailingBytes
	}

	if len(txs) == 0 {
		return Block{}, ErrEmptyBlock
	}

	return Block{Header: header, Transactions: txs}, nil
}
