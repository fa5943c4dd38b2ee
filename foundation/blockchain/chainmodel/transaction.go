package chainmodel

import (
	"bytes"
	"errors"

	"github.com/carbonchain/node/foundation/blockchain/crypto"
)

// Kind tags a transaction with one of the fixed set of forms the chain
// understands. Dispatch on Kind is a type switch in the validation
// engine, never an interface method: the set of kinds is closed and
// consensus-critical, so it does not benefit from open dispatch.
type Kind uint8

// The five transaction kinds this chain defines.
const (
	Coinbase Kind = iota
	Transfer
	AssignCert
	AssignCompensation
	Burn
)

// String renders a transaction kind for logs and error messages.
func (k Kind) String() string {
	switch k {
	case Coinbase:
		return "COINBASE"
	case Transfer:
		return "TRANSFER"
	case AssignCert:
		return "ASSIGN_CERT"
	case AssignCompensation:
		return "ASSIGN_COMPENSATION"
	case Burn:
		return "BURN"
	default:
		return "UNKNOWN"
	}
}

// ErrUnknownKind is returned when decoding a transaction whose kind byte
// does not name one of the five known kinds.
var ErrUnknownKind = errors.New("chainmodel: unknown transaction kind")

// TransactionVersion is the only wire version this build emits or
// accepts.
const TransactionVersion = 1

// Transaction is the chain's single unit of state transition: it consumes
// zero or more existing UTXOs and creates one or more new ones, tagged
// with a Kind that constrains its shape and the coin-state transitions it
// may perform.
type Transaction struct {
	Version   uint32
	Kind      Kind
	Inputs    []TxInput
	Outputs   []TxOutput
	Timestamp uint32
	Metadata  Metadata
}

// encode appends the canonical field-order encoding of tx to buf. When
// forSigning is true every input's signature field is cleared, producing
// the sighash preimage; this is also how a txid is computed, since a
// signature is not part of what identifies a transaction.
func (tx Transaction) encode(buf *bytes.Buffer, forSigning bool) {
	var version [4]byte
	putUint32(version[:], tx.Version)
	buf.Write(version[:])

	buf.WriteByte(byte(tx.Kind))

	putVarint(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		in.encode(buf, forSigning)
	}

	putVarint(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		out.encode(buf)
	}

	var ts [4]byte
	putUint32(ts[:], tx.Timestamp)
	buf.Write(ts[:])

	var metaBuf bytes.Buffer
	tx.Metadata.Encode(&metaBuf)
	putBytes(buf, metaBuf.Bytes())
}

// Serialize returns the full canonical encoding of tx, signatures
// included — the form persisted to storage and relayed over the network.
func (tx Transaction) Serialize() []byte {
	var buf bytes.Buffer
	tx.encode(&buf, false)
	return buf.Bytes()
}

// SigningPreimage returns the canonical encoding of tx with every input's
// signature field cleared. It is both the txid preimage and the sighash
// every input's signature is computed and verified against.
func (tx Transaction) SigningPreimage() []byte {
	var buf bytes.Buffer
	tx.encode(&buf, true)
	return buf.Bytes()
}

// TxID computes the transaction's content-addressed identifier:
// SHA-256d of the canonical encoding with signatures cleared.
func (tx Transaction) TxID() Hash {
	return Hash(crypto.Hash256(tx.SigningPreimage()))
}

// DeserializeTransaction parses a Transaction from its canonical
// encoding, rejecting any trailing bytes.
func DeserializeTransaction(b []byte) (Transaction, error) {
	tx, n, err := decodeTransaction(b)
	if err != nil {
		return Transaction{}, err
	}

	if n != len(b) {
		return Transaction{}, ErrTrailingBytes
	}

	return tx, nil
}

func decodeTransaction(b []byte) (Transaction, int, error) {
	if len(b) < 4+1 {
		return Transaction{}, 0, ErrTruncated
	}

	var tx Transaction
	tx.Version = getUint32(b[:4])
	tx.Kind = Kind(b[4])
	offset := 5

	if tx.Kind > Burn {
		return Transaction{}, 0, ErrUnknownKind
	}

	inCount, n, err := readVarint(b[offset:])
	if err != nil {
		return Transaction{}, 0, err
	}
	offset += n

	tx.Inputs = make([]TxInput, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		in, n, err := decodeTxInput(b[offset:])
		if err != nil {
			return Transaction{}, 0, err
		}
		offset += n
		tx.Inputs = append(tx.Inputs, in)
	}

	outCount, n, err := readVarint(b[offset:])
	if err != nil {
		return Transaction{}, 0, err
	}
	offset += n

	tx.Outputs = make([]TxOutput, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		out, n, err := decodeTxOutput(b[offset:])
		if err != nil {
			return Transaction{}, 0, err
		}
		offset += n
		tx.Outputs = append(tx.Outputs, out)
	}

	if len(b)-offset < 4 {
		return Transaction{}, 0, ErrTruncated
	}
	tx.Timestamp = getUint32(b[offset : offset+4])
	offset += 4

	metaBytes, n, err := readBytes(b[offset:])
	if err != nil {
		return Transaction{}, 0, err
	}
	offset += n

	md, n, err := DecodeMetadata(metaBytes)
	if err != nil {
		return Transaction{}, 0, err
	}
	if n != len(metaBytes) {
		return Transaction{}, 0, ErrTrailingBytes
	}
	tx.Metadata = md

	return tx, offset, nil
}

// Hash implements merkle.Hashable: the merkle tree over a block's
// transactions is built from txids.
func (tx Transaction) Hash() ([]byte, error) {
	id := tx.TxID()
	return id[:], nil
}

// Equals implements merkle.Hashable by comparing txids, which are
// themselves content hashes, so equal txids imply equal transactions.
func (tx Transaction) Equals(other Transaction) bool {
	return tx.TxID() == other.TxID()
}
