package chainmodel

import "bytes"

// TxInput spends one existing UTXO: it names the OutPoint being consumed
// and carries the signature and public key that authorize the spend.
type TxInput struct {
	Prev      OutPoint
	Signature []byte
	PubKey    []byte
}

// encode appends the canonical encoding of the input to buf. When
// forSigning is true the signature field is encoded as empty regardless
// of its actual contents — the "signature field cleared" rule used both
// for txid computation and for the sighash a signature is verified
// against.
func (in TxInput) encode(buf *bytes.Buffer, forSigning bool) {
	in.Prev.encode(buf)

	if forSigning {
		putBytes(buf, nil)
	} else {
		putBytes(buf, in.Signature)
	}

	putBytes(buf, in.PubKey)
}

func decodeTxInput(b []byte) (TxInput, int, error) {
	prev, n, err := decodeOutPoint(b)
	if err != nil {
		return TxInput{}, 0, err
	}
	offset := n

	sig, n, err := readBytes(b[offset:])
	if err != nil {
		return TxInput{}, 0, err
	}
	offset += n

	pub, n, err := readBytes(b[offset:])
	if err != nil {
		return TxInput{}, 0, err
	}
	offset += n

	in := TxInput{
		Prev:      prev,
		Signature: append([]byte(nil), sig...),
		PubKey:    append([]byte(nil), pub...),
	}

	return in, offset, nil
}

// IsCoinbase reports whether this input is the dummy input of a coinbase
// transaction: a null (zero) OutPoint.
func (in TxInput) IsCoinbase() bool {
	return in.Prev.TxID.IsZero()
}

// NewCoinbaseInput builds the single dummy input a COINBASE transaction
// carries: a null OutPoint with the block height encoded into the
// otherwise-unused PubKey field (there being no script to carry it in).
// This mirrors Bitcoin's BIP-34 convention of smuggling height through the
// coinbase's scriptSig.
func NewCoinbaseInput(height uint64) TxInput {
	pubKey := make([]byte, 8)
	putUint64(pubKey, height)

	return TxInput{PubKey: pubKey}
}

// CoinbaseHeight extracts the height a coinbase input was built with via
// NewCoinbaseInput.
func (in TxInput) CoinbaseHeight() (uint64, error) {
	if len(in.PubKey) != 8 {
		return 0, ErrTruncated
	}
	return getUint64(in.PubKey), nil
}
