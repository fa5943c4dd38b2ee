package chainmodel

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash is a 32 byte content-addressed identifier — a txid or a block hash.
type Hash [32]byte

// String returns the hex encoding of the hash, most-significant byte
// first, matching how txids and block hashes are conventionally printed.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// IsZero reports whether h is the all-zero hash, the sentinel used for a
// coinbase's dummy input and for genesis's previous-block hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalJSON renders h as its hex string, the form the HTTP query
// surface and event stream exchange hashes as.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses h from a hex string as produced by MarshalJSON.
func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("chainmodel: hash must be %d bytes, got %d", len(h), len(decoded))
	}

	copy(h[:], decoded)
	return nil
}

// OutPoint identifies a single output of a transaction: the pair
// (txid, index). It is the unit every TxInput spends and every UTXO entry
// is keyed by.
type OutPoint struct {
	TxID  Hash
	Index uint32
}

// String renders an OutPoint as "txid:index", the conventional debug and
// log representation.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

// Less defines the deterministic OutPoint ordering used as a coin
// selection tiebreak: by txid bytes, then by index.
func (o OutPoint) Less(other OutPoint) bool {
	if c := bytes.Compare(o.TxID[:], other.TxID[:]); c != 0 {
		return c < 0
	}
	return o.Index < other.Index
}

func (o OutPoint) encode(buf *bytes.Buffer) {
	buf.Write(o.TxID[:])
	var idx [4]byte
	putUint32(idx[:], o.Index)
	buf.Write(idx[:])
}

func decodeOutPoint(b []byte) (OutPoint, int, error) {
	const size = 32 + 4
	if len(b) < size {
		return OutPoint{}, 0, ErrTruncated
	}

	var o OutPoint
	copy(o.TxID[:], b[:32])
	o.Index = getUint32(b[32:36])

	return o, size, nil
}
