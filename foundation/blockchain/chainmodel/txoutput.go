package chainmodel

import "bytes"

// CoinState tags the CO₂-specific lifecycle phase of a single UTXO.
type CoinState uint8

// The three coin states and the only legal transitions between them:
// SPENDABLE→SPENDABLE, SPENDABLE→CERTIFIED, CERTIFIED→COMPENSATED,
// SPENDABLE→COMPENSATED.
const (
	Spendable CoinState = iota
	Certified
	Compensated
)

// String renders a coin state for logs and error messages.
func (s CoinState) String() string {
	switch s {
	case Spendable:
		return "SPENDABLE"
	case Certified:
		return "CERTIFIED"
	case Compensated:
		return "COMPENSATED"
	default:
		return "UNKNOWN"
	}
}

// TxOutput is one payment created by a transaction: an amount locked to
// an address, tagged with the coin state that governs whether and how it
// can be spent.
type TxOutput struct {
	Amount        uint64
	Address       string
	CoinState     CoinState
	CertificateID string // set iff CoinState == Certified (or a Compensated output tracing a certificate)
}

// IsSpendable reports whether this output can be the target of a new
// TxInput at all. COMPENSATED coins never can; CERTIFIED coins can only
// be spent by an ASSIGN_COMPENSATION (enforced by the validation engine,
// not here — this method only rules out the unconditionally-closed case).
func (o TxOutput) IsSpendable() bool {
	return o.CoinState != Compensated
}

func (o TxOutput) encode(buf *bytes.Buffer) {
	var amt [8]byte
	putUint64(amt[:], o.Amount)
	buf.Write(amt[:])

	putBytes(buf, []byte(o.Address))
	buf.WriteByte(byte(o.CoinState))
	putBytes(buf, []byte(o.CertificateID))
}

func decodeTxOutput(b []byte) (TxOutput, int, error) {
	if len(b) < 8 {
		return TxOutput{}, 0, ErrTruncated
	}

	var o TxOutput
	o.Amount = getUint64(b[:8])
	offset := 8

	addr, n, err := readBytes(b[offset:])
	if err != nil {
		return TxOutput{}, 0, err
	}
	o.Address = string(addr)
	offset += n

	if offset >= len(b) {
		return TxOutput{}, 0, ErrTruncated
	}
	o.CoinState = CoinState(b[offset])
	offset++

	certID, n, err := readBytes(b[offset:])
	if err != nil {
		return TxOutput{}, 0, err
	}
	o.CertificateID = string(certID)
	offset += n

	return o, offset, nil
}
