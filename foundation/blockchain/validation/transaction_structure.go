package validation

import (
	"strconv"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/genesis"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
)

// ValidateTransactionStructure runs Phase B: the context-free checks
// that need nothing beyond the transaction's own bytes — no UTXO index,
// no ledger, no chain position.
func ValidateTransactionStructure(tx chainmodel.Transaction) error {
	if len(tx.Serialize()) > genesis.MaxTxBytes {
		return chainerr.New(chainerr.Malformed, chainerr.CodeOversizeBlock, "transaction exceeds max tx size")
	}

	if tx.Kind > chainmodel.Burn {
		return chainerr.Newf(chainerr.Malformed, chainerr.CodeMalformedEncoding, "unknown transaction kind %d", tx.Kind)
	}

	isCoinbase := tx.Kind == chainmodel.Coinbase

	if isCoinbase {
		if len(tx.Inputs) != 1 || !tx.Inputs[0].IsCoinbase() {
			return chainerr.New(chainerr.InvalidTx, chainerr.CodeMalformedEncoding, "coinbase must carry exactly one null-OutPoint dummy input")
		}
	} else if len(tx.Inputs) == 0 {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMalformedEncoding, "non-coinbase transaction has no inputs")
	}

	if len(tx.Outputs) == 0 {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMalformedEncoding, "transaction has no outputs")
	}

	seen := make(map[chainmodel.OutPoint]struct{}, len(tx.Inputs))
	var totalOut uint64
	for i, in := range tx.Inputs {
		if !isCoinbase {
			if _, dup := seen[in.Prev]; dup {
				return chainerr.Newf(chainerr.Malformed, chainerr.CodeMalformedEncoding, "duplicate OutPoint %s at input %d", in.Prev, i)
			}
			seen[in.Prev] = struct{}{}
		}
	}

	for i, out := range tx.Outputs {
		if out.Amount == 0 {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidAmount, "output %d has zero amount", i)
		}
		var overflow bool
		totalOut, overflow = addOverflows(totalOut, out.Amount)
		if overflow || totalOut > genesis.MaxMoney {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidAmount, "output sum exceeds MAX_MONEY")
		}
	}

	switch tx.Kind {
	case chainmodel.Coinbase:
		return validateCoinbaseStructure(tx)
	case chainmodel.Transfer:
		return validateTransferStructure(tx)
	case chainmodel.AssignCert:
		return validateAssignCertStructure(tx)
	case chainmodel.AssignCompensation:
		return validateAssignCompensationStructure(tx)
	case chainmodel.Burn:
		return validateBurnStructure(tx)
	}

	return nil
}

func addOverflows(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

func validateCoinbaseStructure(tx chainmodel.Transaction) error {
	if _, err := tx.Inputs[0].CoinbaseHeight(); err != nil {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMalformedEncoding, "coinbase dummy input does not carry a height")
	}
	return nil
}

func validateTransferStructure(tx chainmodel.Transaction) error {
	for i, in := range tx.Inputs {
		if len(in.Signature) == 0 || len(in.PubKey) == 0 {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidSignature, "input %d is unsigned", i)
		}
	}

	for i, out := range tx.Outputs {
		if out.CoinState != chainmodel.Spendable {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCoinStateForbidden, "TRANSFER output %d is not SPENDABLE", i)
		}
	}

	return nil
}

func validateAssignCertStructure(tx chainmodel.Transaction) error {
	for i, in := range tx.Inputs {
		if len(in.Signature) == 0 || len(in.PubKey) == 0 {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidSignature, "input %d is unsigned", i)
		}
	}

	certID := tx.Metadata[MetaCertID]
	if certID == "" {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeInvalidCertificateID, "ASSIGN_CERT missing cert.id")
	}
	if err := ledger.ValidateCertificateID(certID); err != nil {
		return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidCertificateID, "ASSIGN_CERT: %s", err)
	}

	for _, key := range []string{MetaCertProjectID, MetaCertProjectName, MetaCertProjectType, MetaCertTotalAmount, MetaCertIssuerAddress, MetaCertStandard, MetaCertLocation, MetaCertIssueDate} {
		if tx.Metadata[key] == "" {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "ASSIGN_CERT missing metadata key %s", key)
		}
	}

	total, err := strconv.ParseUint(tx.Metadata[MetaCertTotalAmount], 10, 64)
	if err != nil {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "ASSIGN_CERT: cert.total_amount is not a valid integer")
	}

	if _, err := time.Parse(time.RFC3339, tx.Metadata[MetaCertIssueDate]); err != nil {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "ASSIGN_CERT: cert.issue_date is not RFC3339")
	}

	var certifiedSum uint64
	for i, out := range tx.Outputs {
		if out.CoinState != chainmodel.Certified {
			continue
		}
		if out.CertificateID != certID {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCertificateMismatch, "output %d certified under a different certificate_id", i)
		}
		certifiedSum += out.Amount
	}

	if certifiedSum == 0 {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "ASSIGN_CERT has no CERTIFIED output bound to cert.id")
	}
	if certifiedSum > total {
		return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCertOvercompensated, "certified outputs (%d) exceed cert.total_amount (%d)", certifiedSum, total)
	}

	return nil
}

func validateAssignCompensationStructure(tx chainmodel.Transaction) error {
	for i, in := range tx.Inputs {
		if len(in.Signature) == 0 || len(in.PubKey) == 0 {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidSignature, "input %d is unsigned", i)
		}
	}

	certID := tx.Metadata[MetaCompCertificateID]
	if certID == "" {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeInvalidCertificateID, "ASSIGN_COMPENSATION missing comp.certificate_id")
	}

	declared, err := strconv.ParseUint(tx.Metadata[MetaCompAmount], 10, 64)
	if err != nil {
		return chainerr.New(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "ASSIGN_COMPENSATION: comp.amount is not a valid integer")
	}

	var compensatedSum uint64
	for i, out := range tx.Outputs {
		if out.CoinState != chainmodel.Compensated {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCoinStateForbidden, "ASSIGN_COMPENSATION output %d is not COMPENSATED", i)
		}
		if out.CertificateID != certID {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCertificateMismatch, "output %d compensated under a different certificate_id", i)
		}
		compensatedSum += out.Amount
	}

	if compensatedSum != declared {
		return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "comp.amount (%d) does not match compensated output sum (%d)", declared, compensatedSum)
	}

	return nil
}

func validateBurnStructure(tx chainmodel.Transaction) error {
	for i, out := range tx.Outputs {
		if out.Address != genesis.CanonicalBurnAddress {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidAmount, "BURN output %d is not paid to the canonical burn address", i)
		}
		if out.CoinState != chainmodel.Compensated {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCoinStateForbidden, "BURN output %d is not COMPENSATED", i)
		}
	}
	return nil
}
