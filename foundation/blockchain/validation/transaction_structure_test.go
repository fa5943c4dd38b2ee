package validation_test

import (
	"testing"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/validation"
)

func coinbaseTx(height uint64, amount uint64, addr string) chainmodel.Transaction {
	return chainmodel.Transaction{
		Version: chainmodel.TransactionVersion,
		Kind:    chainmodel.Coinbase,
		Inputs:  []chainmodel.TxInput{chainmodel.NewCoinbaseInput(height)},
		Outputs: []chainmodel.TxOutput{{Amount: amount, Address: addr, CoinState: chainmodel.Spendable}},
	}
}

func Test_ValidateTransactionStructureCoinbaseAccepted(t *testing.T) {
	tx := coinbaseTx(10, 5_000_000_000, "addr1")

	if err := validation.ValidateTransactionStructure(tx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func Test_ValidateTransactionStructureCoinbaseRejectsExtraInput(t *testing.T) {
	tx := coinbaseTx(10, 1, "addr1")
	tx.Inputs = append(tx.Inputs, chainmodel.TxInput{Prev: chainmodel.OutPoint{Index: 1}})

	if err := validation.ValidateTransactionStructure(tx); err == nil {
		t.Fatal("expected an error for a coinbase with a second input")
	}
}

func Test_ValidateTransactionStructureRejectsNoOutputs(t *testing.T) {
	tx := chainmodel.Transaction{
		Kind:   chainmodel.Transfer,
		Inputs: []chainmodel.TxInput{{Prev: chainmodel.OutPoint{Index: 0}, Signature: []byte("s"), PubKey: []byte("p")}},
	}

	if err := validation.ValidateTransactionStructure(tx); err == nil {
		t.Fatal("expected an error for a transaction with no outputs")
	}
}

func Test_ValidateTransactionStructureRejectsDuplicateOutPoints(t *testing.T) {
	op := chainmodel.OutPoint{Index: 1}
	tx := chainmodel.Transaction{
		Kind: chainmodel.Transfer,
		Inputs: []chainmodel.TxInput{
			{Prev: op, Signature: []byte("s"), PubKey: []byte("p")},
			{Prev: op, Signature: []byte("s"), PubKey: []byte("p")},
		},
		Outputs: []chainmodel.TxOutput{{Amount: 1, Address: "a", CoinState: chainmodel.Spendable}},
	}

	if err := validation.ValidateTransactionStructure(tx); err == nil {
		t.Fatal("expected an error for duplicate input OutPoints")
	}
}

func Test_ValidateTransactionStructureRejectsUnsignedTransfer(t *testing.T) {
	tx := chainmodel.Transaction{
		Kind:    chainmodel.Transfer,
		Inputs:  []chainmodel.TxInput{{Prev: chainmodel.OutPoint{Index: 0}}},
		Outputs: []chainmodel.TxOutput{{Amount: 1, Address: "a", CoinState: chainmodel.Spendable}},
	}

	err := validation.ValidateTransactionStructure(tx)
	if !chainerr.HasCode(err, chainerr.CodeInvalidSignature) {
		t.Fatalf("expected CodeInvalidSignature, got %v", err)
	}
}

func Test_ValidateTransactionStructureRejectsZeroAmount(t *testing.T) {
	tx := chainmodel.Transaction{
		Kind:    chainmodel.Transfer,
		Inputs:  []chainmodel.TxInput{{Prev: chainmodel.OutPoint{Index: 0}, Signature: []byte("s"), PubKey: []byte("p")}},
		Outputs: []chainmodel.TxOutput{{Amount: 0, Address: "a", CoinState: chainmodel.Spendable}},
	}

	err := validation.ValidateTransactionStructure(tx)
	if !chainerr.HasCode(err, chainerr.CodeInvalidAmount) {
		t.Fatalf("expected CodeInvalidAmount, got %v", err)
	}
}

func assignCertTx() chainmodel.Transaction {
	return chainmodel.Transaction{
		Kind:   chainmodel.AssignCert,
		Inputs: []chainmodel.TxInput{{Prev: chainmodel.OutPoint{Index: 0}, Signature: []byte("s"), PubKey: []byte("p")}},
		Outputs: []chainmodel.TxOutput{
			{Amount: 1000, Address: "issuer", CoinState: chainmodel.Certified, CertificateID: "CERT-2025-0001"},
		},
		Metadata: chainmodel.Metadata{
			validation.MetaCertID:           "CERT-2025-0001",
			validation.MetaCertProjectID:     "PROJ-1",
			validation.MetaCertProjectName:   "Test Project",
			validation.MetaCertProjectType:   "reforestation",
			validation.MetaCertTotalAmount:   "1000",
			validation.MetaCertIssuerAddress: "issuer",
			validation.MetaCertStandard:      "VCS",
			validation.MetaCertLocation:      "Portugal",
			validation.MetaCertIssueDate:     "2025-01-01T00:00:00Z",
		},
	}
}

func Test_ValidateTransactionStructureAssignCertAccepted(t *testing.T) {
	if err := validation.ValidateTransactionStructure(assignCertTx()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func Test_ValidateTransactionStructureAssignCertRejectsMalformedID(t *testing.T) {
	tx := assignCertTx()
	tx.Metadata[validation.MetaCertID] = "not-a-cert-id"

	err := validation.ValidateTransactionStructure(tx)
	if !chainerr.HasCode(err, chainerr.CodeInvalidCertificateID) {
		t.Fatalf("expected CodeInvalidCertificateID, got %v", err)
	}
}

func Test_ValidateTransactionStructureAssignCertRejectsExceedingTotal(t *testing.T) {
	tx := assignCertTx()
	tx.Outputs[0].Amount = 2000

	err := validation.ValidateTransactionStructure(tx)
	if !chainerr.HasCode(err, chainerr.CodeCertOvercompensated) {
		t.Fatalf("expected CodeCertOvercompensated, got %v", err)
	}
}

func assignCompensationTx() chainmodel.Transaction {
	return chainmodel.Transaction{
		Kind:   chainmodel.AssignCompensation,
		Inputs: []chainmodel.TxInput{{Prev: chainmodel.OutPoint{Index: 0}, Signature: []byte("s"), PubKey: []byte("p")}},
		Outputs: []chainmodel.TxOutput{
			{Amount: 400, Address: "issuer", CoinState: chainmodel.Compensated, CertificateID: "CERT-2025-0001"},
		},
		Metadata: chainmodel.Metadata{
			validation.MetaCompCertificateID: "CERT-2025-0001",
			validation.MetaCompAmount:        "400",
		},
	}
}

func Test_ValidateTransactionStructureAssignCompensationAccepted(t *testing.T) {
	if err := validation.ValidateTransactionStructure(assignCompensationTx()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func Test_ValidateTransactionStructureAssignCompensationRejectsMismatchedAmount(t *testing.T) {
	tx := assignCompensationTx()
	tx.Metadata[validation.MetaCompAmount] = "500"

	if err := validation.ValidateTransactionStructure(tx); err == nil {
		t.Fatal("expected an error when comp.amount does not match the compensated output sum")
	}
}

func Test_ValidateTransactionStructureBurnRejectsWrongAddress(t *testing.T) {
	tx := chainmodel.Transaction{
		Kind:    chainmodel.Burn,
		Inputs:  []chainmodel.TxInput{{Prev: chainmodel.OutPoint{Index: 0}, Signature: []byte("s"), PubKey: []byte("p")}},
		Outputs: []chainmodel.TxOutput{{Amount: 10, Address: "not-the-burn-address", CoinState: chainmodel.Compensated}},
	}

	if err := validation.ValidateTransactionStructure(tx); err == nil {
		t.Fatal("expected an error for a BURN output not paid to the canonical burn address")
	}
}
