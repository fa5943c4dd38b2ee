package validation

import (
	"testing"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
)

// signedInput builds a TxInput spending prev, signed by priv over sighash.
func signedInput(priv crypto.PrivateKey, prev chainmodel.OutPoint, sighash [32]byte) chainmodel.TxInput {
	return chainmodel.TxInput{
		Prev:      prev,
		Signature: priv.Sign(sighash),
		PubKey:    priv.PublicKey().Bytes(),
	}
}

func Test_ValidateTransactionStatefulTransferSucceeds(t *testing.T) {
	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	addr := crypto.Address(crypto.AddressVersionMainnet, priv.PublicKey().Bytes())

	idx := utxo.New()
	prev := chainmodel.OutPoint{TxID: chainmodel.Hash{1}, Index: 0}
	var seed utxo.Diff
	seed.Insert(prev, chainmodel.TxOutput{Amount: 1000, Address: addr, CoinState: chainmodel.Spendable})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	tx := chainmodel.Transaction{
		Version: chainmodel.TransactionVersion,
		Kind:    chainmodel.Transfer,
		Outputs: []chainmodel.TxOutput{{Amount: 900, Address: "bob", CoinState: chainmodel.Spendable}},
	}
	sighash := crypto.Hash256(tx.SigningPreimage())
	tx.Inputs = []chainmodel.TxInput{signedInput(priv, prev, sighash)}

	lgr := ledger.New()
	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	fee, err := ValidateTransactionStateful(tx, TxContext{
		View:           view,
		Ledger:         lview,
		AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if fee != 100 {
		t.Fatalf("got fee %d, want 100", fee)
	}
	if len(utxoDiff.Removes) != 1 || len(utxoDiff.Inserts) != 1 {
		t.Fatalf("unexpected diff shape: %+v", utxoDiff)
	}
}

func Test_ValidateTransactionStatefulRejectsUnknownUTXO(t *testing.T) {
	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	idx := utxo.New()
	lgr := ledger.New()
	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	tx := chainmodel.Transaction{
		Kind:    chainmodel.Transfer,
		Outputs: []chainmodel.TxOutput{{Amount: 10, Address: "bob", CoinState: chainmodel.Spendable}},
	}
	sighash := crypto.Hash256(tx.SigningPreimage())
	tx.Inputs = []chainmodel.TxInput{signedInput(priv, chainmodel.OutPoint{TxID: chainmodel.Hash{9}, Index: 0}, sighash)}

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	_, err = ValidateTransactionStateful(tx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff)

	if !chainerr.HasCode(err, chainerr.CodeUnknownUTXO) {
		t.Fatalf("expected CodeUnknownUTXO, got %v", err)
	}
}

func Test_ValidateTransactionStatefulRejectsWrongKeyForAddress(t *testing.T) {
	owner, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	impostor, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ownerAddr := crypto.Address(crypto.AddressVersionMainnet, owner.PublicKey().Bytes())

	idx := utxo.New()
	prev := chainmodel.OutPoint{TxID: chainmodel.Hash{1}, Index: 0}
	var seed utxo.Diff
	seed.Insert(prev, chainmodel.TxOutput{Amount: 1000, Address: ownerAddr, CoinState: chainmodel.Spendable})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	tx := chainmodel.Transaction{
		Kind:    chainmodel.Transfer,
		Outputs: []chainmodel.TxOutput{{Amount: 900, Address: "bob", CoinState: chainmodel.Spendable}},
	}
	sighash := crypto.Hash256(tx.SigningPreimage())
	// Impostor signs validly, but over an OutPoint recorded under owner's address.
	tx.Inputs = []chainmodel.TxInput{signedInput(impostor, prev, sighash)}

	lgr := ledger.New()
	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	_, err = ValidateTransactionStateful(tx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff)

	if !chainerr.HasCode(err, chainerr.CodeInvalidSignature) {
		t.Fatalf("expected CodeInvalidSignature, got %v", err)
	}
}

func Test_ValidateTransactionStatefulRejectsSpendingCompensatedCoin(t *testing.T) {
	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	addr := crypto.Address(crypto.AddressVersionMainnet, priv.PublicKey().Bytes())

	idx := utxo.New()
	prev := chainmodel.OutPoint{TxID: chainmodel.Hash{1}, Index: 0}
	var seed utxo.Diff
	seed.Insert(prev, chainmodel.TxOutput{Amount: 1000, Address: addr, CoinState: chainmodel.Compensated})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	tx := chainmodel.Transaction{
		Kind:    chainmodel.Transfer,
		Outputs: []chainmodel.TxOutput{{Amount: 900, Address: "bob", CoinState: chainmodel.Spendable}},
	}
	sighash := crypto.Hash256(tx.SigningPreimage())
	tx.Inputs = []chainmodel.TxInput{signedInput(priv, prev, sighash)}

	lgr := ledger.New()
	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	_, err = ValidateTransactionStateful(tx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff)

	if !chainerr.HasCode(err, chainerr.CodeCoinStateForbidden) {
		t.Fatalf("expected CodeCoinStateForbidden, got %v", err)
	}
}

func Test_ValidateTransactionStatefulAssignCertThenCompensate(t *testing.T) {
	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	issuer := crypto.Address(crypto.AddressVersionMainnet, priv.PublicKey().Bytes())

	idx := utxo.New()
	prev := chainmodel.OutPoint{TxID: chainmodel.Hash{1}, Index: 0}
	var seed utxo.Diff
	seed.Insert(prev, chainmodel.TxOutput{Amount: 1000, Address: issuer, CoinState: chainmodel.Spendable})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	lgr := ledger.New()
	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	assignTx := chainmodel.Transaction{
		Kind: chainmodel.AssignCert,
		Outputs: []chainmodel.TxOutput{
			{Amount: 1000, Address: issuer, CoinState: chainmodel.Certified, CertificateID: "CERT-2025-0001"},
		},
		Metadata: chainmodel.Metadata{
			MetaCertID:           "CERT-2025-0001",
			MetaCertProjectID:     "PROJ-1",
			MetaCertProjectName:   "Serra da Estrela Reforestation",
			MetaCertProjectType:   "reforestation",
			MetaCertTotalAmount:   "1000",
			MetaCertIssuerAddress: issuer,
			MetaCertStandard:      "VCS",
			MetaCertLocation:      "Portugal",
			MetaCertIssueDate:     "2025-01-01T00:00:00Z",
		},
	}
	sighash := crypto.Hash256(assignTx.SigningPreimage())
	assignTx.Inputs = []chainmodel.TxInput{signedInput(priv, prev, sighash)}

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	if _, err := ValidateTransactionStateful(assignTx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet, Height: 7,
	}, &utxoDiff, &ledgerDiff); err != nil {
		t.Fatalf("unexpected error assigning certificate: %s", err)
	}

	certifiedOut := chainmodel.OutPoint{TxID: assignTx.TxID(), Index: 0}

	compTx := chainmodel.Transaction{
		Kind: chainmodel.AssignCompensation,
		Outputs: []chainmodel.TxOutput{
			{Amount: 1000, Address: issuer, CoinState: chainmodel.Compensated, CertificateID: "CERT-2025-0001"},
		},
		Metadata: chainmodel.Metadata{
			MetaCompCertificateID: "CERT-2025-0001",
			MetaCompAmount:        "1000",
		},
	}
	compSighash := crypto.Hash256(compTx.SigningPreimage())
	compTx.Inputs = []chainmodel.TxInput{signedInput(priv, certifiedOut, compSighash)}

	if _, err := ValidateTransactionStateful(compTx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff); err != nil {
		t.Fatalf("unexpected error compensating certificate: %s", err)
	}

	if err := lgr.Apply(ledgerDiff); err != nil {
		t.Fatalf("unexpected error applying ledger diff: %s", err)
	}

	cert, ok := lgr.Certificate("CERT-2025-0001")
	if !ok {
		t.Fatal("expected certificate to be present after apply")
	}
	if cert.DerivedState() != ledger.FullyCompensated {
		t.Fatalf("expected FullyCompensated, got %s", cert.DerivedState())
	}

	project, ok := lgr.Project("PROJ-1")
	if !ok {
		t.Fatal("expected the referenced project to be created alongside the certificate")
	}
	if project.Name != "Serra da Estrela Reforestation" || project.ProjectType != "reforestation" {
		t.Fatalf("got project %+v, want name/type from the ASSIGN_CERT metadata", project)
	}
	if project.CreatedHeight != 7 {
		t.Fatalf("got CreatedHeight %d, want 7", project.CreatedHeight)
	}
}

func Test_ValidateTransactionStatefulRejectsOvercompensation(t *testing.T) {
	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	issuer := crypto.Address(crypto.AddressVersionMainnet, priv.PublicKey().Bytes())

	idx := utxo.New()
	prev := chainmodel.OutPoint{TxID: chainmodel.Hash{1}, Index: 0}
	var seed utxo.Diff
	seed.Insert(prev, chainmodel.TxOutput{Amount: 500, Address: issuer, CoinState: chainmodel.Spendable})
	// A certified coin from another certificate, so the compensation's
	// inputs cover its 600 outputs and only the certificate bound fails.
	otherCertified := chainmodel.OutPoint{TxID: chainmodel.Hash{2}, Index: 0}
	seed.Insert(otherCertified, chainmodel.TxOutput{Amount: 100, Address: issuer, CoinState: chainmodel.Certified, CertificateID: "CERT-2025-0003"})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	lgr := ledger.New()
	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	assignTx := chainmodel.Transaction{
		Kind: chainmodel.AssignCert,
		Outputs: []chainmodel.TxOutput{
			{Amount: 500, Address: issuer, CoinState: chainmodel.Certified, CertificateID: "CERT-2025-0002"},
		},
		Metadata: chainmodel.Metadata{
			MetaCertID:           "CERT-2025-0002",
			MetaCertProjectID:     "PROJ-1",
			MetaCertTotalAmount:   "500",
			MetaCertIssuerAddress: issuer,
			MetaCertStandard:      "VCS",
			MetaCertLocation:      "Portugal",
			MetaCertIssueDate:     "2025-01-01T00:00:00Z",
		},
	}
	sighash := crypto.Hash256(assignTx.SigningPreimage())
	assignTx.Inputs = []chainmodel.TxInput{signedInput(priv, prev, sighash)}

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	if _, err := ValidateTransactionStateful(assignTx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff); err != nil {
		t.Fatalf("unexpected error assigning certificate: %s", err)
	}

	certifiedOut := chainmodel.OutPoint{TxID: assignTx.TxID(), Index: 0}

	compTx := chainmodel.Transaction{
		Kind: chainmodel.AssignCompensation,
		Outputs: []chainmodel.TxOutput{
			{Amount: 600, Address: issuer, CoinState: chainmodel.Compensated, CertificateID: "CERT-2025-0002"},
		},
		Metadata: chainmodel.Metadata{
			MetaCompCertificateID: "CERT-2025-0002",
			MetaCompAmount:        "600",
		},
	}
	compSighash := crypto.Hash256(compTx.SigningPreimage())
	compTx.Inputs = []chainmodel.TxInput{
		signedInput(priv, certifiedOut, compSighash),
		signedInput(priv, otherCertified, compSighash),
	}

	_, err = ValidateTransactionStateful(compTx, TxContext{
		View: view, Ledger: lview, AddressVersion: crypto.AddressVersionMainnet,
	}, &utxoDiff, &ledgerDiff)

	if !chainerr.HasCode(err, chainerr.CodeCertOvercompensated) {
		t.Fatalf("expected CodeCertOvercompensated, got %v", err)
	}
}

func Test_BlockViewSeesEarlierTxOutput(t *testing.T) {
	idx := utxo.New()
	view := newBlockView(idx)

	op := chainmodel.OutPoint{TxID: chainmodel.Hash{1}, Index: 0}
	out := chainmodel.TxOutput{Amount: 10, Address: "alice", CoinState: chainmodel.Spendable}
	view.create(op, out)

	got, ok := view.get(op)
	if !ok || got.Amount != 10 {
		t.Fatalf("expected blockView to see the staged output, got %+v ok=%v", got, ok)
	}

	view.spend(op)
	if _, ok := view.get(op); ok {
		t.Fatal("expected blockView to no longer see a spent staged output")
	}
}
