package mempool_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/mempool"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
	"github.com/carbonchain/node/foundation/blockchain/validation"
)

// seedSpendable creates a fresh UTXO index with one spendable output
// owned by a freshly generated key, returning the key, its address, the
// OutPoint, and the index.
func seedSpendable(t *testing.T, amount uint64) (crypto.PrivateKey, string, chainmodel.OutPoint, *utxo.Index) {
	t.Helper()

	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	addr := crypto.Address(crypto.AddressVersionMainnet, priv.PublicKey().Bytes())

	idx := utxo.New()
	op := chainmodel.OutPoint{TxID: chainmodel.Hash{byte(amount)}, Index: 0}

	var seed utxo.Diff
	seed.Insert(op, chainmodel.TxOutput{Amount: amount, Address: addr, CoinState: chainmodel.Spendable})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	return priv, addr, op, idx
}

func spendTx(priv crypto.PrivateKey, prev chainmodel.OutPoint, outAmount uint64, to string) chainmodel.Transaction {
	tx := chainmodel.Transaction{
		Kind:    chainmodel.Transfer,
		Outputs: []chainmodel.TxOutput{{Amount: outAmount, Address: to, CoinState: chainmodel.Spendable}},
	}
	tx.Inputs = []chainmodel.TxInput{{
		Prev:   prev,
		PubKey: priv.PublicKey().Bytes(),
	}}
	sighash := crypto.Hash256(tx.SigningPreimage())
	tx.Inputs[0].Signature = priv.Sign(sighash)
	return tx
}

// addSpendable adds a fresh spendable output to an existing index,
// unlike seedSpendable which builds its own. salt distinguishes the
// synthetic txid so multiple calls against the same idx don't collide.
func addSpendable(t *testing.T, idx *utxo.Index, amount uint64, salt byte) (crypto.PrivateKey, string, chainmodel.OutPoint) {
	t.Helper()

	priv, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	addr := crypto.Address(crypto.AddressVersionMainnet, priv.PublicKey().Bytes())
	op := chainmodel.OutPoint{TxID: chainmodel.Hash{salt}, Index: 0}

	var diff utxo.Diff
	diff.Insert(op, chainmodel.TxOutput{Amount: amount, Address: addr, CoinState: chainmodel.Spendable})
	if err := idx.Apply(diff); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	return priv, addr, op
}

// assignCertTx builds a well-formed ASSIGN_CERT transaction minting
// certifiedAmount under certID/projectID, spending prev for its single
// input.
func assignCertTx(priv crypto.PrivateKey, prev chainmodel.OutPoint, certID, projectID string, certifiedAmount uint64) chainmodel.Transaction {
	tx := chainmodel.Transaction{
		Kind: chainmodel.AssignCert,
		Outputs: []chainmodel.TxOutput{
			{Amount: certifiedAmount, Address: "issuer", CoinState: chainmodel.Certified, CertificateID: certID},
		},
		Metadata: map[string]string{
			validation.MetaCertID:           certID,
			validation.MetaCertProjectID:     projectID,
			validation.MetaCertProjectName:   "Mata Atlantica Restoration",
			validation.MetaCertProjectType:   "reforestation",
			validation.MetaCertTotalAmount:   strconv.FormatUint(certifiedAmount, 10),
			validation.MetaCertIssuerAddress: "issuer",
			validation.MetaCertStandard:      "VCS",
			validation.MetaCertLocation:      "Brazil",
			validation.MetaCertIssueDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		},
	}
	tx.Inputs = []chainmodel.TxInput{{
		Prev:   prev,
		PubKey: priv.PublicKey().Bytes(),
	}}
	sighash := crypto.Hash256(tx.SigningPreimage())
	tx.Inputs[0].Signature = priv.Sign(sighash)
	return tx
}

func Test_AdmitRejectsSecondAssignCertForSameCertificateID(t *testing.T) {
	idx := utxo.New()
	priv1, _, op1 := addSpendable(t, idx, 100_000, 21)
	priv2, _, op2 := addSpendable(t, idx, 100_000, 22)

	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	first := assignCertTx(priv1, op1, "CERT-2026-0001", "PROJ-0001", 95_000)
	if _, err := mp.Admit(first); err != nil {
		t.Fatalf("unexpected error admitting first: %s", err)
	}

	second := assignCertTx(priv2, op2, "CERT-2026-0001", "PROJ-0001", 95_000)
	_, err := mp.Admit(second)
	if !chainerr.HasCode(err, chainerr.CodeCertIDReused) {
		t.Fatalf("expected CodeCertIDReused, got %v", err)
	}
	if mp.Has(second.TxID()) {
		t.Fatal("expected the second ASSIGN_CERT to be rejected, not pooled")
	}
	if !mp.Has(first.TxID()) {
		t.Fatal("expected the first ASSIGN_CERT to remain pooled")
	}
}

func Test_AdmitAcceptsWellFormedTransaction(t *testing.T) {
	priv, _, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	tx := spendTx(priv, op, 95_000, "bob")

	fee, err := mp.Admit(tx)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if fee != 5_000 {
		t.Fatalf("got fee %d, want 5000", fee)
	}
	if mp.Count() != 1 {
		t.Fatalf("got count %d, want 1", mp.Count())
	}
	if !mp.Has(tx.TxID()) {
		t.Fatal("expected the admitted transaction to be present")
	}
}

func Test_AdmitRejectsFeeBelowRelayMinimum(t *testing.T) {
	priv, _, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	// Fee of 1 sat is far below both the absolute and rate floors.
	tx := spendTx(priv, op, 99_999, "bob")

	_, err := mp.Admit(tx)
	if !chainerr.HasCode(err, chainerr.CodeFeeTooLow) {
		t.Fatalf("expected CodeFeeTooLow, got %v", err)
	}
}

func Test_AdmitRejectsDoubleSpendWithoutHigherFee(t *testing.T) {
	priv, _, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	first := spendTx(priv, op, 95_000, "bob")
	if _, err := mp.Admit(first); err != nil {
		t.Fatalf("unexpected error admitting first: %s", err)
	}

	second := spendTx(priv, op, 96_000, "carol")
	_, err := mp.Admit(second)
	if !chainerr.HasCode(err, chainerr.CodeRBFUnderbid) {
		t.Fatalf("expected CodeRBFUnderbid, got %v", err)
	}
	if !mp.Has(first.TxID()) {
		t.Fatal("expected the original transaction to remain pooled after a rejected replacement")
	}
}

func Test_AdmitAcceptsReplaceByFee(t *testing.T) {
	priv, _, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	first := spendTx(priv, op, 95_000, "bob")
	if _, err := mp.Admit(first); err != nil {
		t.Fatalf("unexpected error admitting first: %s", err)
	}

	// Pays a fee comfortably above first's fee plus the relay minimum
	// times its size.
	second := spendTx(priv, op, 80_000, "carol")
	if _, err := mp.Admit(second); err != nil {
		t.Fatalf("unexpected error admitting replacement: %s", err)
	}

	if mp.Has(first.TxID()) {
		t.Fatal("expected the original transaction to be evicted by the replacement")
	}
	if !mp.Has(second.TxID()) {
		t.Fatal("expected the replacement transaction to be pooled")
	}
	if mp.Count() != 1 {
		t.Fatalf("got count %d, want 1", mp.Count())
	}
}

func Test_AdmitIsIdempotentForTheSameTransaction(t *testing.T) {
	priv, _, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	tx := spendTx(priv, op, 95_000, "bob")

	if _, err := mp.Admit(tx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := mp.Admit(tx); err != nil {
		t.Fatalf("unexpected error on re-admission: %s", err)
	}
	if mp.Count() != 1 {
		t.Fatalf("got count %d, want 1 after re-admitting the same transaction", mp.Count())
	}
}

func Test_PickBestOrdersByFeeRateDescending(t *testing.T) {
	idx := utxo.New()
	var seed utxo.Diff

	privA, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	privB, err := crypto.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	addrA := crypto.Address(crypto.AddressVersionMainnet, privA.PublicKey().Bytes())
	addrB := crypto.Address(crypto.AddressVersionMainnet, privB.PublicKey().Bytes())

	opA := chainmodel.OutPoint{TxID: chainmodel.Hash{10}, Index: 0}
	opB := chainmodel.OutPoint{TxID: chainmodel.Hash{11}, Index: 0}
	seed.Insert(opA, chainmodel.TxOutput{Amount: 100_000, Address: addrA, CoinState: chainmodel.Spendable})
	seed.Insert(opB, chainmodel.TxOutput{Amount: 100_000, Address: addrB, CoinState: chainmodel.Spendable})
	if err := idx.Apply(seed); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	lowFee := spendTx(privA, opA, 99_000, "x")  // fee 1000
	highFee := spendTx(privB, opB, 90_000, "y") // fee 10000

	if _, err := mp.Admit(lowFee); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := mp.Admit(highFee); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	picked := mp.PickBest(-1)
	if len(picked) != 2 {
		t.Fatalf("got %d transactions, want 2", len(picked))
	}
	if picked[0].TxID() != highFee.TxID() {
		t.Fatal("expected the higher fee-rate transaction to be picked first")
	}
}

func Test_PickBestRespectsInBlockDependencyOrder(t *testing.T) {
	priv, addr, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	parent := spendTx(priv, op, 50_000, addr)
	if _, err := mp.Admit(parent); err != nil {
		t.Fatalf("unexpected error admitting parent: %s", err)
	}

	childPrev := chainmodel.OutPoint{TxID: parent.TxID(), Index: 0}
	child := spendTx(priv, childPrev, 40_000, "bob")
	if _, err := mp.Admit(child); err != nil {
		t.Fatalf("unexpected error admitting child: %s", err)
	}

	picked := mp.PickBest(-1)
	if len(picked) != 2 {
		t.Fatalf("got %d transactions, want 2", len(picked))
	}
	if picked[0].TxID() != parent.TxID() {
		t.Fatal("expected the parent to be picked before its child regardless of fee rate")
	}
}

func Test_OnBlockConnectedRemovesIncludedTransaction(t *testing.T) {
	priv, _, op, idx := seedSpendable(t, 100_000)
	mp := mempool.New(idx, ledger.New(), crypto.AddressVersionMainnet, nil)

	tx := spendTx(priv, op, 95_000, "bob")
	if _, err := mp.Admit(tx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Simulate the block connecting: apply its effect on the live UTXO,
	// then tell the mempool.
	var connectDiff utxo.Diff
	connectDiff.Remove(op, chainmodel.TxOutput{})
	for i, out := range tx.Outputs {
		connectDiff.Insert(chainmodel.OutPoint{TxID: tx.TxID(), Index: uint32(i)}, out)
	}
	if err := idx.Apply(connectDiff); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	coinbase := chainmodel.Transaction{
		Kind:    chainmodel.Coinbase,
		Inputs:  []chainmodel.TxInput{chainmodel.NewCoinbaseInput(1)},
		Outputs: []chainmodel.TxOutput{{Amount: 1, Address: "miner", CoinState: chainmodel.Spendable}},
	}
	block := chainmodel.Block{Height: 1, Transactions: []chainmodel.Transaction{coinbase, tx}}

	mp.OnBlockConnected(block)

	if mp.Has(tx.TxID()) {
		t.Fatal("expected the connected transaction to be removed from the pool")
	}
	if mp.Count() != 0 {
		t.Fatalf("got count %d, want 0", mp.Count())
	}
}
