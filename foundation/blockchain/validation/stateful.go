package validation

import (
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/ledger"
	"github.com/carbonchain/node/foundation/blockchain/utxo"
)

// blockView overlays the outputs a block's earlier transactions create
// and spend on top of the live UTXO index, so a later transaction in the
// same block can spend an output an earlier one just produced — the
// index itself is not mutated until the whole block passes validation
// and is applied as one atomic Diff.
type blockView struct {
	idx     *utxo.Index
	created map[chainmodel.OutPoint]chainmodel.TxOutput
	spent   map[chainmodel.OutPoint]struct{}
}

func newBlockView(idx *utxo.Index) *blockView {
	return &blockView{
		idx:     idx,
		created: make(map[chainmodel.OutPoint]chainmodel.TxOutput),
		spent:   make(map[chainmodel.OutPoint]struct{}),
	}
}

// get returns the output at op as it stands after every transaction
// processed so far in this block, or false if it is unknown or already
// spent earlier in the block.
func (v *blockView) get(op chainmodel.OutPoint) (chainmodel.TxOutput, bool) {
	if _, gone := v.spent[op]; gone {
		return chainmodel.TxOutput{}, false
	}
	if out, ok := v.created[op]; ok {
		return out, true
	}
	return v.idx.Get(op)
}

func (v *blockView) spend(op chainmodel.OutPoint) {
	v.spent[op] = struct{}{}
	delete(v.created, op)
}

func (v *blockView) create(op chainmodel.OutPoint, out chainmodel.TxOutput) {
	v.created[op] = out
}

// ledgerView overlays certificates and projects created or updated
// earlier in the same block on top of the live ledger, mirroring
// blockView's role for the UTXO side.
type ledgerView struct {
	lgr      *ledger.Ledger
	staged   map[string]ledger.Certificate
	projects map[string]ledger.Project
}

func newLedgerView(lgr *ledger.Ledger) *ledgerView {
	return &ledgerView{
		lgr:      lgr,
		staged:   make(map[string]ledger.Certificate),
		projects: make(map[string]ledger.Project),
	}
}

func (v *ledgerView) get(id string) (ledger.Certificate, bool) {
	if cert, ok := v.staged[id]; ok {
		return cert, true
	}
	return v.lgr.Certificate(id)
}

func (v *ledgerView) has(id string) bool {
	_, ok := v.get(id)
	return ok
}

func (v *ledgerView) put(cert ledger.Certificate) {
	v.staged[cert.CertificateID] = cert
}

// hasProject reports whether id has already been created, either
// earlier in the same block or in the live ledger.
func (v *ledgerView) hasProject(id string) bool {
	if _, ok := v.projects[id]; ok {
		return true
	}
	_, ok := v.lgr.Project(id)
	return ok
}

func (v *ledgerView) putProject(p ledger.Project) {
	v.projects[p.ProjectID] = p
}

// TxContext bundles the per-block state Phase C needs beyond the
// transaction's own bytes.
type TxContext struct {
	View           *blockView
	Ledger         *ledgerView
	AddressVersion crypto.AddressVersion

	// Height is the block the transaction is being validated as part of.
	// It is only meaningful when the resulting ledger.Diff will actually
	// be applied (block connection); standalone mempool validation
	// discards its diff, so Height there is left at its zero value.
	Height uint32
}

// ValidateTransactionStateful runs Phase C for a single transaction:
// every UTXO-existence, coin-state, signature, balance, and certificate
// invariant check. On success it appends the output removals/insertions
// and certificate/project updates to utxoDiff and ledgerDiff and returns
// the transaction's fee (zero for coinbase).
func ValidateTransactionStateful(tx chainmodel.Transaction, ctx TxContext, utxoDiff *utxo.Diff, ledgerDiff *ledger.Diff) (uint64, error) {
	if tx.Kind == chainmodel.Coinbase {
		txid := tx.TxID()
		for i, out := range tx.Outputs {
			op := chainmodel.OutPoint{TxID: txid, Index: uint32(i)}
			utxoDiff.Insert(op, out)
			ctx.View.create(op, out)
		}
		return 0, nil
	}

	sighash := crypto.Hash256(tx.SigningPreimage())
	txid := tx.TxID()

	var totalIn uint64
	spentOutputs := make([]chainmodel.TxOutput, len(tx.Inputs))

	for i, in := range tx.Inputs {
		out, ok := ctx.View.get(in.Prev)
		if !ok {
			return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeUnknownUTXO,
				"input %d references unknown or already-spent outpoint %s", i, in.Prev)
		}

		if !coinStateAllowsKind(out.CoinState, tx.Kind) {
			return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCoinStateForbidden,
				"input %d's coin_state %s cannot be spent by %s", i, out.CoinState, tx.Kind)
		}

		pub, err := crypto.PublicKeyFromBytes(in.PubKey)
		if err != nil {
			return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidSignature, "input %d: %s", i, err)
		}

		if err := crypto.Verify(pub, sighash, in.Signature); err != nil {
			return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidSignature, "input %d: %s", i, err)
		}

		if crypto.Address(ctx.AddressVersion, in.PubKey) != out.Address {
			return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInvalidSignature,
				"input %d's public key does not match the spent output's address", i)
		}

		var overflow bool
		totalIn, overflow = addOverflows(totalIn, out.Amount)
		if overflow {
			return 0, chainerr.New(chainerr.InvalidTx, chainerr.CodeInvalidAmount, "total input amount overflows")
		}

		spentOutputs[i] = out
	}

	var totalOut uint64
	for _, out := range tx.Outputs {
		totalOut += out.Amount
	}

	if totalIn < totalOut {
		return 0, chainerr.Newf(chainerr.InvalidTx, chainerr.CodeInputOutputMismatch,
			"inputs (%d) are less than outputs (%d)", totalIn, totalOut)
	}

	if err := applyCertificateInvariants(tx, ctx.Ledger, ledgerDiff, ctx.Height); err != nil {
		return 0, err
	}

	for i, in := range tx.Inputs {
		utxoDiff.Remove(in.Prev, spentOutputs[i])
		ctx.View.spend(in.Prev)
	}
	for i, out := range tx.Outputs {
		op := chainmodel.OutPoint{TxID: txid, Index: uint32(i)}
		utxoDiff.Insert(op, out)
		ctx.View.create(op, out)
	}

	return totalIn - totalOut, nil
}

// ValidateTransactionAgainstChain runs Phase B followed by Phase C for a
// single transaction against the live UTXO index and ledger, rather than
// the per-block staged view ValidateBlock uses. This is what mempool
// admission and a block disconnect's mempool re-insertion need: a
// standalone transaction validated and priced (its fee) against chain
// tip, with no other in-flight transactions assumed.
func ValidateTransactionAgainstChain(tx chainmodel.Transaction, idx *utxo.Index, lgr *ledger.Ledger, addressVersion crypto.AddressVersion) (uint64, utxo.Diff, ledger.Diff, error) {
	if err := ValidateTransactionStructure(tx); err != nil {
		return 0, utxo.Diff{}, ledger.Diff{}, err
	}

	view := newBlockView(idx)
	lview := newLedgerView(lgr)

	var utxoDiff utxo.Diff
	var ledgerDiff ledger.Diff

	fee, err := ValidateTransactionStateful(tx, TxContext{View: view, Ledger: lview, AddressVersion: addressVersion}, &utxoDiff, &ledgerDiff)
	if err != nil {
		return 0, utxo.Diff{}, ledger.Diff{}, err
	}

	return fee, utxoDiff, ledgerDiff, nil
}

// coinStateAllowsKind enforces the four legal coin-state transitions:
// SPENDABLE→SPENDABLE (TRANSFER), SPENDABLE→CERTIFIED (ASSIGN_CERT),
// CERTIFIED→COMPENSATED (ASSIGN_COMPENSATION), SPENDABLE→COMPENSATED
// (BURN). COMPENSATED is never spendable.
func coinStateAllowsKind(state chainmodel.CoinState, kind chainmodel.Kind) bool {
	switch state {
	case chainmodel.Spendable:
		return kind == chainmodel.Transfer || kind == chainmodel.AssignCert || kind == chainmodel.Burn
	case chainmodel.Certified:
		return kind == chainmodel.AssignCompensation
	default: // Compensated
		return false
	}
}

// applyCertificateInvariants performs the ledger-side checks and updates
// ASSIGN_CERT, ASSIGN_COMPENSATION, and a certificate-linked BURN
// require. height is the block the transaction belongs to, recorded on
// any project created as a side effect of an ASSIGN_CERT.
func applyCertificateInvariants(tx chainmodel.Transaction, lv *ledgerView, diff *ledger.Diff, height uint32) error {
	switch tx.Kind {
	case chainmodel.AssignCert:
		certID := tx.Metadata[MetaCertID]
		if lv.has(certID) {
			return chainerr.Newf(chainerr.InvalidBlock, chainerr.CodeCertIDReused, "certificate_id %s already exists", certID)
		}

		total := mustParseAmount(tx.Metadata[MetaCertTotalAmount])
		var assigned uint64
		for _, out := range tx.Outputs {
			if out.CoinState == chainmodel.Certified {
				assigned += out.Amount
			}
		}

		issueDate, _ := time.Parse(time.RFC3339, tx.Metadata[MetaCertIssueDate])

		cert := ledger.Certificate{
			CertificateID:  certID,
			ProjectID:      tx.Metadata[MetaCertProjectID],
			TotalAmount:    total,
			AssignedAmount: assigned,
			IssuerAddress:  tx.Metadata[MetaCertIssuerAddress],
			Standard:       tx.Metadata[MetaCertStandard],
			Location:       tx.Metadata[MetaCertLocation],
			IssueDate:      issueDate,
			Metadata:       tx.Metadata[MetaCertMetadata],
		}
		diff.CreateCertificate(cert)
		lv.put(cert)

		projectID := tx.Metadata[MetaCertProjectID]
		if !lv.hasProject(projectID) {
			project := ledger.Project{
				ProjectID:     projectID,
				Name:          tx.Metadata[MetaCertProjectName],
				ProjectType:   tx.Metadata[MetaCertProjectType],
				Location:      tx.Metadata[MetaCertLocation],
				CreatedHeight: height,
			}
			diff.CreateProject(project)
			lv.putProject(project)
		}

	case chainmodel.AssignCompensation:
		certID := tx.Metadata[MetaCompCertificateID]
		cert, ok := lv.get(certID)
		if !ok {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "unknown certificate_id %s", certID)
		}

		amount := mustParseAmount(tx.Metadata[MetaCompAmount])
		if cert.CompensatedAmount+amount > cert.AssignedAmount {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCertOvercompensated,
				"compensating %d would push certificate %s past its assigned amount", amount, certID)
		}

		diff.Compensate(certID, amount)
		cert.CompensatedAmount += amount
		lv.put(cert)

	case chainmodel.Burn:
		certID := tx.Metadata[MetaBurnCertificateID]
		if certID == "" {
			return nil
		}

		cert, ok := lv.get(certID)
		if !ok {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "unknown certificate_id %s", certID)
		}

		var amount uint64
		for _, out := range tx.Outputs {
			amount += out.Amount
		}

		if cert.CompensatedAmount+amount > cert.AssignedAmount {
			return chainerr.Newf(chainerr.InvalidTx, chainerr.CodeCertOvercompensated,
				"burn-compensating %d would push certificate %s past its assigned amount", amount, certID)
		}

		diff.Compensate(certID, amount)
		cert.CompensatedAmount += amount
		lv.put(cert)
	}

	return nil
}

// mustParseAmount parses a decimal metadata value already confirmed
// well-formed by ValidateTransactionStructure; Phase C never sees a
// transaction that skipped Phase B.
func mustParseAmount(s string) uint64 {
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint64(c-'0')
	}
	return v
}
