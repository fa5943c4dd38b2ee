package ledger_test

import (
	"testing"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/ledger"
)

func sampleCertificate(id string, total uint64) ledger.Certificate {
	return ledger.Certificate{
		CertificateID: id,
		ProjectID:     "PROJ-1",
		TotalAmount:   total,
		IssuerAddress: "issuer1",
		Standard:      "VCS",
		Location:      "Portugal",
		IssueDate:     time.Unix(1_700_000_000, 0).UTC(),
	}
}

func Test_ValidateCertificateID(t *testing.T) {
	if err := ledger.ValidateCertificateID("CERT-2025-0001"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err := ledger.ValidateCertificateID("cert-25-1"); err == nil {
		t.Fatal("expected malformed certificate id to be rejected")
	}
}

func Test_CreateCertificateThenAssignThenCompensate(t *testing.T) {
	l := ledger.New()

	var create ledger.Diff
	create.CreateCertificate(sampleCertificate("CERT-2025-0001", 1000))
	if err := l.Apply(create); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var assign ledger.Diff
	assign.AssignMore("CERT-2025-0001", 1000)
	if err := l.Apply(assign); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var comp1 ledger.Diff
	comp1.Compensate("CERT-2025-0001", 400)
	if err := l.Apply(comp1); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var comp2 ledger.Diff
	comp2.Compensate("CERT-2025-0001", 400)
	if err := l.Apply(comp2); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var comp3 ledger.Diff
	comp3.Compensate("CERT-2025-0001", 200)
	if err := l.Apply(comp3); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	cert, ok := l.Certificate("CERT-2025-0001")
	if !ok {
		t.Fatal("expected certificate to exist")
	}
	if cert.CompensatedAmount != 1000 {
		t.Fatalf("got compensated %d, want 1000", cert.CompensatedAmount)
	}

	var comp4 ledger.Diff
	comp4.Compensate("CERT-2025-0001", 100)
	if err := l.Apply(comp4); err != ledger.ErrOvercompensated {
		t.Fatalf("expected ErrOvercompensated, got %v", err)
	}
}

func Test_CreateCertificateDuplicateRejected(t *testing.T) {
	l := ledger.New()

	var first ledger.Diff
	first.CreateCertificate(sampleCertificate("CERT-2025-0001", 1000))
	if err := l.Apply(first); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var second ledger.Diff
	second.CreateCertificate(sampleCertificate("CERT-2025-0001", 500))
	if err := l.Apply(second); err != ledger.ErrCertificateExists {
		t.Fatalf("expected ErrCertificateExists, got %v", err)
	}
}

func Test_AssignBeyondTotalRejected(t *testing.T) {
	l := ledger.New()

	var create ledger.Diff
	create.CreateCertificate(sampleCertificate("CERT-2025-0001", 1000))
	if err := l.Apply(create); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var assign ledger.Diff
	assign.AssignMore("CERT-2025-0001", 1001)
	if err := l.Apply(assign); err != ledger.ErrOvercompensated {
		t.Fatalf("expected ErrOvercompensated, got %v", err)
	}
}

func Test_UndoReversesApply(t *testing.T) {
	l := ledger.New()

	var create ledger.Diff
	create.CreateCertificate(sampleCertificate("CERT-2025-0001", 1000))
	if err := l.Apply(create); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var assign ledger.Diff
	assign.AssignMore("CERT-2025-0001", 1000)
	if err := l.Apply(assign); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var comp ledger.Diff
	comp.Compensate("CERT-2025-0001", 400)
	if err := l.Apply(comp); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if err := l.Undo(comp); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	cert, _ := l.Certificate("CERT-2025-0001")
	if cert.CompensatedAmount != 0 {
		t.Fatalf("got compensated %d after undo, want 0", cert.CompensatedAmount)
	}

	if err := l.Undo(assign); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := l.Undo(create); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if l.HasCertificate("CERT-2025-0001") {
		t.Fatal("expected certificate to be gone after full undo")
	}
}

func Test_DerivedState(t *testing.T) {
	cert := sampleCertificate("CERT-2025-0001", 1000)
	cert.AssignedAmount = 1000

	if cert.DerivedState() != ledger.Active {
		t.Fatalf("got %s, want ACTIVE", cert.DerivedState())
	}

	cert.CompensatedAmount = 400
	if cert.DerivedState() != ledger.PartiallyCompensated {
		t.Fatalf("got %s, want PARTIALLY_COMPENSATED", cert.DerivedState())
	}

	cert.CompensatedAmount = 1000
	if cert.DerivedState() != ledger.FullyCompensated {
		t.Fatalf("got %s, want FULLY_COMPENSATED", cert.DerivedState())
	}
}

func Test_ProjectCreateIsIdempotentWithinADiff(t *testing.T) {
	l := ledger.New()

	var d ledger.Diff
	d.CreateProject(ledger.Project{ProjectID: "PROJ-1", Name: "Amazon Reforestation", ProjectType: "reforestation"})
	d.CreateProject(ledger.Project{ProjectID: "PROJ-1", Name: "Duplicate Entry", ProjectType: "solar"})
	if err := l.Apply(d); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	p, ok := l.Project("PROJ-1")
	if !ok || p.Name != "Amazon Reforestation" {
		t.Fatalf("expected project to be recorded, got %+v ok=%v", p, ok)
	}
}
