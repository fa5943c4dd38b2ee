// Package validation implements the three-phase consensus check: Phase A
// (context-free header), Phase B (context-free transaction), and Phase C
// (stateful, against the UTXO index and certificate/project ledger).
// Each phase rejects before the next, cheaper checks first.
package validation

// The metadata keys a transaction's map[string]string carries. A
// certificate's project fields are repeated on every ASSIGN_CERT that
// references it, but only take effect the first time a given
// cert.project_id is seen; later assignments against the same project
// are accepted with the fields present but ignored.
const (
	// ASSIGN_CERT carries these keys describing the certificate it mints
	// and the project it attributes the reduction to.
	MetaCertID            = "cert.id"
	MetaCertProjectID      = "cert.project_id"
	MetaCertProjectName    = "cert.project_name"
	MetaCertProjectType    = "cert.project_type"
	MetaCertTotalAmount    = "cert.total_amount"
	MetaCertIssuerAddress  = "cert.issuer_address"
	MetaCertStandard       = "cert.standard"
	MetaCertLocation       = "cert.location"
	MetaCertIssueDate      = "cert.issue_date"
	MetaCertMetadata       = "cert.metadata" // optional, free-form JSON

	// ASSIGN_COMPENSATION carries these keys.
	MetaCompCertificateID = "comp.certificate_id"
	MetaCompAmount        = "comp.amount"

	// BURN optionally carries this key when the spendable coins it pays to
	// the canonical burn address count as compensation against a
	// certificate.
	MetaBurnCertificateID = "burn.certificate_id"
)
