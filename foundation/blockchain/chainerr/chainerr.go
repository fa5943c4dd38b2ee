// Package chainerr implements the structured error taxonomy used
// throughout the node: every rejection the validation engine, mempool,
// and chain manager produce carries a stable {code, message, details}
// shape rather than an ad hoc string, so submitters and event listeners
// can branch on code across versions.
package chainerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error taxonomy's seven categories. Kind governs
// propagation policy, not presentation: Malformed/Invalid*/Conflict are
// recovered locally, UnknownParent is a pending state rather than a
// rejection, and IntegrityFault halts the chain writer.
type Kind uint8

const (
	// Malformed marks a parse failure, bad size, or non-canonical
	// encoding. The input is rejected; its source is not penalised at
	// this layer.
	Malformed Kind = iota

	// InvalidHeader marks insufficient PoW, a bad timestamp or bits
	// field, or a parent unknown beyond the orphan horizon.
	InvalidHeader

	// InvalidTx marks a structurally, cryptographically, or
	// semantically invalid transaction: bad signature, bad amount, an
	// illegal coin-state transition, a broken certificate invariant.
	InvalidTx

	// InvalidBlock marks a merkle mismatch, duplicate coinbase, an
	// oversize block, or a block containing an InvalidTx.
	InvalidBlock

	// Conflict marks a double-spend against the active UTXO set or the
	// mempool, a certificate_id collision, or an RBF underbid.
	Conflict

	// UnknownParent marks a block or transaction whose predecessor is
	// not yet known. It is stored pending, not rejected; propagation
	// policy treats it as a pending state rather than an error.
	UnknownParent

	// IntegrityFault marks a storage read that returned inconsistent
	// data. It is fatal: the node halts and requires manual recovery.
	IntegrityFault
)

// String renders a Kind for logs and query responses.
func (k Kind) String() string {
	switch k {
	case Malformed:
		return "MALFORMED"
	case InvalidHeader:
		return "INVALID_HEADER"
	case InvalidTx:
		return "INVALID_TX"
	case InvalidBlock:
		return "INVALID_BLOCK"
	case Conflict:
		return "CONFLICT"
	case UnknownParent:
		return "UNKNOWN_PARENT"
	case IntegrityFault:
		return "INTEGRITY_FAULT"
	default:
		return "UNKNOWN_KIND"
	}
}

// Code is a stable, version-independent identifier for one specific
// rejection reason, e.g. INVALID_SIGNATURE or DOUBLE_SPEND. Codes are
// exported constants rather than ad hoc strings so submitters can branch
// on them reliably.
type Code string

// The sentinel codes a node can produce.
const (
	// Malformed-kind codes.
	CodeMalformedEncoding Code = "MALFORMED_ENCODING"
	CodeOversizeBlock     Code = "OVERSIZE_BLOCK"

	// InvalidHeader-kind codes.
	CodePoWInsufficient  Code = "POW_INSUFFICIENT"
	CodeBadTimestamp     Code = "BAD_TIMESTAMP"
	CodeBadBits          Code = "BAD_BITS"
	CodeUnrecognizedVersion Code = "UNRECOGNIZED_VERSION"

	// InvalidTx-kind codes.
	CodeInvalidSignature     Code = "INVALID_SIGNATURE"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeCoinStateForbidden   Code = "COIN_STATE_FORBIDDEN"
	CodeCertOvercompensated  Code = "CERT_OVERCOMPENSATED"
	CodeUnknownUTXO          Code = "UNKNOWN_UTXO"
	CodeInputOutputMismatch  Code = "INPUT_OUTPUT_MISMATCH"
	CodeInvalidCertificateID Code = "INVALID_CERTIFICATE_ID"
	CodeMissingCertificate   Code = "MISSING_CERTIFICATE"
	CodeCertificateMismatch  Code = "CERTIFICATE_MISMATCH"
	CodeNoCoinbase           Code = "NO_COINBASE"

	// InvalidBlock-kind codes.
	CodeMerkleMismatch    Code = "MERKLE_MISMATCH"
	CodeMissingCoinbase   Code = "MISSING_COINBASE"
	CodeDuplicateCoinbase Code = "DUPLICATE_COINBASE"
	CodeBadSubsidy        Code = "BAD_SUBSIDY"
	CodeCertIDReused      Code = "CERT_ID_REUSED"

	// Conflict-kind codes.
	CodeDoubleSpend  Code = "DOUBLE_SPEND"
	CodeRBFUnderbid  Code = "RBF_UNDERBID"
	CodeFeeTooLow    Code = "FEE_TOO_LOW"

	// UnknownParent-kind codes.
	CodeUnknownParent Code = "UNKNOWN_PARENT"

	// IntegrityFault-kind codes.
	CodeStorageInconsistent Code = "STORAGE_INCONSISTENT"
)

// Error is the structured error every rejecting operation returns:
// {code, message, details}, the shape a caller sees across the API.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]string
}

// New constructs an Error with no details.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, code Code, format string, args ...any) *Error {
	return New(kind, code, fmt.Sprintf(format, args...))
}

// WithDetail returns a copy of e with a detail key/value attached, for
// chaining at the call site: chainerr.New(...).WithDetail("outpoint", op.String()).
func (e *Error) WithDetail(key, value string) *Error {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Details)
}

// Is reports whether e and target share the same Code, so callers can use
// errors.Is(err, chainerr.New(chainerr.Conflict, chainerr.CodeDoubleSpend, ""))
// or, more conventionally, compare codes directly via As.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var ce *Error
	if !errors.As(err, &ce) {
		return nil, false
	}
	return ce, true
}

// HasCode reports whether err is a *Error carrying the given code.
func HasCode(err error, code Code) bool {
	ce, ok := As(err)
	return ok && ce.Code == code
}
