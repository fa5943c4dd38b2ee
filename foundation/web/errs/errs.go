// Package errs provides the trusted-error wrapper handlers use to carry
// an HTTP status code alongside a rejection a client caused (a malformed
// submit_tx payload, a double-spend, an unknown outpoint) so the error
// middleware can render the right status without re-deriving it.
package errs

import "errors"

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted pairs an error the application already understands with the
// HTTP status code that should be returned for it.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps err with status, for use when a handler encounters an
// error it expects and knows how to report.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface, returning the wrapped error's
// message — this is what ends up in the service's logs.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// IsTrusted reports whether err is a *Trusted.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted extracts the *Trusted from err, or nil if it isn't one.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}
