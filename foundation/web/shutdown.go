package web

// shutdownError is returned by a handler to signal that the service
// cannot continue processing requests at all — an IntegrityFault
// surfacing through submit_block, say — distinguishing "this one request
// is bad" from "this node needs to stop".
type shutdownError struct {
	Message string
}

// NewShutdownError wraps message as a shutdownError.
func NewShutdownError(message string) error {
	return &shutdownError{message}
}

// Error implements the error interface.
func (se *shutdownError) Error() string {
	return se.Message
}

// IsShutdown reports whether err is a shutdownError.
func IsShutdown(err error) bool {
	se, ok := err.(*shutdownError)
	return ok && se != nil
}
