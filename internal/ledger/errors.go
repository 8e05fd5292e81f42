package ledger

import (
	"errors"
	"fmt"
)

// OpError is a ledger operation failure with a machine-readable code from
// internal/protocol. Every failure path maps to exactly one code so callers
// and tests can assert on the cause.
type OpError struct {
	Code string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(code, format string, args ...any) *OpError {
	return &OpError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the protocol error code from err, or "" if err carries
// none.
func CodeOf(err error) string {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}
