// Package failure defines the error kinds shared by the ledger, the
// dispatcher and the relayer. Errors of the same kind compare equal under
// errors.Is regardless of message, so callers can branch on the kind without
// knowing which package produced the error.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and transport mapping.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindIneligibleMatch  Kind = "IneligibleMatch"
	KindTransferDenied   Kind = "TransferDenied"
	KindAlreadyFinalized Kind = "AlreadyFinalized"
	KindUnauthorized     Kind = "Unauthorized"
	KindForbidden        Kind = "Forbidden"
	KindSimulationFailed Kind = "SimulationFailed"
	KindSubmissionFailed Kind = "SubmissionFailed"
	KindCallerDenied     Kind = "CallerDenied"
	KindInvalidArgument  Kind = "InvalidArgument"
	KindInternal         Kind = "Internal"

	// KindPreconditionFailed marks a finalizing call whose approval
	// predicate does not hold yet.
	KindPreconditionFailed Kind = "PreconditionFailed"
)

// Error is a classified error. Err, when set, is the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New returns a classified error without a cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that sentinel errors match wrapped variants.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
