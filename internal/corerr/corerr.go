// Package corerr defines the stable error taxonomy shared by every core
// component. Components return a *CoreError so the CLI and the
// daemon's JSON-framed replies can distinguish error kinds programmatically
// without parsing human text.
package corerr

import (
	"errors"
	"fmt"
)

// Kind is a stable error category. Kinds are part of the public contract:
// CLI exit codes and the daemon's {"Err":{"kind":...}} replies are keyed on
// them, so values must never be renamed once released.
type Kind string

const (
	NotARepository          Kind = "NotARepository"
	SessionNotFound         Kind = "SessionNotFound"
	NameTaken               Kind = "NameTaken"
	NameInvalid             Kind = "NameInvalid"
	AmbiguousSession        Kind = "AmbiguousSession"
	BaseMissing             Kind = "BaseMissing"
	BranchExists            Kind = "BranchExists"
	WorktreeConflict        Kind = "WorktreeConflict"
	UncommittedChanges      Kind = "UncommittedChanges"
	MergeConflicts          Kind = "MergeConflicts"
	NoIntegrationInProgress Kind = "NoIntegrationInProgress"
	UnresolvedConflicts     Kind = "UnresolvedConflicts"
	NoOperationInProgress   Kind = "NoOperationInProgress"
	ContainerLaunchFailed   Kind = "ContainerLaunchFailed"
	PoolExhausted           Kind = "PoolExhausted"
	NetworkIsolationFailed  Kind = "NetworkIsolationFailed"
	InsecureImage           Kind = "InsecureImage"
	DaemonUnavailable       Kind = "DaemonUnavailable"
	Timeout                 Kind = "Timeout"
	IoError                 Kind = "IoError"
	GitError                Kind = "GitError"
	NotInSession            Kind = "NotInSession"
	AlreadyExists           Kind = "AlreadyExists"
	PreconditionFailed      Kind = "PreconditionFailed"
)

// CoreError is the concrete error type returned by core operations.
type CoreError struct {
	Kind    Kind
	Message string
	// Details carries structured payload for kinds that need it, e.g. the
	// list of conflicted files for MergeConflicts/UnresolvedConflicts.
	Details any
	// Err is the underlying cause, if any (e.g. wrapped os/exec error).
	Err error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is supports errors.Is(err, corerr.New(kind, "")) style comparisons by kind.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a *CoreError with no underlying cause.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a *CoreError that records an underlying cause.
func Wrap(kind Kind, err error, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message, Err: err}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting for the message.
func Wrapf(kind Kind, err error, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails attaches structured details (e.g. conflicted file list) and
// returns the receiver for chaining.
func (e *CoreError) WithDetails(details any) *CoreError {
	e.Details = details
	return e
}

// Of reports whether err (or something it wraps) is a *CoreError of kind k.
func Of(err error, k Kind) bool {
	var ce *CoreError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == k
}

// As is a convenience wrapper around errors.As for *CoreError.
func As(err error) (*CoreError, bool) {
	var ce *CoreError
	ok := errors.As(err, &ce)
	return ce, ok
}

// ExitCode maps a Kind to the CLI's documented exit-code convention.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	ce, ok := As(err)
	if !ok {
		return 1
	}
	switch ce.Kind {
	case SessionNotFound:
		return 3
	case MergeConflicts, UnresolvedConflicts, NoIntegrationInProgress, NoOperationInProgress:
		return 4
	case BaseMissing, BranchExists, WorktreeConflict, UncommittedChanges, PreconditionFailed,
		ContainerLaunchFailed, PoolExhausted, NetworkIsolationFailed, InsecureImage:
		return 5
	case NameInvalid, AmbiguousSession:
		return 2
	default:
		return 1
	}
}
