package delegate

import (
	"errors"
	"fmt"
)

// Sentinel errors shared with collaborators. Spawner, Resumer and store
// implementations wrap these with %w so the router can classify failures.
var (
	ErrSessionNotFound = errors.New("delegate: session not found")
	ErrAgentNotFound   = errors.New("delegate: agent not found")
)

// ErrorKind classifies a failed delegation.
type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "InvalidRequest"
	KindEmptyInstruction  ErrorKind = "EmptyInstruction"
	KindMissingAgent      ErrorKind = "MissingAgent"
	KindAgentNotFound     ErrorKind = "AgentNotFound"
	KindSpawnUnavailable  ErrorKind = "SpawnUnavailable"
	KindResumeUnavailable ErrorKind = "ResumeUnavailable"
	KindSessionNotFound   ErrorKind = "SessionNotFound"
	KindDelegationFailed  ErrorKind = "DelegationFailed"
	KindResumeFailed      ErrorKind = "ResumeFailed"
	KindCancelled         ErrorKind = "Cancelled"
)

// Error is the typed failure carried by a Result.
type Error struct {
	Kind    ErrorKind
	Message string
	// Err is the underlying collaborator error, if any.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// IsKind reports whether err is a delegation Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
