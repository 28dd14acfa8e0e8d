package core

// errors.go defines the reconciliation error taxonomy.
//
// Validation and lookup failures are recorded on the record itself and never
// returned as errors from batch operations. Resolution precondition failures
// and commit failures are returned to the caller, who decides what to do next.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound         = errors.New("record not found")
	ErrSessionNotFound        = errors.New("import session not found")
	ErrSessionBusy            = errors.New("import session busy: commit in progress")
	ErrSkippedNotAcknowledged = errors.New("skipped records not acknowledged")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrUnknownMode            = errors.New("unknown import mode")
	ErrProductNotFound        = errors.New("catalog product not found")
	ErrNoCommitResult         = errors.New("commit result not available")
	ErrMissingColumns         = errors.New("missing required columns")
)

// ValidationError is a single structural problem with a field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// MatchLookupError wraps a catalog failure for one record.
type MatchLookupError struct {
	Barcode string
	Err     error
}

func (e *MatchLookupError) Error() string {
	return fmt.Sprintf("catalog lookup failed for barcode %q: %v", e.Barcode, e.Err)
}

func (e *MatchLookupError) Unwrap() error { return e.Err }

// ResolutionPreconditionError reports a resolve/undo on a record in the wrong state.
type ResolutionPreconditionError struct {
	RecordID uuid.UUID
	Op       string
	Reason   string
}

func (e *ResolutionPreconditionError) Error() string {
	return fmt.Sprintf("%s rejected for record %s: %s", e.Op, e.RecordID, e.Reason)
}

// CommitBatchError reports the chunk that stopped a commit.
type CommitBatchError struct {
	Chunk   int // zero-based chunk index
	Records int
	Err     error
}

func (e *CommitBatchError) Error() string {
	return fmt.Sprintf("commit chunk %d (%d records) failed: %v", e.Chunk+1, e.Records, e.Err)
}

func (e *CommitBatchError) Unwrap() error { return e.Err }

// Retryable reports whether the chunk failed on a timeout rather than a rejection.
func (e *CommitBatchError) Retryable() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsRetryable reports whether a commit stopped on a deadline, so running it
// again may finish the remaining records.
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func precondition(id uuid.UUID, op, reason string) error {
	return &ResolutionPreconditionError{RecordID: id, Op: op, Reason: reason}
}
