package resolution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSubmission  = errors.New("invalid submission")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownCandidate   = errors.New("candidate is not part of the pending submission")
	ErrPendingClosed      = errors.New("pending submission is unknown, expired or already resolved")
	ErrProgressUnknown    = errors.New("commit progress is unknown, expired or already continued")
	ErrIllegalTransition  = errors.New("illegal resolution state transition")
	ErrCommitComplete     = errors.New("commit has no remaining steps")
)

// ValidationError lists the submission fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSubmission
}

// StorageError wraps a failed persistence call.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// PartialCommitError is returned when a write fails after an earlier write
// of the same commit succeeded. Progress holds what exists; the caller
// finishes with ContinueCommit(Progress.ID) instead of starting over.
type PartialCommitError struct {
	Progress CommitProgress
	Step     CommitStep
	Err      error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit: step %s failed: %v", e.Step, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }
