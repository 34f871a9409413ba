package core

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobTerminal       = errors.New("job already in a terminal state")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrUnknownQueue      = errors.New("unknown print queue")
)

// StagingError reports that a source file could not be made available
// to the remote shell.
type StagingError struct {
	FilePath string
	Err      error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("failed to stage %s: %v", e.FilePath, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// SubmitError aggregates a partial multi-copy failure: which copy
// indices (1-based) failed and why. The overall submission is a success
// only when FailureCount is zero.
type SubmitError struct {
	SuccessCount  int
	FailureCount  int
	FailedCopies  []int
	FirstCauseErr error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%d of %d copies failed (copies %v): %v",
		e.FailureCount, e.SuccessCount+e.FailureCount, e.FailedCopies, e.FirstCauseErr)
}

func (e *SubmitError) Unwrap() error {
	return e.FirstCauseErr
}
