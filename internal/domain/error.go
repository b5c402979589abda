package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound                = errors.New("entity not found")
	ErrAlreadyExists           = errors.New("entity already exists")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrOperationFailed         = errors.New("storage operation failed")
	ErrReadDatabaseRow         = errors.New("failed to read database row")
	ErrInvalidExecContext      = errors.New("invalid executor context")
	ErrLockNotAcquired         = errors.New("could not acquire lock")
	ErrExtractionUnavailable   = errors.New("field extraction service unavailable")
	ErrSubmissionNotReviewable = errors.New("submission is not awaiting review")
	ErrSubmissionFinal         = errors.New("submission is in a terminal state")
)
