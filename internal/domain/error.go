package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Job lifecycle errors
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotRetryable      = errors.New("job is not in a retryable state")
	ErrRetryCeiling      = errors.New("retry ceiling exhausted")
	ErrNotDispatched     = errors.New("job has not been dispatched yet")
	ErrLockNotAcquired   = errors.New("could not acquire lock")

	// Upload errors
	ErrUploadNotFound = errors.New("upload session not found")
	ErrPartIntegrity  = errors.New("part list is missing or duplicates part numbers")
	ErrNotDurable     = errors.New("finalized object never became visible in storage")
)
