// Package uploaderr defines the error taxonomy of the upload pipeline.
// Validation, InvalidInput, Conflict and Storage errors abort the pipeline at
// the stage they occur; warnings are logged and never flip the success flag.
package uploaderr

import (
	"fmt"
	"time"
)

// ValidationError indicates bad caller input: wrong file suffix, oversize
// payload, missing user id, unparsable timestamp.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidInputError indicates a decoded tree with no usable session or laps.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func NewInvalidInputError(reason string) *InvalidInputError {
	return &InvalidInputError{Reason: reason}
}

// ConflictError indicates an activity for the same user and start instant
// already exists, detected either by the advisory pre-check or by the store's
// uniqueness constraint.
type ConflictError struct {
	UserID    string
	StartTime time.Time
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate activity for user %s at %s", e.UserID, e.StartTime.UTC().Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// StorageError wraps any backend read/write failure. BatchIndex is -1 unless
// the failure happened inside a record batch.
type StorageError struct {
	Op         string
	BatchIndex int
	Err        error
}

func (e *StorageError) Error() string {
	if e.BatchIndex >= 0 {
		return fmt.Sprintf("storage failure during %s (batch %d): %v", e.Op, e.BatchIndex, e.Err)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, BatchIndex: -1, Err: err}
}

func NewBatchStorageError(op string, batchIndex int, err error) *StorageError {
	return &StorageError{Op: op, BatchIndex: batchIndex, Err: err}
}

// CleanupWarning records a failed compensating delete. Non-fatal: the
// original storage failure is still the error surfaced to the caller.
type CleanupWarning struct {
	ActivityID string
	Err        error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("compensating delete of activity %s failed: %v", w.ActivityID, w.Err)
}

func (w *CleanupWarning) Unwrap() error {
	return w.Err
}

// Size warning messages emitted by the processor. Informational only.
const (
	WarnLapSampleCap = "lap sample cap exceeded"
	WarnLargeDataset = "unusually large dataset"
)
