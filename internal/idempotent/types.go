// Package idempotent provides a job-scoped ledger that runs side-effecting
// operations at most once per key and remembers their results across retries.
package idempotent

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadySucceeded is returned by a Store when a success is recorded for a key
// that already holds one.
var ErrAlreadySucceeded = errors.New("ledger entry already succeeded")

// State is the lifecycle state of a ledger entry.
type State string

const (
	// StateNeverAttempted marks a key with no recorded attempt.
	StateNeverAttempted State = ""

	// StateFailed marks a key whose latest attempt failed; it is retried on the next call.
	StateFailed State = "failed"

	// StateSucceeded marks a key whose result is cached and never recomputed.
	StateSucceeded State = "succeeded"
)

// Entry is the persisted ledger record for a single key.
type Entry struct {
	// Attempts is the number of failed attempts recorded for the key.
	Attempts int

	// Key is the caller-chosen stable key.
	Key string

	// Label is a human-readable description of the item.
	Label string

	// LastError is the message of the most recent failure.
	LastError string

	// Result is the JSON-encoded result of the successful attempt.
	Result []byte

	// State is the lifecycle state of the entry.
	State State

	// UpdatedAt is when the entry last changed.
	UpdatedAt time.Time
}

// Failure describes an operation that failed during the current execution.
type Failure struct {
	// Err is the error returned by the operation.
	Err error

	// Key is the ledger key of the failed operation.
	Key string

	// Label is a human-readable description of the item.
	Label string
}

// Store persists ledger entries for a job.
type Store interface {
	// Entry returns the entry for key, or nil if the key was never attempted.
	Entry(ctx context.Context, jobID string, key string) (*Entry, error)

	// RecordFailure marks key as failed unless it has already succeeded.
	RecordFailure(ctx context.Context, jobID string, key string, label string, message string) error

	// RecordSuccess stores the result for key. It returns ErrAlreadySucceeded
	// if a success was already recorded and must never overwrite it.
	RecordSuccess(ctx context.Context, jobID string, key string, label string, result []byte) error
}

// fatalError marks an error that must abort the whole job instead of a single item.
type fatalError struct {
	err error
}

// Error implements the error interface.
func (e *fatalError) Error() string {
	return e.err.Error()
}

// Unwrap returns the wrapped error.
func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal marks err as job-fatal. The ledger never swallows a fatal error.
func Fatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err, or any error it wraps, was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
