package idempotent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Ledger runs keyed operations at most once per job. A successful result is
// cached in the Store and returned to every later call with the same key. A
// failed attempt is recorded but never blocks a later attempt.
type Ledger struct {
	// failures collects operations that failed during this execution.
	failures []Failure

	// group coalesces concurrent calls for the same key.
	group singleflight.Group

	// jobID scopes every entry written by this ledger.
	jobID string

	// logger is the structured logger for the ledger.
	logger *slog.Logger

	// mu protects failures.
	mu sync.Mutex

	// store persists ledger entries.
	store Store
}

// Option configures a Ledger.
type Option func(*Ledger)

// outcome is the shared result of a coalesced execution.
type outcome struct {
	data []byte
	ok   bool
}

// WithLogger sets the logger used by the ledger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger creates a ledger for the given job.
func NewLedger(store Store, jobID string, opts ...Option) (*Ledger, error) {
	var errs []error
	if store == nil {
		errs = append(errs, errors.New("ledger store is required"))
	}
	if jobID == "" {
		errs = append(errs, errors.New("job ID is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	l := &Ledger{
		jobID:  jobID,
		logger: slog.Default(),
		store:  store,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Execute returns the cached result for key if one exists. Otherwise it runs op,
// caches a successful result and returns it. A failed op is recorded and
// reported as (zero, false, nil) so the caller can continue with the next item.
// The error is non-nil only for job-fatal conditions: a Store failure or an op
// error marked with Fatal.
func Execute[T any](
	ctx context.Context,
	l *Ledger,
	key string,
	label string,
	op func(ctx context.Context) (T, error),
) (T, bool, error) {
	var zero T

	res, err, _ := l.group.Do(key, func() (any, error) {
		return l.execute(ctx, key, label, func(ctx context.Context) ([]byte, error) {
			v, err := op(ctx)
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encoding result: %w", err)
			}
			return data, nil
		})
	})
	if err != nil {
		return zero, false, err
	}

	out := res.(outcome)
	if !out.ok {
		return zero, false, nil
	}

	var v T
	if err := json.Unmarshal(out.data, &v); err != nil {
		return zero, false, Fatal(fmt.Errorf("decoding cached result for %s: %w", key, err))
	}
	return v, true, nil
}

// Cached returns the cached result for key without running anything.
func Cached[T any](ctx context.Context, l *Ledger, key string) (T, bool, error) {
	var zero T

	entry, err := l.store.Entry(ctx, l.jobID, key)
	if err != nil {
		return zero, false, Fatal(fmt.Errorf("reading ledger entry %s: %w", key, err))
	}
	if entry == nil || entry.State != StateSucceeded {
		return zero, false, nil
	}

	var v T
	if err := json.Unmarshal(entry.Result, &v); err != nil {
		return zero, false, Fatal(fmt.Errorf("decoding cached result for %s: %w", key, err))
	}
	return v, true, nil
}

// Failures returns the operations that failed during this execution.
func (l *Ledger) Failures() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Failure, len(l.failures))
	copy(out, l.failures)
	return out
}

// JobID returns the job the ledger is scoped to.
func (l *Ledger) JobID() string {
	return l.jobID
}

func (l *Ledger) execute(
	ctx context.Context,
	key string,
	label string,
	op func(ctx context.Context) ([]byte, error),
) (outcome, error) {
	entry, err := l.store.Entry(ctx, l.jobID, key)
	if err != nil {
		return outcome{}, Fatal(fmt.Errorf("reading ledger entry %s: %w", key, err))
	}
	if entry != nil && entry.State == StateSucceeded {
		l.logger.Debug("using cached result", "job_id", l.jobID, "key", key, "label", label)
		return outcome{data: entry.Result, ok: true}, nil
	}

	data, opErr := op(ctx)
	if opErr != nil {
		if IsFatal(opErr) {
			return outcome{}, opErr
		}
		return outcome{}, l.recordFailure(ctx, key, label, opErr)
	}

	err = l.store.RecordSuccess(ctx, l.jobID, key, label, data)
	switch {
	case errors.Is(err, ErrAlreadySucceeded):
		// Another worker finished first; its result is authoritative.
		l.logger.Warn("ledger entry succeeded concurrently",
			"job_id", l.jobID,
			"key", key,
			"label", label)
		existing, err := l.store.Entry(ctx, l.jobID, key)
		if err != nil {
			return outcome{}, Fatal(fmt.Errorf("reading ledger entry %s: %w", key, err))
		}
		if existing == nil || existing.State != StateSucceeded {
			return outcome{}, Fatal(fmt.Errorf("ledger entry %s reported succeeded but is missing", key))
		}
		return outcome{data: existing.Result, ok: true}, nil
	case err != nil:
		return outcome{}, Fatal(fmt.Errorf("recording success for %s: %w", key, err))
	}

	return outcome{data: data, ok: true}, nil
}

func (l *Ledger) recordFailure(ctx context.Context, key string, label string, opErr error) error {
	l.logger.Error("operation failed",
		"job_id", l.jobID,
		"key", key,
		"label", label,
		"error", opErr)

	l.mu.Lock()
	l.failures = append(l.failures, Failure{Err: opErr, Key: key, Label: label})
	l.mu.Unlock()

	if err := l.store.RecordFailure(ctx, l.jobID, key, label, opErr.Error()); err != nil {
		return Fatal(fmt.Errorf("recording failure for %s: %w", key, err))
	}
	return nil
}
