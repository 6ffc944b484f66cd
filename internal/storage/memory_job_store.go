package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/peteski22/albumbridge/internal/idempotent"
)

// MemoryJobStore is a job store that keeps everything in process memory.
// Used for dry-run mode and local runs without a DynamoDB table; state does not
// survive a restart.
type MemoryJobStore struct {
	entries map[string]idempotent.Entry
	mu      sync.RWMutex
	records map[string]ProgressRecord
}

// NewMemoryJobStore creates a new empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		entries: make(map[string]idempotent.Entry),
		records: make(map[string]ProgressRecord),
	}
}

// Create stores a new progress record, or returns ErrRecordExists.
func (s *MemoryJobStore) Create(_ context.Context, jobID string, rec ProgressRecord) error {
	if err := validateRecordKey(jobID, rec.AlbumURI); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(jobID, rec.AlbumURI)
	if _, ok := s.records[k]; ok {
		return ErrRecordExists
	}
	rec.Version = 0
	s.records[k] = rec
	return nil
}

// Read returns a copy of the progress record, or nil if none exists.
func (s *MemoryJobStore) Read(_ context.Context, jobID string, albumURI string) (*ProgressRecord, error) {
	if err := validateRecordKey(jobID, albumURI); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[memoryKey(jobID, albumURI)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Update replaces a progress record if its version still matches.
func (s *MemoryJobStore) Update(_ context.Context, jobID string, rec *ProgressRecord) error {
	if rec == nil {
		return errors.New("progress record is required")
	}
	if err := validateRecordKey(jobID, rec.AlbumURI); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(jobID, rec.AlbumURI)
	current, ok := s.records[k]
	if !ok || current.Version != rec.Version {
		return ErrStaleRecord
	}

	next := *rec
	next.Version++
	s.records[k] = next
	rec.Version = next.Version
	return nil
}

// Entry returns a copy of the ledger entry, or nil if the key was never attempted.
func (s *MemoryJobStore) Entry(_ context.Context, jobID string, key string) (*idempotent.Entry, error) {
	if err := validateLedgerKey(jobID, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[memoryKey(jobID, key)]
	if !ok {
		return nil, nil
	}
	e.Result = append([]byte(nil), e.Result...)
	return &e, nil
}

// RecordFailure marks key as failed unless it already succeeded.
func (s *MemoryJobStore) RecordFailure(_ context.Context, jobID string, key string, label string, message string) error {
	if err := validateLedgerKey(jobID, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(jobID, key)
	e := s.entries[k]
	if e.State == idempotent.StateSucceeded {
		return nil
	}
	e.Attempts++
	e.Key = key
	e.Label = label
	e.LastError = message
	e.State = idempotent.StateFailed
	e.UpdatedAt = time.Now().UTC()
	s.entries[k] = e
	return nil
}

// RecordSuccess stores the result for key once.
func (s *MemoryJobStore) RecordSuccess(_ context.Context, jobID string, key string, label string, result []byte) error {
	if err := validateLedgerKey(jobID, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(jobID, key)
	e := s.entries[k]
	if e.State == idempotent.StateSucceeded {
		return idempotent.ErrAlreadySucceeded
	}
	e.Key = key
	e.Label = label
	e.Result = append([]byte(nil), result...)
	e.State = idempotent.StateSucceeded
	e.UpdatedAt = time.Now().UTC()
	s.entries[k] = e
	return nil
}

func memoryKey(jobID string, key string) string {
	return jobID + "\x00" + key
}
