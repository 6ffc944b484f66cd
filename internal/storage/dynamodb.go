package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/peteski22/albumbridge/internal/idempotent"
)

const (
	albumSortKeyPrefix   = "ALBUM#"
	jobPartitionPrefix   = "JOB#"
	ledgerSortKeyPrefix  = "IDEMPOTENT#"
	notSucceededOrAbsent = "attribute_not_exists(pk) OR #state <> :succeeded"
)

// DynamoDBAPI defines the DynamoDB operations used by the job store.
type DynamoDBAPI interface {
	// GetItem retrieves an item from DynamoDB.
	GetItem(
		ctx context.Context,
		params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.GetItemOutput, error)

	// PutItem stores an item in DynamoDB.
	PutItem(
		ctx context.Context,
		params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.PutItemOutput, error)

	// UpdateItem modifies attributes of an item in DynamoDB.
	UpdateItem(
		ctx context.Context,
		params *dynamodb.UpdateItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.UpdateItemOutput, error)
}

// JobStore keeps album progress records and idempotency ledger entries for import
// jobs in a single DynamoDB table. Every item of a job shares the partition key
// JOB#<jobID>; the sort key distinguishes progress records (ALBUM#<uri>) from
// ledger entries (IDEMPOTENT#<key>).
type JobStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// now returns the current time.
	now func() time.Time

	// tableName is the name of the DynamoDB table.
	tableName string

	// ttl is how long items are kept before DynamoDB expires them. Zero disables expiry.
	ttl time.Duration
}

// JobStoreOption configures a JobStore.
type JobStoreOption func(*JobStore)

// WithTTL sets how long job items are retained before DynamoDB expires them.
func WithTTL(ttl time.Duration) JobStoreOption {
	return func(s *JobStore) {
		s.ttl = ttl
	}
}

// NewJobStore creates a new DynamoDB-backed job store.
func NewJobStore(client DynamoDBAPI, tableName string, opts ...JobStoreOption) (*JobStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	store := &JobStore{
		client:    client,
		now:       time.Now,
		tableName: tableName,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// Create stores a new progress record. It returns ErrRecordExists if a record for
// the album already exists, leaving the existing one untouched.
func (s *JobStore) Create(ctx context.Context, jobID string, rec ProgressRecord) error {
	if err := validateRecordKey(jobID, rec.AlbumURI); err != nil {
		return err
	}

	rec.Version = 0
	item := s.progressItem(jobID, rec)

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrRecordExists
		}
		return fmt.Errorf("putting progress record to DynamoDB: %w", err)
	}

	return nil
}

// Read returns the progress record for an album, or nil if none exists.
func (s *JobStore) Read(ctx context.Context, jobID string, albumURI string) (*ProgressRecord, error) {
	if err := validateRecordKey(jobID, albumURI); err != nil {
		return nil, err
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(jobID, albumSortKeyPrefix+albumURI),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting progress record from DynamoDB: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	rec, err := parseProgressRecord(output.Item)
	if err != nil {
		return nil, fmt.Errorf("parsing progress record: %w", err)
	}

	return rec, nil
}

// Update replaces a progress record if its stored version still matches rec.Version.
// On success rec.Version is advanced to the stored version. A mismatch returns
// ErrStaleRecord.
func (s *JobStore) Update(ctx context.Context, jobID string, rec *ProgressRecord) error {
	if rec == nil {
		return errors.New("progress record is required")
	}
	if err := validateRecordKey(jobID, rec.AlbumURI); err != nil {
		return err
	}

	next := *rec
	next.Version++

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                s.progressItem(jobID, next),
		ConditionExpression: aws.String("attribute_exists(pk) AND version = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Version)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrStaleRecord
		}
		return fmt.Errorf("updating progress record in DynamoDB: %w", err)
	}

	rec.Version = next.Version
	return nil
}

// Entry returns the ledger entry for key, or nil if the key was never attempted.
func (s *JobStore) Entry(ctx context.Context, jobID string, key string) (*idempotent.Entry, error) {
	if err := validateLedgerKey(jobID, key); err != nil {
		return nil, err
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(jobID, ledgerSortKeyPrefix+key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting ledger entry from DynamoDB: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	entry, err := parseLedgerEntry(output.Item)
	if err != nil {
		return nil, fmt.Errorf("parsing ledger entry: %w", err)
	}

	return entry, nil
}

// RecordFailure marks key as failed and counts the attempt. An entry that already
// succeeded is left untouched.
func (s *JobStore) RecordFailure(ctx context.Context, jobID string, key string, label string, message string) error {
	if err := validateLedgerKey(jobID, key); err != nil {
		return err
	}

	now := s.now().UTC()
	update := "SET #state = :failed, label = :label, last_error = :message, updated_at = :now, " +
		"attempts = if_not_exists(attempts, :zero) + :one"
	values := map[string]types.AttributeValue{
		":failed":    &types.AttributeValueMemberS{Value: string(idempotent.StateFailed)},
		":label":     &types.AttributeValueMemberS{Value: label},
		":message":   &types.AttributeValueMemberS{Value: message},
		":now":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":one":       &types.AttributeValueMemberN{Value: "1"},
		":succeeded": &types.AttributeValueMemberS{Value: string(idempotent.StateSucceeded)},
		":zero":      &types.AttributeValueMemberN{Value: "0"},
	}
	if s.ttl > 0 {
		update += ", expires_at = :expires"
		values[":expires"] = s.expiresAt(now)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(jobID, ledgerSortKeyPrefix+key),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(notSucceededOrAbsent),
		ExpressionAttributeNames:  map[string]string{"#state": "state"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil
		}
		return fmt.Errorf("recording ledger failure in DynamoDB: %w", err)
	}

	return nil
}

// RecordSuccess stores the result for key. It returns idempotent.ErrAlreadySucceeded
// if a success was already recorded.
func (s *JobStore) RecordSuccess(ctx context.Context, jobID string, key string, label string, result []byte) error {
	if err := validateLedgerKey(jobID, key); err != nil {
		return err
	}

	now := s.now().UTC()
	update := "SET #state = :succeeded, label = :label, #result = :result, updated_at = :now"
	values := map[string]types.AttributeValue{
		":label":     &types.AttributeValueMemberS{Value: label},
		":now":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":result":    &types.AttributeValueMemberB{Value: result},
		":succeeded": &types.AttributeValueMemberS{Value: string(idempotent.StateSucceeded)},
	}
	if s.ttl > 0 {
		update += ", expires_at = :expires"
		values[":expires"] = s.expiresAt(now)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(jobID, ledgerSortKeyPrefix+key),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(notSucceededOrAbsent),
		ExpressionAttributeNames:  map[string]string{"#state": "state", "#result": "result"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return idempotent.ErrAlreadySucceeded
		}
		return fmt.Errorf("recording ledger success in DynamoDB: %w", err)
	}

	return nil
}

func (s *JobStore) expiresAt(now time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttl).Unix(), 10)}
}

func (s *JobStore) progressItem(jobID string, rec ProgressRecord) map[string]types.AttributeValue {
	item := itemKey(jobID, albumSortKeyPrefix+rec.AlbumURI)
	item["album_uri"] = &types.AttributeValueMemberS{Value: rec.AlbumURI}
	item["photo_count"] = &types.AttributeValueMemberN{Value: strconv.Itoa(rec.PhotoCount)}
	item["version"] = &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Version)}
	if rec.OverflowAlbumURI != "" {
		item["overflow_album_uri"] = &types.AttributeValueMemberS{Value: rec.OverflowAlbumURI}
	}
	if s.ttl > 0 {
		item["expires_at"] = s.expiresAt(s.now())
	}
	return item
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func itemKey(jobID string, sortKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: jobPartitionPrefix + jobID},
		"sk": &types.AttributeValueMemberS{Value: sortKey},
	}
}

func parseLedgerEntry(item map[string]types.AttributeValue) (*idempotent.Entry, error) {
	entry := &idempotent.Entry{}

	if v, ok := item["sk"].(*types.AttributeValueMemberS); ok {
		entry.Key = strings.TrimPrefix(v.Value, ledgerSortKeyPrefix)
	}
	if v, ok := item["state"].(*types.AttributeValueMemberS); ok {
		entry.State = idempotent.State(v.Value)
	}
	if v, ok := item["label"].(*types.AttributeValueMemberS); ok {
		entry.Label = v.Value
	}
	if v, ok := item["last_error"].(*types.AttributeValueMemberS); ok {
		entry.LastError = v.Value
	}
	if v, ok := item["result"].(*types.AttributeValueMemberB); ok {
		entry.Result = v.Value
	}
	if v, ok := item["attempts"].(*types.AttributeValueMemberN); ok {
		attempts, err := strconv.Atoi(v.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing attempts: %w", err)
		}
		entry.Attempts = attempts
	}
	if v, ok := item["updated_at"].(*types.AttributeValueMemberS); ok {
		t, err := time.Parse(time.RFC3339, v.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		entry.UpdatedAt = t
	}

	return entry, nil
}

func parseProgressRecord(item map[string]types.AttributeValue) (*ProgressRecord, error) {
	rec := &ProgressRecord{}

	if v, ok := item["album_uri"].(*types.AttributeValueMemberS); ok {
		rec.AlbumURI = v.Value
	}
	if v, ok := item["overflow_album_uri"].(*types.AttributeValueMemberS); ok {
		rec.OverflowAlbumURI = v.Value
	}
	if v, ok := item["photo_count"].(*types.AttributeValueMemberN); ok {
		count, err := strconv.Atoi(v.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing photo count: %w", err)
		}
		rec.PhotoCount = count
	}
	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		version, err := strconv.Atoi(v.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing version: %w", err)
		}
		rec.Version = version
	}

	return rec, nil
}

func validateLedgerKey(jobID string, key string) error {
	if jobID == "" {
		return errors.New("job ID is required")
	}
	if key == "" {
		return errors.New("ledger key is required")
	}
	return nil
}

func validateRecordKey(jobID string, albumURI string) error {
	if jobID == "" {
		return errors.New("job ID is required")
	}
	if albumURI == "" {
		return errors.New("album URI is required")
	}
	return nil
}
