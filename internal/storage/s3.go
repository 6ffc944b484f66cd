package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrBlobNotFound is returned when a temporary blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// S3API defines the S3 operations used by the blob store.
type S3API interface {
	// GetObject retrieves an object from S3.
	GetObject(
		ctx context.Context,
		params *s3.GetObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.GetObjectOutput, error)
}

// BlobStore reads temporary per-job photo blobs from S3. Blobs live under
// <prefix>/<jobID>/<reference>.
type BlobStore struct {
	// bucket is the S3 bucket name.
	bucket string

	// client is the S3 API client.
	client S3API

	// prefix is prepended to every key.
	prefix string
}

// NewBlobStore creates a new S3-backed blob store.
func NewBlobStore(client S3API, bucket string, prefix string) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	return &BlobStore{
		bucket: bucket,
		client: client,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Open returns a stream for the blob. The caller must close it.
func (b *BlobStore) Open(ctx context.Context, jobID string, reference string) (io.ReadCloser, error) {
	key, err := b.key(jobID, reference)
	if err != nil {
		return nil, err
	}

	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}

	return output.Body, nil
}

func (b *BlobStore) key(jobID string, reference string) (string, error) {
	if jobID == "" {
		return "", errors.New("job ID is required")
	}
	reference = strings.TrimLeft(reference, "/")
	if reference == "" {
		return "", errors.New("blob reference is required")
	}

	return path.Join(b.prefix, jobID, reference), nil
}
