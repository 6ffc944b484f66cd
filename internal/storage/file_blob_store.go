package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileBlobStore reads temporary per-job photo blobs from a local directory laid out
// as <dir>/<jobID>/<reference>.
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore creates a new FileBlobStore rooted at dir.
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if dir == "" {
		return nil, errors.New("blob directory is required")
	}
	return &FileBlobStore{dir: dir}, nil
}

// Open returns a stream for the blob. The caller must close it.
func (s *FileBlobStore) Open(_ context.Context, jobID string, reference string) (io.ReadCloser, error) {
	if jobID == "" {
		return nil, errors.New("job ID is required")
	}
	if reference == "" {
		return nil, errors.New("blob reference is required")
	}

	root := filepath.Join(s.dir, jobID)
	p := filepath.Join(root, filepath.FromSlash(reference))
	if !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return nil, fmt.Errorf("blob reference escapes job directory: %s", reference)
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, p)
		}
		return nil, fmt.Errorf("opening blob file: %w", err)
	}

	return f, nil
}
