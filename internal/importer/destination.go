package importer

import (
	"context"
	"io"

	"github.com/peteski22/albumbridge/internal/gallery"
	"github.com/peteski22/albumbridge/internal/storage"
)

// Destination defines the gallery operations required by the import service.
type Destination interface {
	// CreateAlbum creates a new album and returns its handle.
	CreateAlbum(ctx context.Context, album *gallery.Album) (*gallery.AlbumHandle, error)

	// Session returns the user the gallery credentials belong to.
	Session(ctx context.Context) (*gallery.User, error)

	// UploadImage uploads the image bytes read from r into the album at albumURI.
	UploadImage(ctx context.Context, image *gallery.Image, albumURI string, r io.Reader) (*gallery.UploadResponse, error)
}

// JobCache persists album progress records for a job.
type JobCache interface {
	// Create stores a new record. It returns storage.ErrRecordExists if one already exists.
	Create(ctx context.Context, jobID string, rec storage.ProgressRecord) error

	// Read returns the record for albumURI, or nil if none exists.
	Read(ctx context.Context, jobID string, albumURI string) (*storage.ProgressRecord, error)

	// Update replaces the record if its version is unchanged and bumps rec.Version.
	// It returns storage.ErrStaleRecord otherwise.
	Update(ctx context.Context, jobID string, rec *storage.ProgressRecord) error
}

// BlobStore opens photos held in the job's temporary blob store.
type BlobStore interface {
	Open(ctx context.Context, jobID string, reference string) (io.ReadCloser, error)
}

// RemoteFetcher opens photos served from a remote URL.
type RemoteFetcher interface {
	Open(ctx context.Context, fetchURL string) (io.ReadCloser, error)
}
