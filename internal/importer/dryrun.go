package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/peteski22/albumbridge/internal/gallery"
)

// dryRunDestination wraps a Destination and logs write operations instead of executing them.
type dryRunDestination struct {
	counter     uint64
	destination Destination
	logger      *slog.Logger
}

// newDryRunDestination creates a new dryRunDestination that wraps the given Destination.
func newDryRunDestination(destination Destination, logger *slog.Logger) *dryRunDestination {
	return &dryRunDestination{
		destination: destination,
		logger:      logger,
	}
}

// CreateAlbum logs what would be created and returns a fake handle.
func (d *dryRunDestination) CreateAlbum(_ context.Context, album *gallery.Album) (*gallery.AlbumHandle, error) {
	fakeID := d.nextFakeID("album")

	d.logger.Info("[DRY-RUN] would create album",
		"fake_id", fakeID,
		"name", album.Name,
		"privacy", album.Privacy)

	return &gallery.AlbumHandle{
		AlbumKey:    fakeID,
		Description: album.Description,
		Name:        album.Name,
		URI:         "/api/v2/album/" + fakeID,
	}, nil
}

// Session delegates to the real destination.
func (d *dryRunDestination) Session(ctx context.Context) (*gallery.User, error) {
	return d.destination.Session(ctx)
}

// UploadImage logs what would be uploaded and returns a successful response.
func (d *dryRunDestination) UploadImage(
	_ context.Context,
	image *gallery.Image,
	albumURI string,
	_ io.Reader,
) (*gallery.UploadResponse, error) {
	fakeID := d.nextFakeID("image")

	d.logger.Info("[DRY-RUN] would upload image",
		"fake_id", fakeID,
		"album_uri", albumURI,
		"file_name", image.FileName,
		"title", image.Title)

	return &gallery.UploadResponse{
		Code:     200,
		ImageURI: "/api/v2/image/" + fakeID,
		Message:  "dry run",
	}, nil
}

// nextFakeID generates a unique fake ID for dry-run operations.
func (d *dryRunDestination) nextFakeID(prefix string) string {
	n := atomic.AddUint64(&d.counter, 1)
	return fmt.Sprintf("dry-run-%s-%d", prefix, n)
}
