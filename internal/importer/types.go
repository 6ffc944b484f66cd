// Package importer provides orchestration for importing exported photo albums into the gallery.
package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrAlbumNotFound is returned when a photo's source album has no imported gallery album.
	ErrAlbumNotFound = errors.New("album not found for photo")

	// ErrOverflowCreate is returned when an overflow album could not be created.
	ErrOverflowCreate = errors.New("overflow album could not be created")

	// ErrOverflowCycle is returned when an overflow chain links back to an album already in it.
	ErrOverflowCycle = errors.New("overflow chain loops")

	// ErrOverflowMissing is returned when a progress record points to an overflow album
	// that has no progress record of its own.
	ErrOverflowMissing = errors.New("overflow album progress record is missing")

	// ErrSessionUnavailable is returned when no gallery session could be established.
	ErrSessionUnavailable = errors.New("gallery session unavailable")

	// ErrUploadRejected is returned when the gallery answers an upload with a non-success code.
	ErrUploadRejected = errors.New("upload rejected")
)

// ItemError describes an album or photo that could not be imported during a run.
type ItemError struct {
	// Err is the error that stopped the item.
	Err error

	// Key is the ledger key of the item.
	Key string

	// Label is a human-readable description of the item.
	Label string
}

// Error implements the error interface.
func (e ItemError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Key, e.Label, e.Err)
}

// Unwrap returns the wrapped error.
func (e ItemError) Unwrap() error {
	return e.Err
}

// Result contains the outcome of an import run.
type Result struct {
	// AlbumsCached is the number of albums created by an earlier attempt of the job.
	AlbumsCached int

	// AlbumsCreated is the number of albums created by this run.
	AlbumsCreated int

	// AlbumsFailed is the number of albums that could not be created.
	AlbumsFailed int

	// DryRun indicates this was a dry-run (no writes to the gallery).
	DryRun bool

	// Errors contains the items that failed during this run.
	Errors []ItemError

	// OverflowAlbumsCreated is the number of overflow albums created by this run.
	OverflowAlbumsCreated int

	// PhotosCached is the number of photos uploaded by an earlier attempt of the job.
	PhotosCached int

	// PhotosFailed is the number of photos that could not be uploaded.
	PhotosFailed int

	// PhotosUploaded is the number of photos uploaded by this run.
	PhotosUploaded int
}
