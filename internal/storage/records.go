// Package storage provides persistence implementations for the import service.
package storage

import "errors"

var (
	// ErrRecordExists is returned when creating a progress record that already exists.
	ErrRecordExists = errors.New("progress record already exists")

	// ErrStaleRecord is returned when updating a progress record whose version
	// changed since it was read.
	ErrStaleRecord = errors.New("progress record changed since it was read")
)

// ProgressRecord tracks how many photos a destination album holds and where its
// overflow continues.
type ProgressRecord struct {
	// AlbumURI is the destination album this record describes.
	AlbumURI string

	// OverflowAlbumURI is the next album in the overflow chain, or empty.
	OverflowAlbumURI string

	// PhotoCount is the number of photos successfully uploaded to the album.
	PhotoCount int

	// Version is the optimistic concurrency token; every update increments it.
	Version int
}

// HasOverflow reports whether the album continues in an overflow album.
func (r *ProgressRecord) HasOverflow() bool {
	return r.OverflowAlbumURI != ""
}
