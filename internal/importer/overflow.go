package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/peteski22/albumbridge/internal/gallery"
	"github.com/peteski22/albumbridge/internal/idempotent"
	"github.com/peteski22/albumbridge/internal/storage"
)

const (
	// commitAttempts bounds how often a photo count increment is retried after losing
	// a version race.
	commitAttempts = 3

	// overflowSuffix is appended to album names and ledger keys of overflow albums.
	overflowSuffix = "-overflow"
)

// placement is what the tracker must do with a progress record to place a photo.
type placement int

const (
	// placementRoom means the album has room for the photo.
	placementRoom placement = iota

	// placementCreateOverflow means the album is full and has no overflow album yet.
	placementCreateOverflow

	// placementLoadOverflow means the album is full and continues in an existing overflow album.
	placementLoadOverflow
)

// overflowTracker decides which gallery album in a source album's overflow chain
// receives the next photo. Each chain must have a single writer.
type overflowTracker struct {
	created      atomic.Int64
	destination  Destination
	jobCache     JobCache
	jobID        string
	ledger       *idempotent.Ledger
	logger       *slog.Logger
	maxAlbumSize int
}

// Resolve returns the progress record of the first album in the chain of sourceAlbumID
// with room for another photo, creating an overflow album when the chain is full.
func (t *overflowTracker) Resolve(ctx context.Context, sourceAlbumID string) (*storage.ProgressRecord, error) {
	root, ok, err := idempotent.Cached[*gallery.AlbumHandle](ctx, t.ledger, sourceAlbumID)
	if err != nil {
		return nil, err
	}
	if !ok || root == nil || root.URI == "" {
		return nil, fmt.Errorf("%w: %s", ErrAlbumNotFound, sourceAlbumID)
	}

	rec, err := t.read(ctx, root.URI)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if rec, err = t.ensure(ctx, root.URI); err != nil {
			return nil, err
		}
	}

	visited := map[string]bool{rec.AlbumURI: true}
	for depth := 0; ; depth++ {
		switch t.place(rec) {
		case placementRoom:
			return rec, nil

		case placementLoadOverflow:
			next, err := t.read(ctx, rec.OverflowAlbumURI)
			if err != nil {
				return nil, err
			}
			if next == nil {
				return nil, fmt.Errorf("%w: %s", ErrOverflowMissing, rec.OverflowAlbumURI)
			}
			rec = next

		case placementCreateOverflow:
			next, err := t.createOverflow(ctx, root, rec, depth+1)
			if err != nil {
				return nil, err
			}
			rec = next
		}

		if visited[rec.AlbumURI] {
			return nil, fmt.Errorf("%w: %s", ErrOverflowCycle, rec.AlbumURI)
		}
		visited[rec.AlbumURI] = true
	}
}

// Commit records one more photo in the album of rec. A lost version race is retried
// on the latest record, so the count stays exact even if the album is now over its cap.
// After commitAttempts lost races it returns an ErrStaleRecord error that is not fatal.
func (t *overflowTracker) Commit(ctx context.Context, rec *storage.ProgressRecord) error {
	next := *rec

	for attempt := 1; ; attempt++ {
		next.PhotoCount++

		err := t.jobCache.Update(ctx, t.jobID, &next)
		switch {
		case err == nil:
			*rec = next
			return nil
		case !errors.Is(err, storage.ErrStaleRecord):
			return idempotent.Fatal(fmt.Errorf("updating progress record %s: %w", next.AlbumURI, err))
		case attempt == commitAttempts:
			return fmt.Errorf("updating progress record %s: %w", next.AlbumURI, err)
		}

		t.logger.Warn("progress record changed, retrying",
			"job_id", t.jobID,
			"album_uri", next.AlbumURI,
			"attempt", attempt)

		latest, err := t.read(ctx, next.AlbumURI)
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("%w: %s", ErrOverflowMissing, next.AlbumURI)
		}
		next = *latest
	}
}

// Created returns the number of overflow albums this tracker created.
func (t *overflowTracker) Created() int {
	return int(t.created.Load())
}

// createOverflow creates the overflow album that continues current and links it.
// The overflow record always exists before current points at it.
func (t *overflowTracker) createOverflow(
	ctx context.Context,
	root *gallery.AlbumHandle,
	current *storage.ProgressRecord,
	depth int,
) (*storage.ProgressRecord, error) {
	album := overflowAlbum(root, depth)
	key := current.AlbumURI + overflowSuffix

	called := false
	handle, ok, err := idempotent.Execute(ctx, t.ledger, key, album.Name,
		func(ctx context.Context) (*gallery.AlbumHandle, error) {
			called = true
			h, err := t.destination.CreateAlbum(ctx, album)
			if err != nil {
				return nil, fmt.Errorf("creating overflow album: %w", err)
			}
			return h, nil
		})
	if err != nil {
		return nil, err
	}
	if !ok || handle == nil || handle.URI == "" {
		return nil, fmt.Errorf("%w: %s", ErrOverflowCreate, album.Name)
	}

	if called {
		t.created.Add(1)
		t.logger.Info("created overflow album",
			"job_id", t.jobID,
			"album_uri", current.AlbumURI,
			"overflow_album_uri", handle.URI,
			"name", album.Name)
	}

	next, err := t.ensure(ctx, handle.URI)
	if err != nil {
		return nil, err
	}

	current.OverflowAlbumURI = handle.URI
	if err := t.jobCache.Update(ctx, t.jobID, current); err != nil {
		if errors.Is(err, storage.ErrStaleRecord) {
			return nil, fmt.Errorf("linking overflow album to %s: %w", current.AlbumURI, err)
		}
		return nil, idempotent.Fatal(fmt.Errorf("linking overflow album to %s: %w", current.AlbumURI, err))
	}

	return next, nil
}

// ensure creates the progress record for albumURI if it is absent and returns it.
func (t *overflowTracker) ensure(ctx context.Context, albumURI string) (*storage.ProgressRecord, error) {
	err := t.jobCache.Create(ctx, t.jobID, storage.ProgressRecord{AlbumURI: albumURI})
	if err != nil && !errors.Is(err, storage.ErrRecordExists) {
		return nil, idempotent.Fatal(fmt.Errorf("creating progress record %s: %w", albumURI, err))
	}

	rec, err := t.read(ctx, albumURI)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, idempotent.Fatal(fmt.Errorf("progress record %s missing after create", albumURI))
	}
	return rec, nil
}

func (t *overflowTracker) place(rec *storage.ProgressRecord) placement {
	switch {
	case rec.PhotoCount < t.maxAlbumSize:
		return placementRoom
	case rec.HasOverflow():
		return placementLoadOverflow
	default:
		return placementCreateOverflow
	}
}

func (t *overflowTracker) read(ctx context.Context, albumURI string) (*storage.ProgressRecord, error) {
	rec, err := t.jobCache.Read(ctx, t.jobID, albumURI)
	if err != nil {
		return nil, idempotent.Fatal(fmt.Errorf("reading progress record %s: %w", albumURI, err))
	}
	return rec, nil
}

// overflowAlbum derives the album that holds photos beyond the cap of the album depth-1
// steps down the chain of root: "Trip-overflow", then "Trip-overflow-2" and so on.
// Each link gets its own name so users can tell the albums of a long chain apart in
// the gallery, where names rather than URIs are shown.
func overflowAlbum(root *gallery.AlbumHandle, depth int) *gallery.Album {
	name := root.Name + overflowSuffix
	if depth > 1 {
		name += "-" + strconv.Itoa(depth)
	}

	return &gallery.Album{
		Description: root.Description,
		Name:        name,
		Privacy:     gallery.PrivacyUnlisted,
	}
}
