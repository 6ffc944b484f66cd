package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/peteski22/albumbridge/internal/config"
	"github.com/peteski22/albumbridge/internal/gallery"
	"github.com/peteski22/albumbridge/internal/idempotent"
	"github.com/peteski22/albumbridge/internal/source"
	"github.com/peteski22/albumbridge/internal/storage"
)

const defaultConcurrency = 1

// Config holds the required configuration for creating a Service.
type Config struct {
	// Blobs opens photos held in the temporary blob store.
	Blobs BlobStore

	// Concurrency is the number of source albums processed in parallel. Default is 1.
	Concurrency int

	// Destination is the gallery the photos are imported into.
	Destination Destination

	// DryRun indicates whether to skip writes to the gallery. Progress and ledger
	// entries are then kept in memory so durable job state is never touched.
	DryRun bool

	// JobCache persists album progress records.
	JobCache JobCache

	// LedgerStore persists idempotency ledger entries.
	LedgerStore idempotent.Store

	// Logger is the structured logger for the service.
	Logger *slog.Logger

	// MaxAlbumSize is the gallery's per-album photo cap.
	// Default is config.DefaultMaxAlbumSize.
	MaxAlbumSize int

	// Remote opens photos served from a remote URL.
	Remote RemoteFetcher
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Blobs == nil {
		errs = append(errs, errors.New("blob store is required"))
	}
	if c.Destination == nil {
		errs = append(errs, errors.New("destination is required"))
	}
	if c.JobCache == nil {
		errs = append(errs, errors.New("job cache is required"))
	}
	if c.LedgerStore == nil {
		errs = append(errs, errors.New("ledger store is required"))
	}
	if c.Remote == nil {
		errs = append(errs, errors.New("remote fetcher is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.MaxAlbumSize < 0 {
		errs = append(errs, fmt.Errorf("max album size must not be negative, got %d", c.MaxAlbumSize))
	}
	return errors.Join(errs...)
}

// Service orchestrates the import of exported albums and photos into the gallery.
type Service struct {
	blobs        BlobStore
	concurrency  int
	destination  Destination
	dryRun       bool
	jobCache     JobCache
	ledgerStore  idempotent.Store
	logger       *slog.Logger
	maxAlbumSize int
	remote       RemoteFetcher
}

// importRun holds the state of a single Import call.
type importRun struct {
	jobID   string
	ledger  *idempotent.Ledger
	mu      sync.Mutex
	result  *Result
	tracker *overflowTracker
}

// New creates a new import orchestration service.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	destination := cfg.Destination
	jobCache := cfg.JobCache
	ledgerStore := cfg.LedgerStore
	if cfg.DryRun {
		destination = newDryRunDestination(cfg.Destination, logger)
		mem := storage.NewMemoryJobStore()
		jobCache = mem
		ledgerStore = mem
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	maxAlbumSize := cfg.MaxAlbumSize
	if maxAlbumSize <= 0 {
		maxAlbumSize = config.DefaultMaxAlbumSize
	}

	return &Service{
		blobs:        cfg.Blobs,
		concurrency:  concurrency,
		destination:  destination,
		dryRun:       cfg.DryRun,
		jobCache:     jobCache,
		ledgerStore:  ledgerStore,
		logger:       logger,
		maxAlbumSize: maxAlbumSize,
		remote:       cfg.Remote,
	}, nil
}

// Import runs both import phases for a job: every album is created, then every photo
// is uploaded into its album's overflow chain. Albums and photos that fail are recorded
// in the result and retried by the next Import with the same job ID. The returned error
// is non-nil only when the job itself cannot continue, in which case the partial
// result is returned alongside it.
func (s *Service) Import(ctx context.Context, jobID string, albums []source.Album, photos []source.Photo) (*Result, error) {
	result := &Result{DryRun: s.dryRun}

	ledger, err := idempotent.NewLedger(s.ledgerStore, jobID, idempotent.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	user, err := s.destination.Session(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	if user == nil {
		return result, ErrSessionUnavailable
	}

	s.logger.Info("starting import",
		"job_id", jobID,
		"user", user.NickName,
		"albums", len(albums),
		"photos", len(photos),
		"max_album_size", s.maxAlbumSize,
		"concurrency", s.concurrency,
		"dry_run", s.dryRun)

	run := &importRun{
		jobID:  jobID,
		ledger: ledger,
		result: result,
		tracker: &overflowTracker{
			destination:  s.destination,
			jobCache:     s.jobCache,
			jobID:        jobID,
			ledger:       ledger,
			logger:       s.logger,
			maxAlbumSize: s.maxAlbumSize,
		},
	}
	defer run.finish()

	if err := s.importAlbums(ctx, run, albums); err != nil {
		return result, fmt.Errorf("importing albums: %w", err)
	}

	if err := s.importPhotos(ctx, run, photos); err != nil {
		return result, fmt.Errorf("importing photos: %w", err)
	}

	s.logImportComplete(jobID, run)
	return result, nil
}

// importAlbums creates every album at most once per job.
func (s *Service) importAlbums(ctx context.Context, run *importRun, albums []source.Album) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, album := range albums {
		g.Go(func() error {
			return s.importAlbum(gctx, run, album)
		})
	}

	return g.Wait()
}

// importAlbum creates a single album and its progress record.
func (s *Service) importAlbum(ctx context.Context, run *importRun, album source.Album) error {
	called := false
	handle, ok, err := idempotent.Execute(ctx, run.ledger, album.ID, album.Name,
		func(ctx context.Context) (*gallery.AlbumHandle, error) {
			called = true
			h, err := s.destination.CreateAlbum(ctx, album.ToDomainType())
			if err != nil {
				return nil, fmt.Errorf("creating album: %w", err)
			}
			return h, nil
		})
	if err != nil {
		return err
	}

	if !ok {
		run.count(func(r *Result) { r.AlbumsFailed++ })
		return nil
	}

	if _, err := run.tracker.ensure(ctx, handle.URI); err != nil {
		return err
	}

	if called {
		run.count(func(r *Result) { r.AlbumsCreated++ })
	} else {
		run.count(func(r *Result) { r.AlbumsCached++ })
	}

	s.logger.Info("imported album",
		"job_id", run.jobID,
		"album_id", album.ID,
		"album_uri", handle.URI,
		"cached", !called)

	return nil
}

// importPhotos uploads every photo at most once per job. Photos of one source album
// share an overflow chain and are uploaded in order by a single worker.
func (s *Service) importPhotos(ctx context.Context, run *importRun, photos []source.Photo) error {
	var order []string
	byAlbum := make(map[string][]source.Photo)
	for _, p := range photos {
		if _, ok := byAlbum[p.AlbumID]; !ok {
			order = append(order, p.AlbumID)
		}
		byAlbum[p.AlbumID] = append(byAlbum[p.AlbumID], p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, albumID := range order {
		albumPhotos := byAlbum[albumID]
		g.Go(func() error {
			for _, photo := range albumPhotos {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := s.importPhoto(gctx, run, photo); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// importPhoto uploads a single photo into the first album of its chain with room.
func (s *Service) importPhoto(ctx context.Context, run *importRun, photo source.Photo) error {
	label := photo.Title
	if label == "" {
		label = photo.DataID
	}

	called := false
	_, ok, err := idempotent.Execute(ctx, run.ledger, photo.Key(), label,
		func(ctx context.Context) (*gallery.UploadResponse, error) {
			called = true
			return s.uploadPhoto(ctx, run, photo)
		})
	if err != nil {
		return err
	}

	switch {
	case !ok:
		run.count(func(r *Result) { r.PhotosFailed++ })
	case called:
		run.count(func(r *Result) { r.PhotosUploaded++ })
	default:
		run.count(func(r *Result) { r.PhotosCached++ })
	}

	return nil
}

// uploadPhoto resolves the target album, uploads the photo bytes and counts the photo
// against the album it landed in.
func (s *Service) uploadPhoto(ctx context.Context, run *importRun, photo source.Photo) (*gallery.UploadResponse, error) {
	target, err := run.tracker.Resolve(ctx, photo.AlbumID)
	if err != nil {
		return nil, err
	}

	stream, err := s.openPhoto(ctx, run.jobID, photo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	resp, err := s.destination.UploadImage(ctx, photo.ToDomainType(), target.AlbumURI, stream)
	if err != nil {
		return nil, fmt.Errorf("uploading photo: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUploadRejected, resp.Code, resp.Message)
	}

	// The gallery holds the photo from here on; a failed count is logged, not retried.
	if err := run.tracker.Commit(ctx, target); err != nil {
		if idempotent.IsFatal(err) {
			return nil, err
		}
		s.logger.Warn("photo uploaded but album count not updated",
			"job_id", run.jobID,
			"photo_key", photo.Key(),
			"album_uri", target.AlbumURI,
			"error", err)
		return resp, nil
	}

	s.logger.Debug("uploaded photo",
		"job_id", run.jobID,
		"photo_key", photo.Key(),
		"album_uri", target.AlbumURI,
		"photo_count", target.PhotoCount)

	return resp, nil
}

// openPhoto opens the photo bytes from the temporary blob store or the remote URL.
func (s *Service) openPhoto(ctx context.Context, jobID string, photo source.Photo) (io.ReadCloser, error) {
	if photo.InTempStore {
		rc, err := s.blobs.Open(ctx, jobID, photo.FetchableURL)
		if err != nil {
			return nil, fmt.Errorf("opening blob: %w", err)
		}
		return rc, nil
	}

	rc, err := s.remote.Open(ctx, photo.FetchableURL)
	if err != nil {
		return nil, fmt.Errorf("fetching photo: %w", err)
	}
	return rc, nil
}

// logImportComplete logs the final import summary.
func (s *Service) logImportComplete(jobID string, run *importRun) {
	run.mu.Lock()
	defer run.mu.Unlock()

	s.logger.Info("import completed",
		"job_id", jobID,
		"albums_created", run.result.AlbumsCreated,
		"albums_cached", run.result.AlbumsCached,
		"albums_failed", run.result.AlbumsFailed,
		"overflow_albums_created", run.tracker.Created(),
		"photos_uploaded", run.result.PhotosUploaded,
		"photos_cached", run.result.PhotosCached,
		"photos_failed", run.result.PhotosFailed,
		"errors", len(run.ledger.Failures()),
		"dry_run", s.dryRun)
}

// count applies fn to the run's result under its lock.
func (r *importRun) count(fn func(*Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.result)
}

// finish copies the failures and overflow count collected during the run into the result.
func (r *importRun) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.result.OverflowAlbumsCreated = r.tracker.Created()
	for _, f := range r.ledger.Failures() {
		r.result.Errors = append(r.result.Errors, ItemError{Err: f.Err, Key: f.Key, Label: f.Label})
	}
}
