package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/peteski22/albumbridge/internal/config"
	"github.com/peteski22/albumbridge/internal/gallery"
	"github.com/peteski22/albumbridge/internal/importer"
	"github.com/peteski22/albumbridge/internal/source"
	"github.com/peteski22/albumbridge/internal/storage"
)

// ImportEvent is the Lambda payload that starts or resumes an import job.
//
//nolint:tagliatelle // Event payloads use snake_case.
type ImportEvent struct {
	// ExportID identifies the export to import.
	ExportID string `json:"export_id"`

	// JobID identifies the job. Retries must reuse it. Defaults to ExportID.
	JobID string `json:"job_id"`
}

// ImportSummary is the outcome of an import job reported to the invoker.
//
//nolint:tagliatelle // Event payloads use snake_case.
type ImportSummary struct {
	AlbumsCached          int      `json:"albums_cached"`
	AlbumsCreated         int      `json:"albums_created"`
	AlbumsFailed          int      `json:"albums_failed"`
	DryRun                bool     `json:"dry_run"`
	FailedKeys            []string `json:"failed_keys,omitempty"`
	JobID                 string   `json:"job_id"`
	OverflowAlbumsCreated int      `json:"overflow_albums_created"`
	PhotosCached          int      `json:"photos_cached"`
	PhotosFailed          int      `json:"photos_failed"`
	PhotosUploaded        int      `json:"photos_uploaded"`
}

// jobID returns the job the event refers to.
func (e ImportEvent) jobID() string {
	if e.JobID != "" {
		return e.JobID
	}
	return e.ExportID
}

// handler imports one export. A returned error means the job did not finish and the
// invocation should be retried with the same event.
func handler(ctx context.Context, event ImportEvent) (*ImportSummary, error) {
	if event.ExportID == "" {
		return nil, errors.New("export_id is required")
	}
	jobID := event.jobID()

	slog.InfoContext(ctx, "starting import", "job_id", jobID, "export_id", event.ExportID)

	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	limits := config.DefaultLimits()
	if settings.SSM.LimitsParameterName != "" {
		limitsStore, err := storage.NewLimitsStore(ssm.NewFromConfig(awsCfg), settings.SSM.LimitsParameterName, limits)
		if err != nil {
			return nil, fmt.Errorf("creating limits store: %w", err)
		}
		if limits, err = limitsStore.Limits(ctx); err != nil {
			return nil, fmt.Errorf("loading limits: %w", err)
		}
	}

	tokenStore, err := storage.NewTokenStore(
		secretsmanager.NewFromConfig(awsCfg),
		settings.Gallery.RefreshTokenSecretARN,
	)
	if err != nil {
		return nil, fmt.Errorf("creating token store: %w", err)
	}

	galleryClient, err := gallery.NewClient(gallery.Config{
		ClientID:     settings.Gallery.ClientID,
		ClientSecret: settings.Gallery.ClientSecret,
		TokenStore:   tokenStore,
		TokenURL:     settings.Gallery.TokenURL,
	},
		gallery.WithBaseURL(settings.Gallery.APIBaseURL),
		gallery.WithUploadURL(settings.Gallery.UploadURL),
		gallery.WithRateLimit(settings.Import.UploadRateLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gallery client: %w", err)
	}

	sourceClient, err := source.NewClient(settings.Source.APIKey, source.WithBaseURL(settings.Source.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("creating source client: %w", err)
	}

	jobStore, err := storage.NewJobStore(
		dynamodb.NewFromConfig(awsCfg),
		settings.DynamoDB.TableName,
		storage.WithTTL(settings.DynamoDB.JobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job store: %w", err)
	}

	blobStore, err := storage.NewBlobStore(s3.NewFromConfig(awsCfg), settings.Blobs.BucketName, settings.Blobs.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	albums, err := sourceClient.Albums(ctx, event.ExportID)
	if err != nil {
		return nil, fmt.Errorf("fetching albums: %w", err)
	}
	photos, err := sourceClient.Photos(ctx, event.ExportID)
	if err != nil {
		return nil, fmt.Errorf("fetching photos: %w", err)
	}
	albums, photos = source.Transmogrify(albums, photos, limits)

	svc, err := importer.New(importer.Config{
		Blobs:        blobStore,
		Concurrency:  settings.Import.Concurrency,
		Destination:  galleryClient,
		JobCache:     jobStore,
		LedgerStore:  jobStore,
		Logger:       slog.Default(),
		MaxAlbumSize: limits.MaxAlbumSize,
		Remote:       sourceClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating import service: %w", err)
	}

	result, err := svc.Import(ctx, jobID, albums, photos)
	summary := newImportSummary(jobID, result)
	if err != nil {
		return summary, fmt.Errorf("importing export %s: %w", event.ExportID, err)
	}

	return summary, nil
}

// newImportSummary converts an import result into the reported summary.
func newImportSummary(jobID string, result *importer.Result) *ImportSummary {
	summary := &ImportSummary{JobID: jobID}
	if result == nil {
		return summary
	}

	summary.AlbumsCached = result.AlbumsCached
	summary.AlbumsCreated = result.AlbumsCreated
	summary.AlbumsFailed = result.AlbumsFailed
	summary.DryRun = result.DryRun
	summary.OverflowAlbumsCreated = result.OverflowAlbumsCreated
	summary.PhotosCached = result.PhotosCached
	summary.PhotosFailed = result.PhotosFailed
	summary.PhotosUploaded = result.PhotosUploaded
	for _, itemErr := range result.Errors {
		summary.FailedKeys = append(summary.FailedKeys, itemErr.Key)
	}

	return summary
}
