package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/peteski22/albumbridge/internal/config"
	"github.com/peteski22/albumbridge/internal/gallery"
	"github.com/peteski22/albumbridge/internal/idempotent"
	"github.com/peteski22/albumbridge/internal/importer"
	"github.com/peteski22/albumbridge/internal/source"
	"github.com/peteski22/albumbridge/internal/storage"
)

// jobStore is a JobCache that also persists ledger entries.
type jobStore interface {
	importer.JobCache
	idempotent.Store
}

// runImport imports the albums and photos of a local export manifest.
func runImport(ctx context.Context, cmd *cli.Command) error {
	manifestPath := cmd.String("manifest")
	dryRun := cmd.Bool("dry-run")

	cfg, err := config.LoadLocal()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	manifest, err := readManifestFile(manifestPath)
	if err != nil {
		return err
	}

	jobID := localJobID(cmd.String("job-id"), manifest.ExportID)

	tokenPath, err := config.TokenFilePath()
	if err != nil {
		return fmt.Errorf("getting token path: %w", err)
	}
	tokenStore, err := storage.NewFileTokenStore(tokenPath)
	if err != nil {
		return fmt.Errorf("creating token store: %w", err)
	}

	galleryClient, err := gallery.NewClient(gallery.Config{
		ClientID:     cfg.Gallery.ClientID,
		ClientSecret: cfg.Gallery.ClientSecret,
		TokenStore:   tokenStore,
		TokenURL:     cfg.Gallery.TokenURL,
	},
		gallery.WithBaseURL(cfg.Gallery.APIBaseURL),
		gallery.WithUploadURL(cfg.Gallery.UploadURL),
		gallery.WithRateLimit(cfg.Import.UploadRateLimit),
	)
	if err != nil {
		return fmt.Errorf("creating gallery client: %w", err)
	}

	sourceClient, err := source.NewClient(cfg.Source.APIKey, source.WithBaseURL(cfg.Source.BaseURL))
	if err != nil {
		return fmt.Errorf("creating source client: %w", err)
	}

	blobDir := cfg.Blobs.Dir
	if blobDir == "" {
		blobDir = filepath.Dir(manifestPath)
	}
	blobStore, err := storage.NewFileBlobStore(blobDir)
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}

	store, err := newLocalJobStore(ctx, cfg.DynamoDB.TableName)
	if err != nil {
		return err
	}

	albums, photos := source.Transmogrify(manifest.Albums, manifest.Photos, cfg.Limits)

	svc, err := importer.New(importer.Config{
		Blobs:        blobStore,
		Concurrency:  cfg.Import.Concurrency,
		Destination:  galleryClient,
		DryRun:       dryRun,
		JobCache:     store,
		LedgerStore:  store,
		Logger:       slog.Default(),
		MaxAlbumSize: cfg.Limits.MaxAlbumSize,
		Remote:       sourceClient,
	})
	if err != nil {
		return fmt.Errorf("creating import service: %w", err)
	}

	result, err := svc.Import(ctx, jobID, albums, photos)
	printImportResult(jobID, result)
	if err != nil {
		return fmt.Errorf("importing manifest: %w", err)
	}

	return nil
}

// readManifestFile opens and decodes the manifest at path.
func readManifestFile(path string) (*source.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	manifest, err := source.ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return manifest, nil
}

// localJobID picks the job to run: the explicit flag, then the export ID, then a new ID.
func localJobID(flagValue string, exportID string) string {
	switch {
	case flagValue != "":
		return flagValue
	case exportID != "":
		return exportID
	default:
		return uuid.NewString()
	}
}

// newLocalJobStore returns the DynamoDB job store when a table is configured and an
// in-memory store otherwise.
func newLocalJobStore(ctx context.Context, tableName string) (jobStore, error) {
	if tableName == "" {
		slog.Warn("no dynamodb table configured, job progress will not survive this run")
		return storage.NewMemoryJobStore(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	store, err := storage.NewJobStore(dynamodb.NewFromConfig(awsCfg), tableName)
	if err != nil {
		return nil, fmt.Errorf("creating job store: %w", err)
	}
	return store, nil
}

// printImportResult prints the import summary for the terminal.
func printImportResult(jobID string, result *importer.Result) {
	if result == nil {
		return
	}

	fmt.Println()
	if result.DryRun {
		fmt.Println("Dry run complete (no gallery writes).")
	} else {
		fmt.Println("Import complete.")
	}
	fmt.Printf("  Job ID:          %s\n", jobID)
	fmt.Printf("  Albums created:  %d (cached %d, failed %d)\n",
		result.AlbumsCreated, result.AlbumsCached, result.AlbumsFailed)
	fmt.Printf("  Overflow albums: %d\n", result.OverflowAlbumsCreated)
	fmt.Printf("  Photos uploaded: %d (cached %d, failed %d)\n",
		result.PhotosUploaded, result.PhotosCached, result.PhotosFailed)

	if len(result.Errors) > 0 {
		fmt.Println()
		fmt.Println("Failed items (rerun with the same --job-id to retry):")
		for _, itemErr := range result.Errors {
			fmt.Printf("  - %s\n", itemErr.Error())
		}
	}
}
