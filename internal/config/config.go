// Package config provides configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvBlobBucketName is the S3 bucket holding temporary per-job photo blobs.
	EnvBlobBucketName = "BLOB_BUCKET_NAME"

	// EnvBlobKeyPrefix is the key prefix for temporary per-job photo blobs.
	EnvBlobKeyPrefix = "BLOB_KEY_PREFIX"

	// EnvDynamoDBTableName is the DynamoDB table holding job progress and idempotency records.
	EnvDynamoDBTableName = "DYNAMODB_TABLE_NAME"

	// EnvGalleryAPIBaseURL is the base URL for the gallery API.
	EnvGalleryAPIBaseURL = "GALLERY_API_BASE_URL"

	// EnvGalleryClientID is the OAuth client ID for the gallery.
	EnvGalleryClientID = "GALLERY_CLIENT_ID"

	// EnvGalleryClientSecret is the OAuth client secret for the gallery.
	EnvGalleryClientSecret = "GALLERY_CLIENT_SECRET"

	// EnvGalleryRefreshTokenSecretARN is the Secrets Manager ARN for the refresh token.
	EnvGalleryRefreshTokenSecretARN = "GALLERY_REFRESH_TOKEN_SECRET_ARN"

	// EnvGalleryTokenURL is the OAuth token endpoint URL.
	EnvGalleryTokenURL = "GALLERY_TOKEN_URL"

	// EnvGalleryUploadURL is the endpoint that receives image uploads.
	EnvGalleryUploadURL = "GALLERY_UPLOAD_URL"

	// EnvImportConcurrency is the number of albums imported in parallel.
	EnvImportConcurrency = "IMPORT_CONCURRENCY"

	// EnvJobTTLDays is how long job records are retained before DynamoDB expires them.
	EnvJobTTLDays = "JOB_TTL_DAYS"

	// EnvSSMLimitsParameterName is the optional SSM parameter overriding platform limits.
	EnvSSMLimitsParameterName = "SSM_LIMITS_PARAMETER_NAME"

	// EnvSourceAPIKey is the API key for the source export service.
	EnvSourceAPIKey = "SOURCE_API_KEY"

	// EnvSourceBaseURL is the base URL for the source export service.
	EnvSourceBaseURL = "SOURCE_BASE_URL"

	// EnvUploadRateLimit is the maximum number of uploads per second.
	EnvUploadRateLimit = "UPLOAD_RATE_LIMIT"
)

const (
	defaultBlobKeyPrefix     = "jobs"
	defaultConcurrency       = 1
	defaultGalleryAPIBaseURL = "https://api.gallery.example.com/api/v2"
	defaultGalleryTokenURL   = "https://auth.gallery.example.com/oauth/token"
	defaultGalleryUploadURL  = "https://upload.gallery.example.com/"
	defaultJobTTLDays        = 30
	defaultSourceBaseURL     = "https://export.example.com/v1"
	defaultUploadRateLimit   = 5.0
)

// Blobs holds temporary blob store configuration.
type Blobs struct {
	// BucketName is the S3 bucket holding per-job photo blobs.
	BucketName string

	// KeyPrefix is prepended to every blob key.
	KeyPrefix string
}

// DynamoDB holds AWS DynamoDB configuration.
type DynamoDB struct {
	// JobTTL is how long job records live before expiry.
	JobTTL time.Duration

	// TableName is the name of the DynamoDB job table.
	TableName string
}

// Gallery holds destination gallery API configuration.
type Gallery struct {
	// APIBaseURL is the base URL for API requests.
	APIBaseURL string

	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// RefreshTokenSecretARN is the Secrets Manager ARN storing the OAuth refresh token.
	RefreshTokenSecretARN string

	// TokenURL is the OAuth token endpoint.
	TokenURL string

	// UploadURL is the image upload endpoint.
	UploadURL string
}

// Import holds tuning for the import run.
type Import struct {
	// Concurrency is the number of source albums processed in parallel.
	Concurrency int

	// UploadRateLimit is the maximum number of uploads per second.
	UploadRateLimit float64
}

// Source holds source export API configuration.
type Source struct {
	// APIKey is the API key for authentication.
	APIKey string

	// BaseURL is the base URL for API requests.
	BaseURL string
}

// SSM holds AWS Systems Manager Parameter Store configuration.
type SSM struct {
	// LimitsParameterName is the SSM parameter holding platform limit overrides (optional).
	LimitsParameterName string
}

// Settings holds all configuration for the application.
type Settings struct {
	// Blobs contains temporary blob store settings.
	Blobs Blobs

	// DynamoDB contains AWS DynamoDB settings.
	DynamoDB DynamoDB

	// Gallery contains destination gallery API settings.
	Gallery Gallery

	// Import contains import tuning settings.
	Import Import

	// Source contains source export API settings.
	Source Source

	// SSM contains AWS Systems Manager Parameter Store settings.
	SSM SSM
}

func (s *Settings) validate() error {
	var errs []error

	if s.Blobs.BucketName == "" {
		errs = append(errs, requiredError(EnvBlobBucketName))
	}
	if s.DynamoDB.TableName == "" {
		errs = append(errs, requiredError(EnvDynamoDBTableName))
	}
	if s.Gallery.ClientID == "" {
		errs = append(errs, requiredError(EnvGalleryClientID))
	}
	if s.Gallery.ClientSecret == "" {
		errs = append(errs, requiredError(EnvGalleryClientSecret))
	}
	if s.Gallery.RefreshTokenSecretARN == "" {
		errs = append(errs, requiredError(EnvGalleryRefreshTokenSecretARN))
	}
	if s.Source.APIKey == "" {
		errs = append(errs, requiredError(EnvSourceAPIKey))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Settings, error) {
	var errs []error

	concurrency, err := envInt(EnvImportConcurrency, defaultConcurrency)
	if err != nil {
		errs = append(errs, err)
	}
	ttlDays, err := envInt(EnvJobTTLDays, defaultJobTTLDays)
	if err != nil {
		errs = append(errs, err)
	}
	rateLimit, err := envFloat(EnvUploadRateLimit, defaultUploadRateLimit)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg := &Settings{
		Blobs: Blobs{
			BucketName: strings.TrimSpace(os.Getenv(EnvBlobBucketName)),
			KeyPrefix:  envOrDefault(EnvBlobKeyPrefix, defaultBlobKeyPrefix),
		},
		DynamoDB: DynamoDB{
			JobTTL:    time.Duration(ttlDays) * 24 * time.Hour,
			TableName: strings.TrimSpace(os.Getenv(EnvDynamoDBTableName)),
		},
		Gallery: Gallery{
			APIBaseURL:            envOrDefault(EnvGalleryAPIBaseURL, defaultGalleryAPIBaseURL),
			ClientID:              strings.TrimSpace(os.Getenv(EnvGalleryClientID)),
			ClientSecret:          strings.TrimSpace(os.Getenv(EnvGalleryClientSecret)),
			RefreshTokenSecretARN: strings.TrimSpace(os.Getenv(EnvGalleryRefreshTokenSecretARN)),
			TokenURL:              envOrDefault(EnvGalleryTokenURL, defaultGalleryTokenURL),
			UploadURL:             envOrDefault(EnvGalleryUploadURL, defaultGalleryUploadURL),
		},
		Import: Import{
			Concurrency:     concurrency,
			UploadRateLimit: rateLimit,
		},
		Source: Source{
			APIKey:  strings.TrimSpace(os.Getenv(EnvSourceAPIKey)),
			BaseURL: envOrDefault(EnvSourceBaseURL, defaultSourceBaseURL),
		},
		SSM: SSM{
			LimitsParameterName: strings.TrimSpace(os.Getenv(EnvSSMLimitsParameterName)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, value)
	}
	return f, nil
}

func envInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}

func envOrDefault(key string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func requiredError(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}
