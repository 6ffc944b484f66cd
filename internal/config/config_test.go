package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requiredEnv() map[string]string {
	return map[string]string{
		EnvBlobBucketName:               "albumbridge-blobs",
		EnvDynamoDBTableName:            "albumbridge-jobs",
		EnvGalleryClientID:              "client-id",
		EnvGalleryClientSecret:          "client-secret",
		EnvGalleryRefreshTokenSecretARN: "arn:aws:secretsmanager:us-east-1:123456789012:secret:token",
		EnvSourceAPIKey:                 "source-key",
	}
}

func TestLoad(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().
	tests := map[string]struct {
		envVars      map[string]string
		errFragments []string
		wantSettings *Settings
		wantErr      bool
	}{
		"all required vars set": {
			envVars: requiredEnv(),
			wantErr: false,
			wantSettings: &Settings{
				Blobs: Blobs{
					BucketName: "albumbridge-blobs",
					KeyPrefix:  "jobs",
				},
				DynamoDB: DynamoDB{
					JobTTL:    30 * 24 * time.Hour,
					TableName: "albumbridge-jobs",
				},
				Gallery: Gallery{
					APIBaseURL:            defaultGalleryAPIBaseURL,
					ClientID:              "client-id",
					ClientSecret:          "client-secret",
					RefreshTokenSecretARN: "arn:aws:secretsmanager:us-east-1:123456789012:secret:token",
					TokenURL:              defaultGalleryTokenURL,
					UploadURL:             defaultGalleryUploadURL,
				},
				Import: Import{
					Concurrency:     1,
					UploadRateLimit: 5,
				},
				Source: Source{
					APIKey:  "source-key",
					BaseURL: defaultSourceBaseURL,
				},
			},
		},
		"custom URLs and tuning": {
			envVars: func() map[string]string {
				env := requiredEnv()
				env[EnvBlobKeyPrefix] = "tmp"
				env[EnvGalleryAPIBaseURL] = "https://custom.api.com"
				env[EnvGalleryTokenURL] = "https://custom.token.com"
				env[EnvGalleryUploadURL] = "https://custom.upload.com"
				env[EnvImportConcurrency] = "4"
				env[EnvJobTTLDays] = "7"
				env[EnvSourceBaseURL] = "https://custom.source.com"
				env[EnvSSMLimitsParameterName] = "/albumbridge/limits"
				env[EnvUploadRateLimit] = "2.5"
				return env
			}(),
			wantErr: false,
			wantSettings: &Settings{
				Blobs: Blobs{
					BucketName: "albumbridge-blobs",
					KeyPrefix:  "tmp",
				},
				DynamoDB: DynamoDB{
					JobTTL:    7 * 24 * time.Hour,
					TableName: "albumbridge-jobs",
				},
				Gallery: Gallery{
					APIBaseURL:            "https://custom.api.com",
					ClientID:              "client-id",
					ClientSecret:          "client-secret",
					RefreshTokenSecretARN: "arn:aws:secretsmanager:us-east-1:123456789012:secret:token",
					TokenURL:              "https://custom.token.com",
					UploadURL:             "https://custom.upload.com",
				},
				Import: Import{
					Concurrency:     4,
					UploadRateLimit: 2.5,
				},
				Source: Source{
					APIKey:  "source-key",
					BaseURL: "https://custom.source.com",
				},
				SSM: SSM{
					LimitsParameterName: "/albumbridge/limits",
				},
			},
		},
		"whitespace only values treated as empty": {
			envVars: func() map[string]string {
				env := requiredEnv()
				env[EnvGalleryClientID] = "   "
				return env
			}(),
			wantErr:      true,
			errFragments: []string{EnvGalleryClientID + " is required"},
		},
		"missing all required vars": {
			envVars: map[string]string{},
			wantErr: true,
			errFragments: []string{
				EnvBlobBucketName + " is required",
				EnvDynamoDBTableName + " is required",
				EnvGalleryClientID + " is required",
				EnvGalleryClientSecret + " is required",
				EnvGalleryRefreshTokenSecretARN + " is required",
				EnvSourceAPIKey + " is required",
			},
		},
		"invalid numeric tuning": {
			envVars: func() map[string]string {
				env := requiredEnv()
				env[EnvImportConcurrency] = "many"
				env[EnvJobTTLDays] = "-1"
				env[EnvUploadRateLimit] = "0"
				return env
			}(),
			wantErr: true,
			errFragments: []string{
				EnvImportConcurrency + " must be a positive integer",
				EnvJobTTLDays + " must be a positive integer",
				EnvUploadRateLimit + " must be a positive number",
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()

			if tc.wantErr {
				require.Error(t, err)
				for _, fragment := range tc.errFragments {
					require.Contains(t, err.Error(), fragment)
				}
				require.Nil(t, settings)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.wantSettings, settings)
			}
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().
	tests := map[string]struct {
		defaultVal string
		envKey     string
		envVal     string
		setEnv     bool
		want       string
	}{
		"returns env value when set": {
			envKey:     "TEST_VAR",
			envVal:     "custom-value",
			setEnv:     true,
			defaultVal: "default-value",
			want:       "custom-value",
		},
		"returns default when not set": {
			envKey:     "TEST_VAR_UNSET",
			setEnv:     false,
			defaultVal: "default-value",
			want:       "default-value",
		},
		"trims whitespace": {
			envKey:     "TEST_VAR_WHITESPACE",
			envVal:     "  trimmed  ",
			setEnv:     true,
			defaultVal: "default-value",
			want:       "trimmed",
		},
		"returns default when only whitespace": {
			envKey:     "TEST_VAR_ONLY_WHITESPACE",
			envVal:     "   ",
			setEnv:     true,
			defaultVal: "default-value",
			want:       "default-value",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if tc.setEnv {
				t.Setenv(tc.envKey, tc.envVal)
			}

			got := envOrDefault(tc.envKey, tc.defaultVal)

			require.Equal(t, tc.want, got)
		})
	}
}

func TestLimits(t *testing.T) {
	t.Parallel()

	t.Run("merge fills unset fields", func(t *testing.T) {
		t.Parallel()

		got := Limits{MaxAlbumSize: 10}.Merge(DefaultLimits())

		require.Equal(t, Limits{
			MaxAlbumSize:   10,
			MaxNameLength:  DefaultMaxNameLength,
			MaxTitleLength: DefaultMaxTitleLength,
		}, got)
	})

	t.Run("validate rejects non-positive values", func(t *testing.T) {
		t.Parallel()

		err := Limits{}.Validate()

		require.Error(t, err)
		require.Contains(t, err.Error(), "max album size must be positive")
		require.Contains(t, err.Error(), "max name length must be positive")
		require.Contains(t, err.Error(), "max title length must be positive")
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, DefaultLimits().Validate())
	})
}
