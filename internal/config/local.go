package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".albumbridge"
	configFileName = "config.yaml"
	tokenFileName  = "token"
)

// LocalConfig holds configuration loaded from a local file.
type LocalConfig struct {
	Blobs    localBlobsConfig
	DynamoDB localDynamoDBConfig
	Gallery  localGalleryConfig
	Import   Import
	Limits   Limits
	Source   Source
}

// localBlobs represents the blobs section of the config file.
type localBlobs struct {
	Dir string `yaml:"dir"`
}

// localBlobsConfig holds the local blob directory from the config file.
type localBlobsConfig struct {
	Dir string
}

// localConfig represents the local configuration file structure.
type localConfig struct {
	Blobs    localBlobs    `yaml:"blobs"`
	DynamoDB localDynamoDB `yaml:"dynamodb"`
	Gallery  localGallery  `yaml:"gallery"`
	Import   localImport   `yaml:"import"`
	Limits   Limits        `yaml:"limits"`
	Source   localSource   `yaml:"source"`
}

// localDynamoDB represents the dynamodb section of the config file.
type localDynamoDB struct {
	TableName string `yaml:"table_name"`
}

// localDynamoDBConfig holds the optional job table from the config file.
type localDynamoDBConfig struct {
	TableName string
}

// localGallery represents the gallery section of the config file.
type localGallery struct {
	APIBaseURL   string `yaml:"api_base_url"`
	AuthURL      string `yaml:"auth_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
	UploadURL    string `yaml:"upload_url"`
}

// localGalleryConfig holds gallery credentials and endpoints from the config file.
type localGalleryConfig struct {
	APIBaseURL   string
	AuthURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	UploadURL    string
}

// localImport represents the import section of the config file.
type localImport struct {
	Concurrency     int     `yaml:"concurrency"`
	UploadRateLimit float64 `yaml:"upload_rate_limit"`
}

// localSource represents the source section of the config file.
type localSource struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ConfigDir returns the albumbridge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFilePath returns the path to the local config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadLocal loads configuration from the local config file.
func LoadLocal() (*LocalConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run 'albumbridge init' to create)", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return parseLocal(data)
}

// LocalConfigExists checks if a local config file exists.
func LocalConfigExists() bool {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// TokenFilePath returns the path to the local token file.
func TokenFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenFileName), nil
}

// parseLocal decodes and validates the YAML config file contents.
func parseLocal(data []byte) (*LocalConfig, error) {
	var local localConfig
	if err := yaml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &LocalConfig{}
	cfg.Blobs.Dir = local.Blobs.Dir
	cfg.DynamoDB.TableName = local.DynamoDB.TableName
	cfg.Gallery.APIBaseURL = orDefault(local.Gallery.APIBaseURL, defaultGalleryAPIBaseURL)
	cfg.Gallery.AuthURL = local.Gallery.AuthURL
	cfg.Gallery.ClientID = local.Gallery.ClientID
	cfg.Gallery.ClientSecret = local.Gallery.ClientSecret
	cfg.Gallery.TokenURL = orDefault(local.Gallery.TokenURL, defaultGalleryTokenURL)
	cfg.Gallery.UploadURL = orDefault(local.Gallery.UploadURL, defaultGalleryUploadURL)
	cfg.Import.Concurrency = local.Import.Concurrency
	cfg.Import.UploadRateLimit = local.Import.UploadRateLimit
	cfg.Limits = local.Limits.Merge(DefaultLimits())
	cfg.Source.APIKey = local.Source.APIKey
	cfg.Source.BaseURL = orDefault(local.Source.BaseURL, defaultSourceBaseURL)

	if cfg.Import.Concurrency == 0 {
		cfg.Import.Concurrency = defaultConcurrency
	}
	if cfg.Import.UploadRateLimit == 0 {
		cfg.Import.UploadRateLimit = defaultUploadRateLimit
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// validate checks that required fields are set.
func (c *LocalConfig) validate() error {
	var errs []error

	if c.Gallery.ClientID == "" {
		errs = append(errs, errors.New("gallery.client_id is required"))
	}
	if c.Gallery.ClientSecret == "" {
		errs = append(errs, errors.New("gallery.client_secret is required"))
	}
	if c.Gallery.AuthURL == "" {
		errs = append(errs, errors.New("gallery.auth_url is required"))
	}
	if c.Import.Concurrency < 0 {
		errs = append(errs, errors.New("import.concurrency must not be negative"))
	}
	if c.Import.UploadRateLimit < 0 {
		errs = append(errs, errors.New("import.upload_rate_limit must not be negative"))
	}
	if err := c.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func orDefault(value string, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
