package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/peteski22/albumbridge/internal/config"
)

const configTemplate = `# AlbumBridge Configuration

gallery:
  # From the gallery developer console -> API keys.
  client_id: ""
  client_secret: ""
  # OAuth authorization endpoint of the gallery.
  auth_url: ""
  # Optional: override the gallery endpoints.
  # token_url: ""
  # api_base_url: ""
  # upload_url: ""

source:
  # From the export service dashboard -> API keys.
  api_key: ""

blobs:
  # Directory holding exported photo files as <dir>/<job-id>/<reference>.
  # Defaults to the directory of the manifest.
  dir: ""

dynamodb:
  # Optional: DynamoDB table for resumable jobs. Progress is kept in memory when empty.
  table_name: ""

import:
  # Number of albums processed in parallel.
  concurrency: 1
  # Maximum uploads per second.
  upload_rate_limit: 5

limits:
  # Gallery per-album photo cap.
  max_album_size: 5000
  max_name_length: 255
  max_title_length: 255
`

// runInit creates a sample configuration file.
func runInit() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	configPath, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println("Created config file:", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the config file with your credentials")
	fmt.Println("  2. Run 'albumbridge auth' to authorize with the gallery")
	fmt.Println("  3. Run 'albumbridge import --manifest export.json --dry-run' to test")

	tokenPath := filepath.Join(configDir, "token")
	fmt.Println()
	fmt.Printf("Token will be stored at: %s\n", tokenPath)

	return nil
}
