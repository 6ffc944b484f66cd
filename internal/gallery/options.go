package gallery

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Option configures optional Client settings.
type Option func(*options) error

// options holds optional configuration for creating a Client.
type options struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is a custom HTTP client.
	httpClient *http.Client

	// timeout is the HTTP client timeout.
	timeout time.Duration

	// uploadRate is the maximum number of uploads per second. Zero means unlimited.
	uploadRate float64

	// uploadURL is the endpoint that receives image uploads.
	uploadURL string
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if baseURL == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		o.baseURL = baseURL
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client. Overrides WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) error {
		if httpClient == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		o.httpClient = httpClient
		return nil
	}
}

// WithRateLimit caps uploads at perSecond requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) error {
		if perSecond <= 0 {
			return fmt.Errorf("rate limit must be positive, got %v", perSecond)
		}
		o.uploadRate = perSecond
		return nil
	}
}

// WithTimeout sets the HTTP client timeout. Every API call, uploads included, is
// bounded by it.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// WithUploadURL sets a custom upload endpoint.
func WithUploadURL(uploadURL string) Option {
	return func(o *options) error {
		uploadURL = strings.TrimSpace(uploadURL)
		if uploadURL == "" {
			return fmt.Errorf("upload URL cannot be empty")
		}
		o.uploadURL = uploadURL
		return nil
	}
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *options {
	return &options{
		baseURL:   "https://api.gallery.example.com/api/v2",
		timeout:   2 * time.Minute,
		uploadURL: "https://upload.gallery.example.com/",
	}
}
