package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Upload request headers understood by the gallery upload endpoint.
const (
	headerAlbumURI = "X-Upload-Album-Uri"
	headerCaption  = "X-Upload-Caption"
	headerFileName = "X-Upload-File-Name"
	headerTitle    = "X-Upload-Title"
)

// ErrUnauthorized is returned when the gallery rejects the access token.
var ErrUnauthorized = errors.New("gallery rejected access token")

// Client is a gallery API client.
type Client struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// limiter throttles uploads; nil means unlimited.
	limiter *rate.Limiter

	// tokenManager handles OAuth token refresh.
	tokenManager *tokenManager

	// uploadURL is the endpoint that receives image uploads.
	uploadURL string
}

// Session verifies that the client can authenticate and returns the account it acts as.
func (c *Client) Session(ctx context.Context) (*User, error) {
	reqURL := fmt.Sprintf("%s/!authuser", c.baseURL)

	var result userResponse
	if err := c.doRequest(ctx, http.MethodGet, reqURL, nil, &result); err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	return &result.User, nil
}

// CreateAlbum creates a new album and returns its handle.
func (c *Client) CreateAlbum(ctx context.Context, album *Album) (*AlbumHandle, error) {
	if album == nil || strings.TrimSpace(album.Name) == "" {
		return nil, errors.New("album name is required")
	}

	reqURL := fmt.Sprintf("%s/albums", c.baseURL)

	var result albumResponse
	if err := c.doRequest(ctx, http.MethodPost, reqURL, album, &result); err != nil {
		return nil, fmt.Errorf("creating album: %w", err)
	}
	if result.Album.URI == "" {
		return nil, fmt.Errorf("creating album %q: response has no album URI", album.Name)
	}

	return &result.Album, nil
}

// UploadImage streams an image into the album at albumURI. A response from the
// gallery is returned even when it rejects the upload; callers check
// UploadResponse.OK. The error is non-nil only when no response was obtained.
func (c *Client) UploadImage(ctx context.Context, image *Image, albumURI string, body io.Reader) (*UploadResponse, error) {
	if image == nil {
		return nil, errors.New("image is required")
	}
	if albumURI == "" {
		return nil, errors.New("album URI is required")
	}
	if body == nil {
		return nil, errors.New("image body is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for upload slot: %w", err)
		}
	}

	accessToken, err := c.tokenManager.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}

	mediaType := image.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set(headerAlbumURI, albumURI)
	if image.FileName != "" {
		req.Header.Set(headerFileName, image.FileName)
	}
	if image.Title != "" {
		req.Header.Set(headerTitle, image.Title)
	}
	if image.Caption != "" {
		req.Header.Set(headerCaption, image.Caption)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing upload request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokenManager.Invalidate(accessToken)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}

	var result UploadResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			result = UploadResponse{Message: string(respBody)}
		}
	}
	if result.Code == 0 || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Code = resp.StatusCode
	}

	return &result, nil
}

// doRequest executes an HTTP request with authentication and JSON encoding.
func (c *Client) doRequest(ctx context.Context, method string, reqURL string, body any, result any) error {
	accessToken, err := c.tokenManager.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("getting access token: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokenManager.Invalidate(accessToken)
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// Config holds the required configuration for creating a Client.
type Config struct {
	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// TokenStore provides access to OAuth tokens.
	TokenStore TokenStore

	// TokenURL is the OAuth token endpoint.
	TokenURL string
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("client ID is required"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("client secret is required"))
	}
	if c.TokenStore == nil {
		errs = append(errs, errors.New("token store is required"))
	}
	if c.TokenURL == "" {
		errs = append(errs, errors.New("token URL is required"))
	}
	return errors.Join(errs...)
}

// NewClient creates a new gallery API client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	var limiter *rate.Limiter
	if o.uploadRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.uploadRate), 1)
	}

	tm := newTokenManager(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, cfg.TokenStore, httpClient)

	return &Client{
		baseURL:      o.baseURL,
		httpClient:   httpClient,
		limiter:      limiter,
		tokenManager: tm,
		uploadURL:    o.uploadURL,
	}, nil
}
