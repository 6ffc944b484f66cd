package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client is a photo export API client.
type Client struct {
	// apiKey is the API key for authentication.
	apiKey string

	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// pageSize is the number of items requested per page.
	pageSize int
}

// Albums fetches every album in an export.
func (c *Client) Albums(ctx context.Context, exportID string) ([]Album, error) {
	if exportID == "" {
		return nil, errors.New("export ID is required")
	}

	var allAlbums []Album
	var cursor string

	for {
		var page albumsResponse
		if err := c.getJSON(ctx, c.pageURL(exportID, "albums", cursor), &page); err != nil {
			return nil, fmt.Errorf("listing albums: %w", err)
		}
		allAlbums = append(allAlbums, page.Data...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return allAlbums, nil
}

// Photos fetches every photo in an export, in export order.
func (c *Client) Photos(ctx context.Context, exportID string) ([]Photo, error) {
	if exportID == "" {
		return nil, errors.New("export ID is required")
	}

	var allPhotos []Photo
	var cursor string

	for {
		var page photosResponse
		if err := c.getJSON(ctx, c.pageURL(exportID, "photos", cursor), &page); err != nil {
			return nil, fmt.Errorf("listing photos: %w", err)
		}
		allPhotos = append(allPhotos, page.Data...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return allPhotos, nil
}

// Open streams the photo bytes at a remote URL. URLs served by the export API carry
// the API key; other hosts are fetched anonymously. The caller must close the stream.
func (c *Client) Open(ctx context.Context, fetchURL string) (io.ReadCloser, error) {
	if fetchURL == "" {
		return nil, errors.New("fetch URL is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if strings.HasPrefix(fetchURL, c.baseURL+"/") {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching photo: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetching photo: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// getJSON executes an authenticated GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func (c *Client) pageURL(exportID string, collection string, cursor string) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	return fmt.Sprintf("%s/exports/%s/%s?%s", c.baseURL, url.PathEscape(exportID), collection, params.Encode())
}

// NewClient creates a new photo export API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
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

	return &Client{
		apiKey:     apiKey,
		baseURL:    o.baseURL,
		httpClient: httpClient,
		pageSize:   o.pageSize,
	}, nil
}
