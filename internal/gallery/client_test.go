package gallery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockTokenStore implements TokenStore for testing.
type mockTokenStore struct {
	getErr       error
	refreshToken string
	saveErr      error
}

// RefreshToken returns the current refresh token.
func (m *mockTokenStore) RefreshToken(_ context.Context) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.refreshToken, nil
}

// SaveRefreshToken saves a new refresh token.
func (m *mockTokenStore) SaveRefreshToken(_ context.Context, token string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.refreshToken = token
	return nil
}

// newTestClient starts a server that issues tokens on /token and delegates every
// other path to api, then returns a client pointed at it.
func newTestClient(t *testing.T, api http.HandlerFunc, opts ...Option) (*Client, *atomic.Int32) {
	t.Helper()

	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		n := tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "access-" + string(rune('0'+n)),
			ExpiresIn:   3600,
			TokenType:   "Bearer",
		})
	})
	mux.HandleFunc("/", api)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithBaseURL(server.URL + "/api/v2"),
		WithUploadURL(server.URL + "/upload"),
		WithHTTPClient(server.Client()),
	}, opts...)

	client, err := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenStore:   &mockTokenStore{refreshToken: "refresh-token"},
		TokenURL:     server.URL + "/token",
	}, opts...)
	require.NoError(t, err)

	return client, &tokenCalls
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	validTokenStore := &mockTokenStore{refreshToken: "test-token"}
	validConfig := Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenStore:   validTokenStore,
		TokenURL:     "https://auth.example.com/token",
	}

	tests := map[string]struct {
		config  Config
		opts    []Option
		wantErr bool
		errMsg  string
	}{
		"valid config": {
			config:  validConfig,
			wantErr: false,
		},
		"valid config with options": {
			config: validConfig,
			opts: []Option{
				WithBaseURL("https://api.example.com/v2/"),
				WithUploadURL("https://upload.example.com/"),
				WithTimeout(10 * time.Second),
				WithRateLimit(2),
			},
			wantErr: false,
		},
		"missing every field": {
			config:  Config{},
			wantErr: true,
			errMsg:  "client ID is required\nclient secret is required\ntoken store is required\ntoken URL is required",
		},
		"empty base URL": {
			config:  validConfig,
			opts:    []Option{WithBaseURL("  ")},
			wantErr: true,
			errMsg:  "base URL cannot be empty",
		},
		"empty upload URL": {
			config:  validConfig,
			opts:    []Option{WithUploadURL("")},
			wantErr: true,
			errMsg:  "upload URL cannot be empty",
		},
		"non-positive rate limit": {
			config:  validConfig,
			opts:    []Option{WithRateLimit(0)},
			wantErr: true,
			errMsg:  "rate limit must be positive",
		},
		"nil HTTP client": {
			config:  validConfig,
			opts:    []Option{WithHTTPClient(nil)},
			wantErr: true,
			errMsg:  "HTTP client cannot be nil",
		},
		"negative timeout": {
			config:  validConfig,
			opts:    []Option{WithTimeout(-time.Second)},
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tc.config, tc.opts...)

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
				require.Nil(t, client)
			} else {
				require.NoError(t, err)
				require.NotNil(t, client)
			}
		})
	}
}

func TestNewClientAppliesOptions(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenStore:   &mockTokenStore{},
		TokenURL:     "https://auth.example.com/token",
	}, WithBaseURL("https://api.example.com/v2/"), WithTimeout(7*time.Second), WithRateLimit(3))

	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/v2", client.baseURL)
	require.Equal(t, 7*time.Second, client.httpClient.Timeout)
	require.NotNil(t, client.limiter)
	require.Equal(t, "https://auth.example.com/token", client.tokenManager.tokenURL)
}

func TestClient_Session(t *testing.T) {
	t.Parallel()

	t.Run("returns authenticated user", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v2/!authuser", r.URL.Path)
			require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(userResponse{User: User{Name: "Ada", NickName: "ada"}})
		})

		user, err := client.Session(context.Background())

		require.NoError(t, err)
		require.Equal(t, "ada", user.NickName)
	})

	t.Run("unauthorized drops cached token", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		client, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(userResponse{User: User{NickName: "ada"}})
		})

		_, err := client.Session(context.Background())
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = client.Session(context.Background())
		require.NoError(t, err)
		require.Equal(t, int32(2), tokenCalls.Load())
	})
}

func TestClient_CreateAlbum(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		album   *Album
		errMsg  string
		handler http.HandlerFunc
		want    *AlbumHandle
		wantErr bool
	}{
		"creates album": {
			album: &Album{Name: "Trip", Description: "Summer"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, "/api/v2/albums", r.URL.Path)
				require.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var got Album
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				require.Equal(t, Album{Name: "Trip", Description: "Summer"}, got)

				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(albumResponse{Album: AlbumHandle{
					AlbumKey:    "k1",
					Description: "Summer",
					Name:        "Trip",
					URI:         "/api/v2/album/k1",
					WebURI:      "https://gallery.example.com/trip",
				}})
			},
			want: &AlbumHandle{
				AlbumKey:    "k1",
				Description: "Summer",
				Name:        "Trip",
				URI:         "/api/v2/album/k1",
				WebURI:      "https://gallery.example.com/trip",
			},
		},
		"response without URI": {
			album: &Album{Name: "Trip"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(albumResponse{})
			},
			wantErr: true,
			errMsg:  "response has no album URI",
		},
		"server error": {
			album: &Album{Name: "Trip"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("boom"))
			},
			wantErr: true,
			errMsg:  "unexpected status 500: boom",
		},
		"missing name": {
			album:   &Album{Description: "no name"},
			handler: func(http.ResponseWriter, *http.Request) {},
			wantErr: true,
			errMsg:  "album name is required",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, tc.handler)

			got, err := client.CreateAlbum(context.Background(), tc.album)

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestClient_UploadImage(t *testing.T) {
	t.Parallel()

	image := &Image{
		Caption:   "Sunset",
		FileName:  "p1.jpg",
		MediaType: "image/jpeg",
		Title:     "Beach",
	}

	tests := map[string]struct {
		handler  http.HandlerFunc
		wantCode int
		wantMsg  string
		wantOK   bool
		wantURI  string
	}{
		"accepted upload": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/upload", r.URL.Path)
				require.Equal(t, "/api/v2/album/k1", r.Header.Get(headerAlbumURI))
				require.Equal(t, "p1.jpg", r.Header.Get(headerFileName))
				require.Equal(t, "Beach", r.Header.Get(headerTitle))
				require.Equal(t, "Sunset", r.Header.Get(headerCaption))
				require.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))

				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				require.Equal(t, "jpeg-bytes", string(body))

				_ = json.NewEncoder(w).Encode(UploadResponse{
					Code:          http.StatusOK,
					ImageURI:      "/api/v2/image/i1",
					AlbumImageURI: "/api/v2/album/k1/image/i1",
					Message:       "Ok",
				})
			},
			wantCode: http.StatusOK,
			wantMsg:  "Ok",
			wantOK:   true,
			wantURI:  "/api/v2/image/i1",
		},
		"body without code uses HTTP status": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"image_uri":"/api/v2/image/i2"}`))
			},
			wantCode: http.StatusOK,
			wantOK:   true,
			wantURI:  "/api/v2/image/i2",
		},
		"rejected upload is a response not an error": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":400,"message":"unsupported file type"}`))
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "unsupported file type",
		},
		"error status overrides body code": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"code":200}`))
			},
			wantCode: http.StatusServiceUnavailable,
		},
		"plain text body": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("slow down"))
			},
			wantCode: http.StatusTooManyRequests,
			wantMsg:  "slow down",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, tc.handler)

			resp, err := client.UploadImage(context.Background(), image, "/api/v2/album/k1", strings.NewReader("jpeg-bytes"))

			require.NoError(t, err)
			require.Equal(t, tc.wantCode, resp.Code)
			require.Equal(t, tc.wantOK, resp.OK())
			require.Equal(t, tc.wantMsg, resp.Message)
			require.Equal(t, tc.wantURI, resp.ImageURI)
		})
	}
}

func TestClient_UploadImageValidation(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})
	ctx := context.Background()

	_, err := client.UploadImage(ctx, nil, "/album/k1", strings.NewReader("x"))
	require.ErrorContains(t, err, "image is required")

	_, err = client.UploadImage(ctx, &Image{}, "", strings.NewReader("x"))
	require.ErrorContains(t, err, "album URI is required")

	_, err = client.UploadImage(ctx, &Image{}, "/album/k1", nil)
	require.ErrorContains(t, err, "image body is required")
}

func TestClient_UploadImageRespectsRateLimitContext(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200}`))
	}, WithRateLimit(0.001))

	resp, err := client.UploadImage(context.Background(), &Image{}, "/album/k1", strings.NewReader("a"))
	require.NoError(t, err)
	require.True(t, resp.OK())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.UploadImage(ctx, &Image{}, "/album/k1", strings.NewReader("b"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "waiting for upload slot")
}

func TestUploadResponseOK(t *testing.T) {
	t.Parallel()

	var nilResp *UploadResponse
	require.False(t, nilResp.OK())
	require.False(t, (&UploadResponse{Code: http.StatusCreated}).OK())
	require.True(t, (&UploadResponse{Code: http.StatusOK}).OK())
}
