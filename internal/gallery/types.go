// Package gallery provides a client for an OAuth2-protected photo gallery API that
// organizes images into albums.
package gallery

import "net/http"

// Privacy controls who can see an album.
type Privacy string

const (
	// PrivacyPrivate limits the album to its owner.
	PrivacyPrivate Privacy = "Private"

	// PrivacyUnlisted makes the album visible to anyone with its link.
	PrivacyUnlisted Privacy = "Unlisted"
)

// Album is the request body for creating an album.
type Album struct {
	// Description is the album description.
	Description string `json:"description,omitempty"`

	// Name is the display name of the album.
	Name string `json:"name"`

	// Privacy is the album visibility. Empty uses the account default.
	Privacy Privacy `json:"privacy,omitempty"`
}

// AlbumHandle identifies an album that exists in the gallery.
type AlbumHandle struct {
	// AlbumKey is the short album identifier.
	AlbumKey string `json:"album_key"`

	// Description is the album description.
	Description string `json:"description"`

	// Name is the display name of the album.
	Name string `json:"name"`

	// URI is the API URI of the album, used as the upload target.
	URI string `json:"uri"`

	// WebURI is the public web address of the album.
	WebURI string `json:"web_uri"`
}

// Image describes a photo being uploaded.
type Image struct {
	// Caption is the image caption.
	Caption string

	// FileName is the name the gallery stores the image under.
	FileName string

	// MediaType is the MIME type of the image bytes.
	MediaType string

	// Title is the image title.
	Title string
}

// UploadResponse is the gallery's answer to an image upload.
type UploadResponse struct {
	// AlbumImageURI is the URI of the image within its album.
	AlbumImageURI string `json:"album_image_uri"`

	// Code is the HTTP-style status of the upload.
	Code int `json:"code"`

	// ImageURI is the URI of the stored image.
	ImageURI string `json:"image_uri"`

	// Message is the gallery's status message.
	Message string `json:"message"`
}

// OK reports whether the upload was accepted.
func (r *UploadResponse) OK() bool {
	return r != nil && r.Code == http.StatusOK
}

// User is the account the session is authenticated as.
type User struct {
	// Name is the display name of the account.
	Name string `json:"name"`

	// NickName is the account's unique nickname.
	NickName string `json:"nick_name"`
}

// albumResponse wraps an album returned by the API.
type albumResponse struct {
	// Album is the created album.
	Album AlbumHandle `json:"album"`
}

// userResponse wraps the authenticated user returned by the API.
type userResponse struct {
	// User is the authenticated account.
	User User `json:"user"`
}

// tokenResponse represents the OAuth token response from the gallery.
type tokenResponse struct {
	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the token used to obtain new access tokens.
	RefreshToken string `json:"refresh_token"`

	// TokenType is the type of token (e.g., Bearer).
	TokenType string `json:"token_type"`
}
