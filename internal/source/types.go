// Package source provides a client for the photo export service and the helpers
// that shape exported albums and photos for the gallery.
package source

// Album is an album in a photo export.
type Album struct {
	// Description is the album description.
	Description string `json:"description"`

	// ID is the album identifier, stable for the lifetime of the export.
	ID string `json:"id"`

	// Name is the album display name.
	Name string `json:"name"`
}

// Photo is a photo in a photo export.
type Photo struct {
	// AlbumID is the identifier of the album the photo belongs to.
	AlbumID string `json:"albumId"`

	// DataID is the photo identifier, unique within its album.
	DataID string `json:"dataId"`

	// Description is the photo description.
	Description string `json:"description"`

	// FetchableURL is where the photo bytes live: a remote URL, or a blob reference
	// when InTempStore is set.
	FetchableURL string `json:"fetchableUrl"`

	// InTempStore reports whether FetchableURL is a temporary blob store reference.
	InTempStore bool `json:"inTempStore"`

	// MediaType is the MIME type of the photo.
	MediaType string `json:"mediaType"`

	// Title is the photo title.
	Title string `json:"title"`
}

// Key returns the stable identifier of the photo within an export.
func (p *Photo) Key() string {
	return p.AlbumID + "-" + p.DataID
}

// Manifest is a complete export: its albums and their photos.
type Manifest struct {
	// Albums are the exported albums.
	Albums []Album `json:"albums"`

	// ExportID identifies the export the manifest describes.
	ExportID string `json:"exportId"`

	// Photos are the exported photos, in upload order.
	Photos []Photo `json:"photos"`
}

// albumsResponse represents a page of albums from the export API.
type albumsResponse struct {
	// Data contains the albums on this page.
	Data []Album `json:"data"`

	// NextCursor is the cursor for the next page, empty on the last page.
	NextCursor string `json:"nextCursor"`
}

// photosResponse represents a page of photos from the export API.
type photosResponse struct {
	// Data contains the photos on this page.
	Data []Photo `json:"data"`

	// NextCursor is the cursor for the next page, empty on the last page.
	NextCursor string `json:"nextCursor"`
}
