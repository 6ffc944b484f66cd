package source

import (
	"mime"
	"net/url"
	"path"

	"github.com/peteski22/albumbridge/internal/gallery"
)

// ToDomainType converts an Album to the gallery's album creation request.
// Exported albums are created unlisted.
func (a *Album) ToDomainType() *gallery.Album {
	if a == nil {
		return nil
	}

	return &gallery.Album{
		Description: a.Description,
		Name:        a.Name,
		Privacy:     gallery.PrivacyUnlisted,
	}
}

// ToDomainType converts a Photo to the gallery's image upload description.
func (p *Photo) ToDomainType() *gallery.Image {
	if p == nil {
		return nil
	}

	return &gallery.Image{
		Caption:   p.Description,
		FileName:  p.fileName(),
		MediaType: p.MediaType,
		Title:     p.Title,
	}
}

// fileName picks the upload file name: the last path element of a remote URL when
// it has an extension, otherwise the data ID plus an extension for the media type.
func (p *Photo) fileName() string {
	if !p.InTempStore {
		if u, err := url.Parse(p.FetchableURL); err == nil {
			if base := path.Base(u.Path); path.Ext(base) != "" {
				return base
			}
		}
	}

	if p.MediaType != "" {
		if exts, err := mime.ExtensionsByType(p.MediaType); err == nil && len(exts) > 0 {
			return p.DataID + preferredExtension(exts)
		}
	}

	return p.DataID
}

// preferredExtension avoids the rarely used aliases mime returns first for some types.
func preferredExtension(exts []string) string {
	for _, ext := range exts {
		switch ext {
		case ".jpg", ".png", ".gif", ".heic", ".webp", ".mp4", ".mov":
			return ext
		}
	}
	return exts[0]
}
