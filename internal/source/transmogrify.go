package source

import (
	"strings"
	"unicode"

	"github.com/peteski22/albumbridge/internal/config"
)

const (
	// OverflowNameReserve is the number of runes kept free at the end of an album
	// name for the suffix of its overflow albums.
	OverflowNameReserve = 16

	// untitledAlbum names albums whose name is empty after cleaning.
	untitledAlbum = "Untitled Album"
)

// forbiddenNameRunes are rejected by the gallery in album names and photo titles.
const forbiddenNameRunes = `<>"\`

// Transmogrify shapes exported albums and photos to fit the gallery's limits. Album
// names and photo titles lose forbidden and control characters, have whitespace
// collapsed and are truncated. Ordering and membership are preserved; nothing is
// deduplicated. The inputs are not modified.
func Transmogrify(albums []Album, photos []Photo, limits config.Limits) ([]Album, []Photo) {
	nameLimit := limits.MaxNameLength
	if nameLimit > 2*OverflowNameReserve {
		nameLimit -= OverflowNameReserve
	}

	outAlbums := make([]Album, len(albums))
	for i, a := range albums {
		a.Name = truncate(cleanName(a.Name), nameLimit)
		if a.Name == "" {
			a.Name = untitledAlbum
		}
		a.Description = stripControl(a.Description)
		outAlbums[i] = a
	}

	outPhotos := make([]Photo, len(photos))
	for i, p := range photos {
		p.Title = truncate(cleanName(p.Title), limits.MaxTitleLength)
		p.Description = stripControl(p.Description)
		outPhotos[i] = p
	}

	return outAlbums, outPhotos
}

// cleanName removes forbidden and control characters and collapses whitespace.
func cleanName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenNameRunes, r) {
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// stripControl removes control characters other than newlines and tabs.
func stripControl(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// truncate shortens s to at most limit runes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return strings.TrimSpace(string(runes[:limit]))
}
