package source

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/albumbridge/internal/config"
)

func TestTransmogrify(t *testing.T) {
	t.Parallel()

	limits := config.Limits{MaxAlbumSize: 10, MaxNameLength: 40, MaxTitleLength: 8}

	tests := map[string]struct {
		albums     []Album
		photos     []Photo
		wantAlbums []Album
		wantPhotos []Photo
	}{
		"clean input is unchanged": {
			albums:     []Album{{ID: "a1", Name: "Trip", Description: "Summer"}},
			photos:     []Photo{{AlbumID: "a1", DataID: "p1", Title: "Beach"}},
			wantAlbums: []Album{{ID: "a1", Name: "Trip", Description: "Summer"}},
			wantPhotos: []Photo{{AlbumID: "a1", DataID: "p1", Title: "Beach"}},
		},
		"forbidden characters and whitespace": {
			albums:     []Album{{ID: "a1", Name: "  <Trip>\t\"2024\"\x00 ", Description: "line one\nline two\x07"}},
			photos:     []Photo{{AlbumID: "a1", DataID: "p1", Title: "a\\b  c"}},
			wantAlbums: []Album{{ID: "a1", Name: "Trip 2024", Description: "line one\nline two"}},
			wantPhotos: []Photo{{AlbumID: "a1", DataID: "p1", Title: "ab c"}},
		},
		"long names leave room for overflow suffix": {
			albums:     []Album{{ID: "a1", Name: strings.Repeat("x", 60)}},
			wantAlbums: []Album{{ID: "a1", Name: strings.Repeat("x", 24)}},
			wantPhotos: []Photo{},
		},
		"titles truncated by rune": {
			photos:     []Photo{{DataID: "p1", Title: "ééééééééé"}},
			wantAlbums: []Album{},
			wantPhotos: []Photo{{DataID: "p1", Title: "éééééééé"}},
		},
		"empty album name": {
			albums:     []Album{{ID: "a1", Name: " <> "}},
			wantAlbums: []Album{{ID: "a1", Name: untitledAlbum}},
			wantPhotos: []Photo{},
		},
		"order and duplicates preserved": {
			photos: []Photo{
				{DataID: "p2", Title: "b"},
				{DataID: "p1", Title: "a"},
				{DataID: "p2", Title: "b"},
			},
			wantAlbums: []Album{},
			wantPhotos: []Photo{
				{DataID: "p2", Title: "b"},
				{DataID: "p1", Title: "a"},
				{DataID: "p2", Title: "b"},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			albums, photos := Transmogrify(tc.albums, tc.photos, limits)

			require.Equal(t, tc.wantAlbums, albums)
			require.Equal(t, tc.wantPhotos, photos)
		})
	}
}

func TestTransmogrifyDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	albums := []Album{{ID: "a1", Name: "<Trip>"}}
	photos := []Photo{{DataID: "p1", Title: "<Beach>"}}

	_, _ = Transmogrify(albums, photos, config.DefaultLimits())

	require.Equal(t, "<Trip>", albums[0].Name)
	require.Equal(t, "<Beach>", photos[0].Title)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", truncate("abc", 5))
	require.Equal(t, "ab", truncate("abc", 2))
	require.Equal(t, "abc", truncate("abc", 0))
	require.Equal(t, "ab", truncate("ab cd", 3))

	got := truncate("日本語のアルバム", 3)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "日本語", got)
}
