package config

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxAlbumSize is the destination's per-album image cap.
	DefaultMaxAlbumSize = 5000

	// DefaultMaxNameLength is the longest album name the destination accepts.
	DefaultMaxNameLength = 255

	// DefaultMaxTitleLength is the longest photo title the destination accepts.
	DefaultMaxTitleLength = 255
)

// Limits holds the destination platform limits that source data is shaped to.
type Limits struct {
	// MaxAlbumSize is the maximum number of photos placed in a single destination album.
	MaxAlbumSize int `json:"max_album_size" yaml:"max_album_size"`

	// MaxNameLength is the maximum album name length in runes.
	MaxNameLength int `json:"max_name_length" yaml:"max_name_length"`

	// MaxTitleLength is the maximum photo title length in runes.
	MaxTitleLength int `json:"max_title_length" yaml:"max_title_length"`
}

// DefaultLimits returns the destination's documented limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAlbumSize:   DefaultMaxAlbumSize,
		MaxNameLength:  DefaultMaxNameLength,
		MaxTitleLength: DefaultMaxTitleLength,
	}
}

// Merge returns l with every unset field filled from defaults.
func (l Limits) Merge(defaults Limits) Limits {
	if l.MaxAlbumSize == 0 {
		l.MaxAlbumSize = defaults.MaxAlbumSize
	}
	if l.MaxNameLength == 0 {
		l.MaxNameLength = defaults.MaxNameLength
	}
	if l.MaxTitleLength == 0 {
		l.MaxTitleLength = defaults.MaxTitleLength
	}
	return l
}

// Validate checks that all limits are usable.
func (l Limits) Validate() error {
	var errs []error
	if l.MaxAlbumSize < 1 {
		errs = append(errs, fmt.Errorf("max album size must be positive, got %d", l.MaxAlbumSize))
	}
	if l.MaxNameLength < 1 {
		errs = append(errs, fmt.Errorf("max name length must be positive, got %d", l.MaxNameLength))
	}
	if l.MaxTitleLength < 1 {
		errs = append(errs, fmt.Errorf("max title length must be positive, got %d", l.MaxTitleLength))
	}
	return errors.Join(errs...)
}
