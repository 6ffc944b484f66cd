package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ReadManifest decodes and validates a JSON export manifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &m, nil
}

// validate checks that every album and photo can be keyed.
func (m *Manifest) validate() error {
	var errs []error

	seenAlbums := make(map[string]bool, len(m.Albums))
	for i, a := range m.Albums {
		switch {
		case a.ID == "":
			errs = append(errs, fmt.Errorf("album %d: id is required", i))
		case seenAlbums[a.ID]:
			errs = append(errs, fmt.Errorf("album %d: duplicate id %q", i, a.ID))
		}
		seenAlbums[a.ID] = true
	}

	for i, p := range m.Photos {
		if p.DataID == "" {
			errs = append(errs, fmt.Errorf("photo %d: dataId is required", i))
		}
		if p.FetchableURL == "" {
			errs = append(errs, fmt.Errorf("photo %d: fetchableUrl is required", i))
		}
	}

	return errors.Join(errs...)
}
