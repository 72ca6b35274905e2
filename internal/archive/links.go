// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive downloads and unpacks the PMC Open Access bulk volumes
// and prepares the extraction directory.
package archive

import (
	"fmt"
	"net/url"

	"github.com/pdiddy/pmc-harvest/internal/volume"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// MaxVolume is the highest OA bulk volume id.
const MaxVolume = 9

// Link locates the manifest and tarball of one volume.
type Link struct {
	Volume      string
	ManifestURL string
	ArchiveURL  string
}

// LinkFor builds the download links of volume id from the configured base
// URL and baseline date.
func LinkFor(cfg types.ArchiveConfig, id int) (Link, error) {
	if id < 0 || id > MaxVolume {
		return Link{}, fmt.Errorf("volume id %d out of range 0-%d", id, MaxVolume)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return Link{}, fmt.Errorf("parsing base URL %q: %w", cfg.BaseURL, err)
	}

	name := volume.Name(id)
	return Link{
		Volume:      name,
		ManifestURL: base.JoinPath(volume.ManifestName(name, cfg.Baseline)).String(),
		ArchiveURL:  base.JoinPath(volume.ArchiveName(name, cfg.Baseline)).String(),
	}, nil
}
