// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pmc-harvest pipeline.
// The MediaDescriptor JSON field names are the sidecar file format and must
// not change between releases.
package types

// MediaKind distinguishes still images from video supplements.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// AllowedExtensions is the set of media file extensions the corpus accepts.
// Any other extension is an extraction error, not a skip.
var AllowedExtensions = map[string]bool{
	"jpg":  true,
	"mov":  true,
	"dcr":  true,
	"avi":  true,
	"mpeg": true,
}

// MediaDescriptor is one discovered figure or media item. One JSON object
// per descriptor is written to the sidecar file.
type MediaDescriptor struct {
	// ArticleID is the article file name without directory and ".xml" suffix
	// (e.g. "PMC176545").
	ArticleID string `json:"article_id" yaml:"article_id"`

	// MediaID is the fig element id, unique within the article only.
	MediaID string `json:"media_id" yaml:"media_id"`

	// MediaKind is image for graphic references and video for media references.
	MediaKind MediaKind `json:"media_kind" yaml:"media_kind"`

	// Caption is the figure caption text. Empty when the figure has none.
	Caption string `json:"caption" yaml:"caption"`

	// SourceReference is the raw xlink:href token from the markup.
	SourceReference string `json:"source_reference" yaml:"source_reference"`

	// ResolvedURL is the directly fetchable asset URL. Empty when resolution failed.
	ResolvedURL string `json:"resolved_url,omitempty" yaml:"resolved_url,omitempty"`

	// FileName is the local file name: {article_id}_{media_id}.{ext}.
	FileName string `json:"file_name" yaml:"file_name"`

	// DOI is the article DOI when the markup carries one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// Resolved reports whether the descriptor has a fetchable URL.
func (d MediaDescriptor) Resolved() bool {
	return d.ResolvedURL != ""
}
