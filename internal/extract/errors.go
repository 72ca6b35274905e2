// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import "fmt"

// UnsupportedMediaError reports a fig element that cannot be turned into a
// descriptor: no graphic or media child, a missing id, or a missing href.
// It is fatal for the article; skipping would leave an unrecorded gap in
// the corpus.
type UnsupportedMediaError struct {
	ArticleID string
	MediaID   string
	Reason    string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("article %s: figure %q: unsupported media: %s", e.ArticleID, e.MediaID, e.Reason)
}

// UnrecognizedExtensionError reports a derived file extension outside
// types.AllowedExtensions.
type UnrecognizedExtensionError struct {
	ArticleID string
	MediaID   string
	Reference string
	Extension string
}

func (e *UnrecognizedExtensionError) Error() string {
	return fmt.Sprintf("article %s: figure %q: unrecognized media extension %q (reference %q)",
		e.ArticleID, e.MediaID, e.Extension, e.Reference)
}
