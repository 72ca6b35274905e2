// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract reads JATS article markup and produces one MediaDescriptor
// per fig element. Extraction is offline: it never resolves or fetches URLs.
package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Element and attribute names consumed from the JATS schema.
const (
	elemFig       = "fig"
	elemGraphic   = "graphic"
	elemMedia     = "media"
	elemCaption   = "caption"
	elemArticleID = "article-id"
	attrID        = "id"
	attrHref      = "href"
	attrPubIDType = "pub-id-type"
	pubIDTypeDOI  = "doi"
	imageExt      = "jpg"
)

// ArticleID derives the article identifier from a markup file path by
// stripping the directory and the ".xml" suffix.
func ArticleID(xmlPath string) string {
	return strings.TrimSuffix(filepath.Base(xmlPath), ".xml")
}

// ExtractFile parses the article at xmlPath. Errors are wrapped with the
// path; typed errors remain reachable through errors.As.
func ExtractFile(xmlPath string) ([]types.MediaDescriptor, error) {
	f, err := os.Open(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", xmlPath, err)
	}
	defer f.Close()

	descs, err := Extract(f, ArticleID(xmlPath))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", xmlPath, err)
	}
	return descs, nil
}

// Extract reads one article's markup and returns its media descriptors in
// document order. A figure without a usable graphic or media reference
// fails the whole article with *UnsupportedMediaError; a media reference
// whose extension is not allowed fails it with *UnrecognizedExtensionError.
// On error no descriptors are returned.
func Extract(r io.Reader, articleID string) ([]types.MediaDescriptor, error) {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	var (
		descs []types.MediaDescriptor
		doi   string
		seen  = make(map[string]bool)
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading markup for %s: %w", articleID, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case elemArticleID:
			if doi != "" || attrValue(start, attrPubIDType) != pubIDTypeDOI {
				continue
			}
			var v struct {
				Text string `xml:",chardata"`
			}
			if err := d.DecodeElement(&v, &start); err != nil {
				return nil, fmt.Errorf("reading DOI for %s: %w", articleID, err)
			}
			doi = strings.TrimSpace(v.Text)

		case elemFig:
			fig, err := readFigure(d, start)
			if err != nil {
				return nil, fmt.Errorf("reading figure in %s: %w", articleID, err)
			}
			desc, err := fig.descriptor(articleID)
			if err != nil {
				return nil, err
			}
			if seen[desc.MediaID] {
				return nil, fmt.Errorf("article %s: duplicate figure id %q", articleID, desc.MediaID)
			}
			seen[desc.MediaID] = true
			descs = append(descs, desc)
		}
	}

	// The DOI usually precedes the body, but nothing in the schema forces it.
	for i := range descs {
		descs[i].DOI = doi
	}
	return descs, nil
}

// figure is the subset of a fig element the extractor needs. hasGraphic and
// hasMedia record presence separately from the href so a child without an
// href is reported rather than mistaken for an absent child.
type figure struct {
	id         string
	hasID      bool
	hasGraphic bool
	graphic    string
	hasMedia   bool
	media      string
	caption    string
	nested     bool
}

// captionBlocks are caption children whose boundaries separate words.
var captionBlocks = map[string]bool{"title": true, "p": true}

// readFigure consumes tokens up to the end of the fig element opened by
// start. The first graphic, media, and caption descendants win.
func readFigure(d *xml.Decoder, start xml.StartElement) (figure, error) {
	var fig figure
	fig.id, fig.hasID = lookupAttr(start, attrID)

	var (
		depth        = 1
		captionDepth = 0
		captionDone  bool
		caption      strings.Builder
	)

	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return fig, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case elemFig:
				fig.nested = true
			case elemGraphic:
				if !fig.hasGraphic {
					fig.hasGraphic = true
					fig.graphic = attrValue(t, attrHref)
				}
			case elemMedia:
				if !fig.hasMedia {
					fig.hasMedia = true
					fig.media = attrValue(t, attrHref)
				}
			case elemCaption:
				if captionDepth == 0 && !captionDone {
					captionDepth = depth
				}
			}
			if captionDepth != 0 && captionBlocks[t.Name.Local] {
				caption.WriteByte(' ')
			}
		case xml.EndElement:
			if captionDepth != 0 && captionBlocks[t.Name.Local] {
				caption.WriteByte(' ')
			}
			if captionDepth != 0 && depth == captionDepth {
				captionDepth = 0
				captionDone = true
			}
			depth--
		case xml.CharData:
			if captionDepth != 0 {
				caption.Write(t)
			}
		}
	}

	fig.caption = strings.Join(strings.Fields(caption.String()), " ")
	return fig, nil
}

// descriptor turns a parsed figure into a MediaDescriptor. Graphics win
// over media when both are present.
func (f figure) descriptor(articleID string) (types.MediaDescriptor, error) {
	if !f.hasID || strings.TrimSpace(f.id) == "" {
		return types.MediaDescriptor{}, &UnsupportedMediaError{ArticleID: articleID, Reason: "fig element has no id"}
	}
	if !validFigureID(f.id) {
		return types.MediaDescriptor{}, &UnsupportedMediaError{ArticleID: articleID, MediaID: f.id, Reason: "fig id is not a valid file name component"}
	}
	if f.nested {
		return types.MediaDescriptor{}, &UnsupportedMediaError{ArticleID: articleID, MediaID: f.id, Reason: "fig element nested inside another fig"}
	}

	desc := types.MediaDescriptor{
		ArticleID: articleID,
		MediaID:   f.id,
		Caption:   f.caption,
	}

	var ext string
	switch {
	case f.hasGraphic:
		if f.graphic == "" {
			return desc, &UnsupportedMediaError{ArticleID: articleID, MediaID: f.id, Reason: "graphic has no href"}
		}
		desc.MediaKind = types.MediaImage
		desc.SourceReference = f.graphic
		// Served images are uniformly JPEG regardless of the archived format.
		ext = imageExt
	case f.hasMedia:
		if f.media == "" {
			return desc, &UnsupportedMediaError{ArticleID: articleID, MediaID: f.id, Reason: "media has no href"}
		}
		desc.MediaKind = types.MediaVideo
		desc.SourceReference = f.media
		ext = MediaExtension(f.media)
	default:
		return desc, &UnsupportedMediaError{ArticleID: articleID, MediaID: f.id, Reason: "no graphic or media element"}
	}

	if !types.AllowedExtensions[ext] {
		return desc, &UnrecognizedExtensionError{
			ArticleID: articleID,
			MediaID:   f.id,
			Reference: desc.SourceReference,
			Extension: ext,
		}
	}

	desc.FileName = FileName(articleID, f.id, ext)
	return desc, nil
}

// validFigureID reports whether id is an XML NCName without "..". The id
// becomes part of a local file name, so separators must never pass.
func validFigureID(id string) bool {
	if id == "" || strings.Contains(id, "..") {
		return false
	}
	for i, r := range id {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

// MediaExtension returns the lower-cased suffix after the last dot of a
// media reference, or "" when there is none.
func MediaExtension(ref string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(ref), "."))
}

// FileName builds the local file name for a media item.
func FileName(articleID, mediaID, ext string) string {
	return fmt.Sprintf("%s_%s.%s", articleID, mediaID, ext)
}

// lookupAttr matches on the local name so both xlink:href and a bare href
// are accepted, whether or not the xlink namespace is declared.
func lookupAttr(el xml.StartElement, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func attrValue(el xml.StartElement, local string) string {
	v, _ := lookupAttr(el, local)
	return v
}
