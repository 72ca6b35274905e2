// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package volume walks downloaded OA bulk volumes and aggregates the media
// descriptors of every listed article. Volumes are processed in the order
// given and articles in manifest row order, so the aggregate is a
// reproducible snapshot.
package volume

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/extract"
	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Name returns the directory and archive stem for a volume id
// (e.g. 3 -> "PMC003xxxxxx").
func Name(id int) string {
	return fmt.Sprintf("PMC00%dxxxxxx", id)
}

// ManifestName returns the file list CSV name for a volume and baseline date.
func ManifestName(volume, baseline string) string {
	return fmt.Sprintf("oa_comm_xml.%s.baseline.%s.filelist.csv", volume, baseline)
}

// ArchiveName returns the tarball name for a volume and baseline date.
func ArchiveName(volume, baseline string) string {
	return fmt.Sprintf("oa_comm_xml.%s.baseline.%s.tar.gz", volume, baseline)
}

// Walker extracts descriptors from every article of the requested volumes.
type Walker struct {
	root     string
	baseline string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewWalker creates a walker over volumes extracted under root.
func NewWalker(root, baseline string, log *zap.Logger, m *metrics.Metrics) *Walker {
	return &Walker{
		root:     root,
		baseline: baseline,
		log:      log,
		metrics:  m,
	}
}

// Walk returns the descriptors of all volumes, concatenated in the given
// volume order. Any manifest or extraction error aborts the walk.
func (w *Walker) Walk(ctx context.Context, volumeIDs []int) ([]types.MediaDescriptor, error) {
	var all []types.MediaDescriptor
	for _, id := range volumeIDs {
		descs, err := w.WalkVolume(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, descs...)
	}
	w.log.Info("walk complete", zap.Ints("volumes", volumeIDs), zap.Int("descriptors", len(all)))
	return all, nil
}

// WalkVolume extracts one volume. Cancellation is honoured between articles.
func (w *Walker) WalkVolume(ctx context.Context, id int) ([]types.MediaDescriptor, error) {
	name := Name(id)
	dir := filepath.Join(w.root, name)
	manifest := filepath.Join(dir, ManifestName(name, w.baseline))

	articles, err := ReadManifest(name, manifest)
	if err != nil {
		return nil, err
	}
	w.log.Info("parsing volume", zap.String("volume", name), zap.Int("articles", len(articles)))

	var descs []types.MediaDescriptor
	for i, rel := range articles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("volume %s interrupted after %d of %d articles: %w", name, i, len(articles), err)
		}

		found, err := extract.ExtractFile(filepath.Join(dir, rel))
		if err != nil {
			return nil, fmt.Errorf("volume %s: %w", name, err)
		}
		w.metrics.IncArticlesParsed()
		for _, d := range found {
			w.metrics.AddDescriptors(string(d.MediaKind), 1)
		}
		if len(found) > 0 {
			w.log.Debug("article parsed", zap.String("article", rel), zap.Int("media", len(found)))
		}
		descs = append(descs, found...)
	}
	return descs, nil
}
