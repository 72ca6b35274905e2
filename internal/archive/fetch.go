// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/download"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Fetcher downloads volume manifests and tarballs and unpacks them under
// the extraction directory.
type Fetcher struct {
	dl  *download.Downloader
	cfg types.ArchiveConfig
	log *zap.Logger
}

// NewFetcher creates a fetcher that downloads through dl.
func NewFetcher(dl *download.Downloader, cfg types.ArchiveConfig, log *zap.Logger) *Fetcher {
	return &Fetcher{dl: dl, cfg: cfg, log: log}
}

// FetchAll fetches and extracts each volume in order.
func (f *Fetcher) FetchAll(ctx context.Context, ids []int) error {
	for _, id := range ids {
		if _, err := f.FetchAndExtract(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// FetchAndExtract makes volume id available at
// {extraction_dir}/{volume}/{volume}. Files already on disk are not
// downloaded again and a volume already unpacked is not extracted again.
// It returns the volume directory.
func (f *Fetcher) FetchAndExtract(ctx context.Context, id int) (string, error) {
	link, err := LinkFor(f.cfg, id)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(f.cfg.ExtractionDir, link.Volume)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tarPath := filepath.Join(dir, path.Base(link.ArchiveURL))
	for _, u := range []string{link.ManifestURL, link.ArchiveURL} {
		dest := filepath.Join(dir, path.Base(u))
		if _, err := os.Stat(dest); err == nil {
			f.log.Info("already downloaded", zap.String("file", dest))
			continue
		}
		f.log.Info("downloading", zap.String("volume", link.Volume), zap.String("url", u))
		if err := f.dl.Fetch(ctx, u, dest); err != nil {
			return "", fmt.Errorf("volume %s: %w", link.Volume, err)
		}
	}

	extracted := filepath.Join(dir, link.Volume)
	if _, err := os.Stat(extracted); err == nil {
		f.log.Info("already extracted", zap.String("volume", link.Volume))
		return dir, nil
	}

	f.log.Info("extracting", zap.String("volume", link.Volume), zap.String("archive", tarPath))
	if err := ExtractTarGz(ctx, tarPath, dir); err != nil {
		return "", fmt.Errorf("volume %s: %w", link.Volume, err)
	}
	f.log.Info("extraction complete", zap.String("volume", link.Volume))
	return dir, nil
}

// ExtractTarGz unpacks a gzip-compressed tarball into target. Entries are
// first written to a hidden staging directory and moved into place once
// the whole archive has been read, so an interrupted extraction leaves no
// partial tree behind. Entries escaping target are rejected; links and
// special files are skipped.
func ExtractTarGz(ctx context.Context, archivePath, target string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip header of %s: %w", archivePath, err)
	}
	defer gz.Close()

	staging, err := os.MkdirTemp(target, ".extract-*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", archivePath, err)
		}

		dest, err := entryPath(staging, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
		}
	}

	tops, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	for _, e := range tops {
		if err := os.Rename(filepath.Join(staging, e.Name()), filepath.Join(target, e.Name())); err != nil {
			return fmt.Errorf("moving %s into place: %w", e.Name(), err)
		}
	}
	return nil
}

func entryPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return filepath.Join(root, clean), nil
}

func writeEntry(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
