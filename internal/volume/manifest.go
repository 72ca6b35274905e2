// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package volume

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ArticleFileColumn is the manifest column holding each article's markup
// path relative to the volume directory.
const ArticleFileColumn = "Article File"

// ManifestReadError reports a missing or corrupt volume manifest. It is
// fatal for the whole run: a partial volume would make the sidecar an
// incomplete snapshot.
type ManifestReadError struct {
	Volume string
	Path   string
	Row    int // 1-based data row, 0 when the failure is not row-specific
	Err    error
}

func (e *ManifestReadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("volume %s: manifest %s row %d: %v", e.Volume, e.Path, e.Row, e.Err)
	}
	return fmt.Sprintf("volume %s: manifest %s: %v", e.Volume, e.Path, e.Err)
}

func (e *ManifestReadError) Unwrap() error { return e.Err }

// ReadManifest returns the article file paths listed in a volume manifest,
// in row order.
func ReadManifest(volume, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ManifestReadError{Volume: volume, Path: path, Err: err}
	}
	defer f.Close()

	articles, row, err := parseManifest(f)
	if err != nil {
		return nil, &ManifestReadError{Volume: volume, Path: path, Row: row, Err: err}
	}
	return articles, nil
}

func parseManifest(r io.Reader) ([]string, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, errors.New("empty manifest")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}

	col := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == ArticleFileColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, 0, fmt.Errorf("missing %q column", ArticleFileColumn)
	}

	var articles []string
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return articles, 0, nil
		}
		if err != nil {
			return nil, row, err
		}
		if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
			return nil, row, fmt.Errorf("empty %q cell", ArticleFileColumn)
		}
		articles = append(articles, strings.TrimSpace(rec[col]))
	}
}
