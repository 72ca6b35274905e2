// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

const exportLimit = 1 << 20

// Export writes the media matching opts to path. The format follows the
// extension: ".json" writes JSON, anything else YAML.
func (s *Store) Export(ctx context.Context, opts QueryOptions, path string) (int, error) {
	opts.MaxResults = exportLimit
	results, err := s.Search(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	if results == nil {
		results = []Result{}
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(results, "", "  ")
	default:
		data, err = yaml.Marshal(results)
	}
	if err != nil {
		return 0, fmt.Errorf("marshaling export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return len(results), nil
}
