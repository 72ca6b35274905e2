// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sidecar persists media descriptors as line-delimited JSON. A
// sidecar is written once per volume set and read back verbatim on rerun;
// it is never merged or updated in place.
package sidecar

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

const maxLineBytes = 16 << 20

// Path returns the sidecar location for a volume set: the volume ids are
// concatenated in request order (volumes 0 and 3 -> "03.jsonl").
func Path(extractionDir string, volumes []int) string {
	var b strings.Builder
	for _, v := range volumes {
		b.WriteString(strconv.Itoa(v))
	}
	return filepath.Join(extractionDir, b.String()+".jsonl")
}

// Exists reports whether a sidecar is already present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Encode writes one JSON object per descriptor to w.
func Encode(w io.Writer, descs []types.MediaDescriptor) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range descs {
		if err := enc.Encode(&descs[i]); err != nil {
			return fmt.Errorf("encoding descriptor %s/%s: %w", descs[i].ArticleID, descs[i].MediaID, err)
		}
	}
	return nil
}

// Write stores descs at path through a temporary file and rename, so an
// interrupted run never leaves a truncated sidecar behind.
func Write(path string, descs []types.MediaDescriptor) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".sidecar-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	bw := bufio.NewWriter(tmpFile)
	encErr := Encode(bw, descs)
	if encErr == nil {
		encErr = bw.Flush()
	}
	closeErr := tmpFile.Close()
	if encErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing sidecar: %w", encErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Decode reads line-delimited descriptors from r. Blank lines are ignored.
func Decode(r io.Reader) ([]types.MediaDescriptor, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var descs []types.MediaDescriptor
	for line := 1; sc.Scan(); line++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var d types.MediaDescriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		descs = append(descs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return descs, nil
}

// Read loads every descriptor stored at path.
func Read(path string) ([]types.MediaDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sidecar: %w", err)
	}
	defer f.Close()

	descs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", path, err)
	}
	return descs, nil
}
