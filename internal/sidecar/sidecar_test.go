// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sidecar

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

func sampleDescriptors() []types.MediaDescriptor {
	return []types.MediaDescriptor{
		{
			ArticleID:       "PMC1",
			MediaID:         "f1",
			MediaKind:       types.MediaImage,
			Caption:         "Cells & <nuclei>",
			SourceReference: "g1",
			ResolvedURL:     "https://example.org/PMC1/g1.jpg",
			FileName:        "PMC1_f1.jpg",
			DOI:             "10.1/abc",
		},
		{
			ArticleID:       "PMC1",
			MediaID:         "f2",
			MediaKind:       types.MediaVideo,
			SourceReference: "clip.avi",
			FileName:        "PMC1_f2.avi",
		},
	}
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("root", "0.jsonl"), Path("root", []int{0}))
	assert.Equal(t, filepath.Join("root", "031.jsonl"), Path("root", []int{0, 3, 1}))
}

func TestEncodeFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleDescriptors()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"article_id":"PMC1","media_id":"f1","media_kind":"image","caption":"Cells & <nuclei>","source_reference":"g1","resolved_url":"https://example.org/PMC1/g1.jpg","file_name":"PMC1_f1.jpg","doi":"10.1/abc"}`,
		lines[0])
	assert.Equal(t,
		`{"article_id":"PMC1","media_id":"f2","media_kind":"video","caption":"","source_reference":"clip.avi","file_name":"PMC1_f2.avi"}`,
		lines[1])
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "0.jsonl")
	want := sampleDescriptors()

	require.False(t, Exists(path))
	require.NoError(t, Write(path, want))
	require.True(t, Exists(path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.jsonl")
	require.NoError(t, Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeSkipsBlankLinesAndReportsLine(t *testing.T) {
	in := "{\"article_id\":\"A\",\"media_id\":\"1\"}\n\n{\"article_id\":\"B\",\"media_id\":\"2\"}\n"
	got, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].ArticleID)

	_, err = Decode(strings.NewReader("{\"article_id\":\"A\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
