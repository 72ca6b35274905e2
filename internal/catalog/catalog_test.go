package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pmc-harvest/internal/sidecar"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "index", "catalog.db"), types.CatalogConfig{MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func sampleDescriptors() []types.MediaDescriptor {
	return []types.MediaDescriptor{
		{
			ArticleID: "PMC100", MediaID: "f1", MediaKind: types.MediaImage,
			Caption: "Confocal microscopy of zebrafish neurons", SourceReference: "g1",
			ResolvedURL: "https://cdn.test/PMC100_f1.jpg", FileName: "PMC100_f1.jpg", DOI: "10.1/a",
		},
		{
			ArticleID: "PMC100", MediaID: "f2", MediaKind: types.MediaVideo,
			Caption: "Time-lapse of neuron migration", SourceReference: "m.mov",
			ResolvedURL: "https://cdn.test/m.mov", FileName: "PMC100_f2.mov", DOI: "10.1/a",
		},
		{
			ArticleID: "PMC200", MediaID: "F1", MediaKind: types.MediaImage,
			Caption: "Western blot of liver tissue", SourceReference: "g2",
			FileName: "PMC200_F1.jpg",
		},
		{
			ArticleID: "PMC300", MediaID: "f1", MediaKind: types.MediaImage,
			SourceReference: "g3", ResolvedURL: "https://cdn.test/g3.jpg", FileName: "PMC300_f1.jpg",
		},
	}
}

func ingest(t *testing.T, s *Store, descs []types.MediaDescriptor) IngestSummary {
	t.Helper()
	summary, err := s.Ingest(context.Background(), descs)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return summary
}

// --- tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	s, dir := testStore(t)
	if _, err := os.Stat(filepath.Join(dir, "index", "catalog.db")); err != nil {
		t.Fatalf("database file: %v", err)
	}
	for _, table := range []string{"articles", "media", "sources", "media_fts"} {
		var n int
		if err := s.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE name = ?`, table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestNewStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := NewStore(path, types.CatalogConfig{})
	if err != nil {
		t.Fatal(err)
	}
	ingest(t, s, sampleDescriptors())
	s.Close()

	s, err = NewStore(path, types.CatalogConfig{})
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Media != 4 {
		t.Errorf("Media = %d, want 4", st.Media)
	}
}

func TestIngestAndStats(t *testing.T) {
	s, _ := testStore(t)
	summary := ingest(t, s, sampleDescriptors())
	if summary.Indexed != 3 || summary.Updated != 0 {
		t.Errorf("summary = %+v, want 3 indexed", summary)
	}

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Articles: 3, Media: 4, Images: 3, Videos: 1, Resolved: 3, Captioned: 3}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
}

func TestIngestReplacesArticleMedia(t *testing.T) {
	s, _ := testStore(t)
	ingest(t, s, sampleDescriptors())

	replacement := []types.MediaDescriptor{{
		ArticleID: "PMC100", MediaID: "f9", MediaKind: types.MediaImage,
		Caption: "Replacement figure", SourceReference: "g9", FileName: "PMC100_f9.jpg",
	}}
	summary := ingest(t, s, replacement)
	if summary.Updated != 1 || summary.Indexed != 0 {
		t.Errorf("summary = %+v, want 1 updated", summary)
	}

	results, err := s.Search(context.Background(), QueryOptions{ArticleID: "PMC100"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].MediaID != "f9" {
		t.Errorf("PMC100 media = %+v, want only f9", results)
	}

	// The old captions are gone from the full-text index.
	results, err = s.Search(context.Background(), QueryOptions{Query: "zebrafish"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("stale FTS rows: %+v", results)
	}
}

func TestSearchFullText(t *testing.T) {
	s, _ := testStore(t)
	ingest(t, s, sampleDescriptors())

	results, err := s.Search(context.Background(), QueryOptions{Query: "neuron*"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.ArticleID != "PMC100" {
			t.Errorf("unexpected article %s", r.ArticleID)
		}
		if r.DOI != "10.1/a" {
			t.Errorf("DOI = %q, want 10.1/a", r.DOI)
		}
	}
}

func TestSearchFilters(t *testing.T) {
	s, _ := testStore(t)
	ingest(t, s, sampleDescriptors())

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"all", QueryOptions{}, []string{"PMC100/f1", "PMC100/f2", "PMC200/F1", "PMC300/f1"}},
		{"videos", QueryOptions{Kind: types.MediaVideo}, []string{"PMC100/f2"}},
		{"images with text", QueryOptions{Query: "blot", Kind: types.MediaImage}, []string{"PMC200/F1"}},
		{"resolved only", QueryOptions{Kind: types.MediaImage, ResolvedOnly: true}, []string{"PMC100/f1", "PMC300/f1"}},
		{"article", QueryOptions{ArticleID: "PMC300"}, []string{"PMC300/f1"}},
		{"limit", QueryOptions{MaxResults: 1}, []string{"PMC100/f1"}},
		{"no match", QueryOptions{Query: "kangaroo"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Search(context.Background(), tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, r := range results {
				got = append(got, r.ArticleID+"/"+r.MediaID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchRoundTripsDescriptor(t *testing.T) {
	s, _ := testStore(t)
	descs := sampleDescriptors()
	ingest(t, s, descs)

	results, err := s.Search(context.Background(), QueryOptions{ArticleID: "PMC200"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].MediaDescriptor != descs[2] {
		t.Errorf("descriptor = %+v, want %+v", results[0].MediaDescriptor, descs[2])
	}
}

func TestIngestSidecarSkipsUnchanged(t *testing.T) {
	s, dir := testStore(t)
	path := filepath.Join(dir, "0.jsonl")
	if err := sidecar.Write(path, sampleDescriptors()); err != nil {
		t.Fatal(err)
	}

	summary, err := s.IngestSidecar(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total() != 3 || summary.Unchanged {
		t.Errorf("first ingest = %+v", summary)
	}

	summary, err = s.IngestSidecar(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Unchanged {
		t.Errorf("second ingest = %+v, want unchanged", summary)
	}

	// Touching the file forces a re-ingest as updates.
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	summary, err = s.IngestSidecar(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Updated != 3 {
		t.Errorf("third ingest = %+v, want 3 updated", summary)
	}
}

func TestIngestSidecarMissing(t *testing.T) {
	s, dir := testStore(t)
	if _, err := s.IngestSidecar(context.Background(), filepath.Join(dir, "nope.jsonl")); err == nil {
		t.Fatal("expected error for missing sidecar")
	}
}

func TestExport(t *testing.T) {
	s, dir := testStore(t)
	ingest(t, s, sampleDescriptors())

	jsonPath := filepath.Join(dir, "videos.json")
	n, err := s.Export(context.Background(), QueryOptions{Kind: types.MediaVideo}, jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("exported %d, want 1", n)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var fromJSON []map[string]any
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatal(err)
	}
	if len(fromJSON) != 1 || fromJSON[0]["file_name"] != "PMC100_f2.mov" {
		t.Errorf("json export = %v", fromJSON)
	}

	yamlPath := filepath.Join(dir, "all.yaml")
	if _, err := s.Export(context.Background(), QueryOptions{}, yamlPath); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	var fromYAML []map[string]any
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatal(err)
	}
	if len(fromYAML) != 4 || fromYAML[3]["article_id"] != "PMC300" {
		t.Errorf("yaml export = %v", fromYAML)
	}
}
