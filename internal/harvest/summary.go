// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pmc-harvest/internal/download"
	"github.com/pdiddy/pmc-harvest/internal/resolve"
)

// SummaryFile is the end-of-run report written to the extraction directory.
const SummaryFile = "failures.yaml"

// FailureRecord is one recoverable failure in the run summary.
type FailureRecord struct {
	ArticleID string `yaml:"article_id,omitempty"`
	MediaID   string `yaml:"media_id,omitempty"`
	FileName  string `yaml:"file_name,omitempty"`
	URL       string `yaml:"url,omitempty"`
	Error     string `yaml:"error"`
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	RunID         string    `yaml:"run_id"`
	StartedAt     time.Time `yaml:"started_at"`
	FinishedAt    time.Time `yaml:"finished_at"`
	Volumes       []int     `yaml:"volumes"`
	Sidecar       string    `yaml:"sidecar"`
	SidecarReused bool      `yaml:"sidecar_reused"`
	Descriptors   int       `yaml:"descriptors"`

	Resolved           int             `yaml:"resolved"`
	ResolutionFailures []FailureRecord `yaml:"resolution_failures"`

	Downloaded       int             `yaml:"downloaded"`
	Skipped          int             `yaml:"skipped"`
	DownloadFailures []FailureRecord `yaml:"download_failures"`
}

// Failed returns the number of items that did not end up on disk.
func (s *Summary) Failed() int {
	return len(s.DownloadFailures)
}

// HasFailures reports whether any recoverable failure occurred.
func (s *Summary) HasFailures() bool {
	return len(s.ResolutionFailures) > 0 || len(s.DownloadFailures) > 0
}

func (s *Summary) addResolution(report resolve.Report) {
	s.Resolved = report.Resolved()
	for _, f := range report.Failures {
		s.ResolutionFailures = append(s.ResolutionFailures, FailureRecord{
			ArticleID: f.ArticleID,
			MediaID:   f.MediaID,
			URL:       f.URL,
			Error:     f.Err.Error(),
		})
	}
}

func (s *Summary) addDownloads(result download.BatchResult) {
	s.Downloaded = result.Downloaded
	s.Skipped = result.Skipped
	for _, f := range result.Failures {
		s.DownloadFailures = append(s.DownloadFailures, FailureRecord{
			FileName: f.FileName,
			URL:      f.URL,
			Error:    f.Err.Error(),
		})
	}
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s *Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary %s: %w", path, err)
	}
	return &s, nil
}
