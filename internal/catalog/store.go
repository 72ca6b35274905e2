// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog indexes harvested media descriptors in SQLite with a
// full-text index over captions, so the corpus can be searched without
// rereading the sidecar.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pmc-harvest/internal/sidecar"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

const defaultMaxResults = 20

// Store manages the catalog database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the catalog database at path and creates the
// schema if it does not exist.
func NewStore(path string, cfg types.CatalogConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			doi TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS media (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id TEXT NOT NULL REFERENCES articles(id),
			media_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			caption TEXT NOT NULL,
			source_reference TEXT NOT NULL,
			resolved_url TEXT,
			file_name TEXT NOT NULL,
			UNIQUE(article_id, media_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_article_id ON media(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_media_kind ON media(kind)`,
		`CREATE TABLE IF NOT EXISTS sources (
			path TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='media_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE media_fts USING fts5(caption, content=media, content_rowid=rowid)`,
		`CREATE TRIGGER media_ai AFTER INSERT ON media BEGIN
			INSERT INTO media_fts(rowid, caption) VALUES (new.rowid, new.caption);
		END`,
		`CREATE TRIGGER media_ad AFTER DELETE ON media BEGIN
			INSERT INTO media_fts(media_fts, rowid, caption) VALUES('delete', old.rowid, old.caption);
		END`,
		`CREATE TRIGGER media_au AFTER UPDATE ON media BEGIN
			INSERT INTO media_fts(media_fts, rowid, caption) VALUES('delete', old.rowid, old.caption);
			INSERT INTO media_fts(rowid, caption) VALUES (new.rowid, new.caption);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// IngestSummary holds article counts from an ingest run.
type IngestSummary struct {
	Indexed int
	Updated int
	// Unchanged is set when the sidecar was already ingested at its
	// current modification time.
	Unchanged bool
}

// Total returns the number of articles written.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated
}

// IngestSidecar loads the sidecar at path. A sidecar whose modification
// time matches the last ingest is skipped.
func (s *Store) IngestSidecar(ctx context.Context, path string) (IngestSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading sidecar: %w", err)
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

	var stored string
	err = s.db.QueryRowContext(ctx, `SELECT file_mod_time FROM sources WHERE path = ?`, path).Scan(&stored)
	if err == nil && stored == modTime {
		return IngestSummary{Unchanged: true}, nil
	}

	descs, err := sidecar.Read(path)
	if err != nil {
		return IngestSummary{}, err
	}
	summary, err := s.Ingest(ctx, descs)
	if err != nil {
		return summary, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sources (path, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		path, modTime)
	if err != nil {
		return summary, fmt.Errorf("updating source status: %w", err)
	}
	return summary, nil
}

// Ingest writes descriptors grouped by article. An article already in the
// catalog has its media replaced.
func (s *Store) Ingest(ctx context.Context, descs []types.MediaDescriptor) (IngestSummary, error) {
	var summary IngestSummary
	for start := 0; start < len(descs); {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		end := start + 1
		for end < len(descs) && descs[end].ArticleID == descs[start].ArticleID {
			end++
		}

		updated, err := s.ingestArticle(ctx, descs[start:end])
		if err != nil {
			return summary, fmt.Errorf("ingesting %s: %w", descs[start].ArticleID, err)
		}
		if updated {
			summary.Updated++
		} else {
			summary.Indexed++
		}
		start = end
	}
	return summary, nil
}

func (s *Store) ingestArticle(ctx context.Context, descs []types.MediaDescriptor) (bool, error) {
	articleID := descs[0].ArticleID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM articles WHERE id = ?`, articleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking article: %w", err)
	}
	if exists > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE article_id = ?`, articleID); err != nil {
			return false, fmt.Errorf("deleting old media: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO articles (id, doi) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET doi=excluded.doi`,
		articleID, descs[0].DOI)
	if err != nil {
		return false, fmt.Errorf("upserting article: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO media (article_id, media_id, kind, caption, source_reference, resolved_url, file_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return false, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range descs {
		_, err := stmt.ExecContext(ctx,
			d.ArticleID, d.MediaID, string(d.MediaKind), d.Caption,
			d.SourceReference, nullable(d.ResolvedURL), d.FileName)
		if err != nil {
			return false, fmt.Errorf("inserting media %s: %w", d.MediaID, err)
		}
	}
	return exists > 0, tx.Commit()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
