// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over captions.
	Query string

	// Kind filters by media kind.
	Kind types.MediaKind

	// ArticleID filters by article.
	ArticleID string

	// ResolvedOnly restricts results to media with a resolved URL.
	ResolvedOnly bool

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Result is a catalogued descriptor. Rank is the FTS5 rank (lower is
// better) and zero for filter-only queries.
type Result struct {
	types.MediaDescriptor `yaml:",inline"`
	Rank                  float64 `json:"rank" yaml:"rank"`
}

// Search queries the catalog. Full-text queries are ordered by relevance;
// filter-only queries by article and insertion order.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT m.article_id, m.media_id, m.kind, m.caption, m.source_reference,
				m.resolved_url, m.file_name, a.doi, media_fts.rank
			FROM media_fts
			JOIN media m ON m.rowid = media_fts.rowid
			LEFT JOIN articles a ON m.article_id = a.id
			WHERE media_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT m.article_id, m.media_id, m.kind, m.caption, m.source_reference,
				m.resolved_url, m.file_name, a.doi, 0 AS rank
			FROM media m
			LEFT JOIN articles a ON m.article_id = a.id
			WHERE 1=1`)
	}

	if opts.Kind != "" {
		qb.WriteString(` AND m.kind = ?`)
		args = append(args, string(opts.Kind))
	}
	if opts.ArticleID != "" {
		qb.WriteString(` AND m.article_id = ?`)
		args = append(args, opts.ArticleID)
	}
	if opts.ResolvedOnly {
		qb.WriteString(` AND m.resolved_url IS NOT NULL`)
	}

	if useFTS {
		qb.WriteString(` ORDER BY media_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY m.article_id, m.rowid`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r        Result
			kind     string
			resolved sql.NullString
			doi      sql.NullString
		)
		if err := rows.Scan(
			&r.ArticleID, &r.MediaID, &kind, &r.Caption, &r.SourceReference,
			&resolved, &r.FileName, &doi, &r.Rank,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.MediaKind = types.MediaKind(kind)
		r.ResolvedURL = resolved.String
		r.DOI = doi.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats summarises the catalog contents.
type Stats struct {
	Articles  int `json:"articles" yaml:"articles"`
	Media     int `json:"media" yaml:"media"`
	Images    int `json:"images" yaml:"images"`
	Videos    int `json:"videos" yaml:"videos"`
	Resolved  int `json:"resolved" yaml:"resolved"`
	Captioned int `json:"captioned" yaml:"captioned"`
}

// Stats counts articles and media in the catalog.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM articles`).Scan(&st.Articles); err != nil {
		return st, fmt.Errorf("counting articles: %w", err)
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			coalesce(sum(kind = ?), 0),
			coalesce(sum(kind = ?), 0),
			coalesce(sum(resolved_url IS NOT NULL), 0),
			coalesce(sum(caption != ''), 0)
		FROM media`,
		string(types.MediaImage), string(types.MediaVideo),
	).Scan(&st.Media, &st.Images, &st.Videos, &st.Resolved, &st.Captioned)
	if err != nil {
		return st, fmt.Errorf("counting media: %w", err)
	}
	return st, nil
}
