package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS is the PostgreSQL full-text search fallback. Scores come
// from ts_rank with normalization flag 32
// (rank/(rank+1)), which keeps them inside [0,1) like the primary
// engine's ranking score.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across definitions and claims using
// plainto_tsquery, with ts_headline for excerpts. Ties in rank break by
// most-recently-updated first.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	slugFilter := func(column string) string {
		if len(q.InvestigationSlugs) == 0 {
			return ""
		}
		placeholders := make([]string, 0, len(q.InvestigationSlugs))
		for _, invSlug := range q.InvestigationSlugs {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, invSlug)
			argN++
		}
		return fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ", "))
	}

	var subQueries []string

	if q.WantsKind(ResultDefinition) {
		where := "d.fts @@ " + tsQuery + slugFilter("i.slug")
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'definition'::text AS kind, d.id, d.term AS title,
				ts_headline('english', coalesce(d.definition_html, ''), %s,
					'MaxFragments=1,MaxWords=24,StartSel=<mark>,StopSel=</mark>') AS excerpt,
				d.investigation_id, i.slug AS investigation_slug,
				ts_rank(d.fts, %s, 32) AS rank,
				d.updated_at
			FROM definitions d
			JOIN investigations i ON i.id = d.investigation_id
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if q.WantsKind(ResultClaim) {
		where := "c.fts @@ " + tsQuery + slugFilter("i.slug")
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'claim'::text AS kind, c.id, left(c.claim_text, 120) AS title,
				ts_headline('english', coalesce(c.claim_text, ''), %s,
					'MaxFragments=1,MaxWords=24,StartSel=<mark>,StopSel=</mark>') AS excerpt,
				c.investigation_id, i.slug AS investigation_slug,
				ts_rank(c.fts, %s, 32) AS rank,
				c.updated_at
			FROM claims c
			JOIN investigations i ON i.id = c.investigation_id
			WHERE %s`, tsQuery, tsQuery, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT kind, id, title, excerpt, investigation_id, investigation_slug, rank,
			extract(epoch FROM updated_at)::bigint
		FROM (%s) sub
		ORDER BY rank DESC, updated_at DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var kind string
		if err := rows.Scan(&kind, &r.ID, &r.Title, &r.Excerpt, &r.InvestigationID, &r.InvestigationSlug, &r.Score, &r.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Kind = ResultKind(kind)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DefinitionRecord, []ClaimRecord, error) {
	defRows, err := p.db.QueryContext(ctx, `
		SELECT d.id, d.term, d.definition_html, d.investigation_id, i.slug,
			extract(epoch FROM d.updated_at)::bigint
		FROM definitions d
		JOIN investigations i ON i.id = d.investigation_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load definitions: %w", err)
	}
	defer defRows.Close()

	definitions := make([]DefinitionRecord, 0)
	for defRows.Next() {
		var d DefinitionRecord
		if err := defRows.Scan(&d.ID, &d.Term, &d.Body, &d.InvestigationID, &d.InvestigationSlug, &d.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan definition: %w", err)
		}
		definitions = append(definitions, d)
	}
	if err := defRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate definitions: %w", err)
	}

	claimRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.claim_text, c.investigation_id, i.slug, c.position,
			extract(epoch FROM c.updated_at)::bigint
		FROM claims c
		JOIN investigations i ON i.id = c.investigation_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load claims: %w", err)
	}
	defer claimRows.Close()

	claims := make([]ClaimRecord, 0)
	for claimRows.Next() {
		var c ClaimRecord
		if err := claimRows.Scan(&c.ID, &c.Text, &c.InvestigationID, &c.InvestigationSlug, &c.Position, &c.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := claimRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate claims: %w", err)
	}

	return definitions, claims, nil
}
