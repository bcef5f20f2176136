package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) ListInvestigations(ctx context.Context) ([]InvestigationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.slug, i.title, i.overview_html, i.status, i.created_at, i.updated_at,
			(SELECT COUNT(*) FROM definitions d WHERE d.investigation_id = i.id) AS definition_count,
			(SELECT COUNT(*) FROM claims c WHERE c.investigation_id = i.id) AS claim_count
		FROM investigations i
		ORDER BY i.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	defer rows.Close()

	items := make([]InvestigationSummary, 0)
	for rows.Next() {
		var item InvestigationSummary
		if err := rows.Scan(
			&item.ID,
			&item.Slug,
			&item.Title,
			&item.OverviewHTML,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.DefinitionCount,
			&item.ClaimCount,
		); err != nil {
			return nil, fmt.Errorf("scan investigation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investigations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetInvestigationBySlug(ctx context.Context, slug string) (Investigation, error) {
	var item Investigation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, overview_html, status, created_at, updated_at
		FROM investigations
		WHERE slug=$1
	`, slug).Scan(&item.ID, &item.Slug, &item.Title, &item.OverviewHTML, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Investigation{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetInvestigation(ctx context.Context, investigationID string) (Investigation, error) {
	var item Investigation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, overview_html, status, created_at, updated_at
		FROM investigations
		WHERE id=$1
	`, investigationID).Scan(&item.ID, &item.Slug, &item.Title, &item.OverviewHTML, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Investigation{}, err
	}
	return item, nil
}

// InsertInvestigation reserves the global slug and inserts the row in
// one transaction. The returned slug may carry a numeric suffix when
// the requested one collides.
func (s *PostgresStore) InsertInvestigation(ctx context.Context, item Investigation, baseSlug string) (Investigation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Investigation{}, fmt.Errorf("begin insert investigation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reserved, err := reserveSlug(ctx, tx, ScopeGlobal, KindInvestigation, item.ID, baseSlug)
	if err != nil {
		return Investigation{}, err
	}
	item.Slug = reserved

	err = tx.QueryRowContext(ctx, `
		INSERT INTO investigations (id, slug, title, overview_html, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, item.ID, item.Slug, item.Title, item.OverviewHTML, item.Status).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Investigation{}, fmt.Errorf("insert investigation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Investigation{}, fmt.Errorf("commit insert investigation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateInvestigation(ctx context.Context, investigationID, title, overviewHTML, status string) (Investigation, error) {
	var item Investigation
	err := s.db.QueryRowContext(ctx, `
		UPDATE investigations
		SET title=$2, overview_html=$3, status=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, slug, title, overview_html, status, created_at, updated_at
	`, investigationID, title, overviewHTML, status).Scan(
		&item.ID, &item.Slug, &item.Title, &item.OverviewHTML, &item.Status, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Investigation{}, err
	}
	return item, nil
}

// DeleteInvestigation removes the investigation and, through ON DELETE
// CASCADE, every definition, claim, counterargument and evidence row
// under it. Slug reservations for the subtree are released, not
// deleted, in the same transaction.
func (s *PostgresStore) DeleteInvestigation(ctx context.Context, investigationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete investigation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE slug_index SET released_at=NOW()
		WHERE released_at IS NULL AND (scope=$1 OR (scope=$2 AND entity_id=$1))
	`, investigationID, ScopeGlobal); err != nil {
		return fmt.Errorf("release investigation slugs: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM investigations WHERE id=$1`, investigationID)
	if err != nil {
		return fmt.Errorf("delete investigation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete investigation rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete investigation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDefinitions(ctx context.Context, investigationID string) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, investigation_id, slug, term, definition_html, see_also, created_at, updated_at
		FROM definitions
		WHERE investigation_id=$1
		ORDER BY term ASC
	`, investigationID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	items := make([]Definition, 0)
	for rows.Next() {
		item, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDefinitionBySlug(ctx context.Context, investigationID, defSlug string) (Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, investigation_id, slug, term, definition_html, see_also, created_at, updated_at
		FROM definitions
		WHERE investigation_id=$1 AND slug=$2
	`, investigationID, defSlug)
	return scanDefinition(row)
}

func (s *PostgresStore) InsertDefinition(ctx context.Context, item Definition, baseSlug string) (Definition, error) {
	seeAlso, err := encodeSeeAlso(item.SeeAlso)
	if err != nil {
		return Definition{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Definition{}, fmt.Errorf("begin insert definition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reserved, err := reserveSlug(ctx, tx, item.InvestigationID, KindDefinition, item.ID, baseSlug)
	if err != nil {
		return Definition{}, err
	}
	item.Slug = reserved

	err = tx.QueryRowContext(ctx, `
		INSERT INTO definitions (id, investigation_id, slug, term, definition_html, see_also)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING created_at, updated_at
	`, item.ID, item.InvestigationID, item.Slug, item.Term, item.DefinitionHTML, seeAlso).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Definition{}, fmt.Errorf("insert definition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Definition{}, fmt.Errorf("commit insert definition: %w", err)
	}
	return item, nil
}

// UpdateDefinition leaves the slug untouched: renaming a term does not
// re-point the links that already reference it.
func (s *PostgresStore) UpdateDefinition(ctx context.Context, definitionID, term, definitionHTML string, seeAlso []string) (Definition, error) {
	encoded, err := encodeSeeAlso(seeAlso)
	if err != nil {
		return Definition{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE definitions
		SET term=$2, definition_html=$3, see_also=$4::jsonb, updated_at=NOW()
		WHERE id=$1
		RETURNING id, investigation_id, slug, term, definition_html, see_also, created_at, updated_at
	`, definitionID, term, definitionHTML, encoded)
	return scanDefinition(row)
}

func (s *PostgresStore) DeleteDefinition(ctx context.Context, investigationID, definitionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete definition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE slug_index SET released_at=NOW()
		WHERE scope=$1 AND entity_id=$2 AND released_at IS NULL
	`, investigationID, definitionID); err != nil {
		return fmt.Errorf("release definition slug: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM definitions WHERE id=$1 AND investigation_id=$2
	`, definitionID, investigationID)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete definition rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete definition: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (Definition, error) {
	var item Definition
	var seeAlsoRaw []byte
	if err := row.Scan(
		&item.ID,
		&item.InvestigationID,
		&item.Slug,
		&item.Term,
		&item.DefinitionHTML,
		&seeAlsoRaw,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return Definition{}, err
	}
	if err := json.Unmarshal(seeAlsoRaw, &item.SeeAlso); err != nil {
		return Definition{}, fmt.Errorf("decode see_also: %w", err)
	}
	if item.SeeAlso == nil {
		item.SeeAlso = []string{}
	}
	return item, nil
}

func encodeSeeAlso(seeAlso []string) (string, error) {
	if seeAlso == nil {
		seeAlso = []string{}
	}
	encoded, err := json.Marshal(seeAlso)
	if err != nil {
		return "", fmt.Errorf("marshal see_also: %w", err)
	}
	return string(encoded), nil
}
