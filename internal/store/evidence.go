package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) ListEvidence(ctx context.Context, claimID string) ([]Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, source_title, source_type, source_url, key_quote, key_point,
			kb_resource_id, attachment_key, created_at, updated_at
		FROM evidence
		WHERE claim_id=$1
		ORDER BY created_at ASC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	items := make([]Evidence, 0)
	for rows.Next() {
		var item Evidence
		if err := rows.Scan(
			&item.ID,
			&item.ClaimID,
			&item.SourceTitle,
			&item.SourceType,
			&item.SourceURL,
			&item.KeyQuote,
			&item.KeyPoint,
			&item.KBResourceID,
			&item.AttachmentKey,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetEvidence(ctx context.Context, evidenceID string) (Evidence, error) {
	var item Evidence
	err := s.db.QueryRowContext(ctx, `
		SELECT id, claim_id, source_title, source_type, source_url, key_quote, key_point,
			kb_resource_id, attachment_key, created_at, updated_at
		FROM evidence
		WHERE id=$1
	`, evidenceID).Scan(
		&item.ID,
		&item.ClaimID,
		&item.SourceTitle,
		&item.SourceType,
		&item.SourceURL,
		&item.KeyQuote,
		&item.KeyPoint,
		&item.KBResourceID,
		&item.AttachmentKey,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Evidence{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertEvidence(ctx context.Context, item Evidence) (Evidence, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO evidence (id, claim_id, source_title, source_type, source_url, key_quote, key_point, kb_resource_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, item.ID, item.ClaimID, item.SourceTitle, item.SourceType, item.SourceURL, item.KeyQuote, item.KeyPoint, item.KBResourceID).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Evidence{}, fmt.Errorf("insert evidence: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateEvidence(ctx context.Context, item Evidence) (Evidence, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE evidence
		SET source_title=$2, source_type=$3, source_url=$4, key_quote=$5, key_point=$6,
			kb_resource_id=$7, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.SourceTitle, item.SourceType, item.SourceURL, item.KeyQuote, item.KeyPoint, item.KBResourceID)
	if err != nil {
		return Evidence{}, fmt.Errorf("update evidence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Evidence{}, fmt.Errorf("update evidence rows: %w", err)
	}
	if affected == 0 {
		return Evidence{}, sql.ErrNoRows
	}
	return s.GetEvidence(ctx, item.ID)
}

func (s *PostgresStore) SetEvidenceAttachment(ctx context.Context, evidenceID, attachmentKey string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE evidence SET attachment_key=$2, updated_at=NOW() WHERE id=$1
	`, evidenceID, attachmentKey)
	if err != nil {
		return fmt.Errorf("set evidence attachment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set evidence attachment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteEvidence(ctx context.Context, evidenceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM evidence WHERE id=$1`, evidenceID)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete evidence rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AttachmentKeysForInvestigation lists object keys referenced by the
// evidence of an investigation. Read before a cascade delete so the
// orphaned objects can be removed from storage afterwards.
func (s *PostgresStore) AttachmentKeysForInvestigation(ctx context.Context, investigationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.attachment_key
		FROM evidence e
		JOIN claims c ON c.id = e.claim_id
		WHERE c.investigation_id=$1 AND e.attachment_key <> ''
	`, investigationID)
	if err != nil {
		return nil, fmt.Errorf("list attachment keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan attachment key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachment keys: %w", err)
	}
	return keys, nil
}

// AttachmentKeysForClaim is the claim-level variant used by claim deletes.
func (s *PostgresStore) AttachmentKeysForClaim(ctx context.Context, claimID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attachment_key FROM evidence WHERE claim_id=$1 AND attachment_key <> ''
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list claim attachment keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan claim attachment key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim attachment keys: %w", err)
	}
	return keys, nil
}
