package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) (ShareLink, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO share_links (id, token, investigation_id, password_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, link.ID, link.Token, link.InvestigationID, link.PasswordHash, link.ExpiresAt).Scan(&link.CreatedAt)
	if err != nil {
		return ShareLink{}, fmt.Errorf("insert share link: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, investigation_id, password_hash, expires_at, access_count,
			last_accessed_at, created_at, revoked_at
		FROM share_links
		WHERE token=$1
	`, token).Scan(
		&link.ID,
		&link.Token,
		&link.InvestigationID,
		&link.PasswordHash,
		&link.ExpiresAt,
		&link.AccessCount,
		&link.LastAccessedAt,
		&link.CreatedAt,
		&link.RevokedAt,
	)
	if err != nil {
		return ShareLink{}, err
	}
	return link, nil
}

func (s *PostgresStore) TouchShareLink(ctx context.Context, linkID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE share_links
		SET access_count = access_count + 1, last_accessed_at = NOW()
		WHERE id=$1
	`, linkID)
	if err != nil {
		return fmt.Errorf("touch share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeShareLink(ctx context.Context, investigationID, linkID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE share_links SET revoked_at=NOW()
		WHERE id=$1 AND investigation_id=$2 AND revoked_at IS NULL
	`, linkID, investigationID)
	if err != nil {
		return false, fmt.Errorf("revoke share link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke share link rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListShareLinks(ctx context.Context, investigationID string) ([]ShareLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, investigation_id, password_hash, expires_at, access_count,
			last_accessed_at, created_at, revoked_at
		FROM share_links
		WHERE investigation_id=$1
		ORDER BY created_at DESC
	`, investigationID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	defer rows.Close()

	items := make([]ShareLink, 0)
	for rows.Next() {
		var link ShareLink
		if err := rows.Scan(
			&link.ID,
			&link.Token,
			&link.InvestigationID,
			&link.PasswordHash,
			&link.ExpiresAt,
			&link.AccessCount,
			&link.LastAccessedAt,
			&link.CreatedAt,
			&link.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("scan share link: %w", err)
		}
		items = append(items, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share links: %w", err)
	}
	return items, nil
}
