package store

import (
	"context"
	"database/sql"
	"fmt"

	"dialectic/internal/slug"
)

// Slug index scopes and entity kinds.
const (
	ScopeGlobal = "global"

	KindInvestigation = "investigation"
	KindDefinition    = "definition"
)

// reserveSlug hands out the first free candidate of base, base-2,
// base-3, ... within a scope. Released rows still count as taken so a
// slug is never reused for a different entity. The advisory lock
// serializes concurrent reservations against the same scope.
func reserveSlug(ctx context.Context, tx *sql.Tx, scope, kind, entityID, base string) (string, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('slug:' || $1))`, scope); err != nil {
		return "", fmt.Errorf("lock slug scope: %w", err)
	}

	for n := 1; ; n++ {
		candidate := slug.Candidate(base, n)
		var taken bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM slug_index WHERE scope=$1 AND slug=$2)
		`, scope, candidate).Scan(&taken)
		if err != nil {
			return "", fmt.Errorf("check slug candidate: %w", err)
		}
		if taken {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slug_index (scope, slug, entity_kind, entity_id)
			VALUES ($1, $2, $3, $4)
		`, scope, candidate, kind, entityID); err != nil {
			return "", fmt.Errorf("reserve slug: %w", err)
		}
		return candidate, nil
	}
}

// ResolveSlug looks a slug up within a scope. Released entries are
// returned with ReleasedAt set so callers can tell "deleted" apart from
// "never existed".
func (s *PostgresStore) ResolveSlug(ctx context.Context, scope, slugValue string) (SlugEntry, error) {
	var entry SlugEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT scope, slug, entity_kind, entity_id, reserved_at, released_at
		FROM slug_index
		WHERE scope=$1 AND slug=$2
	`, scope, slugValue).Scan(
		&entry.Scope,
		&entry.Slug,
		&entry.EntityKind,
		&entry.EntityID,
		&entry.ReservedAt,
		&entry.ReleasedAt,
	)
	if err != nil {
		return SlugEntry{}, err
	}
	return entry, nil
}

// LiveSlugCount reports how many unreleased reservations remain in a
// scope. Used to verify cascade deletes left nothing resolvable behind.
func (s *PostgresStore) LiveSlugCount(ctx context.Context, scope string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM slug_index WHERE scope=$1 AND released_at IS NULL
	`, scope).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count live slugs: %w", err)
	}
	return count, nil
}
