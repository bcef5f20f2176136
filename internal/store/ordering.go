package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Reorder direction for claims and counterarguments.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrAtBoundary is returned when an entity is asked to move above the
// first or below the last position of its sibling sequence.
var ErrAtBoundary = errors.New("already at sequence boundary")

func ValidDirection(direction string) bool {
	return direction == DirectionUp || direction == DirectionDown
}

// lockSiblings serializes every mutation of one positional sibling set
// (the claims of an investigation, or the counterarguments of a claim)
// for the duration of the transaction.
func lockSiblings(ctx context.Context, tx *sql.Tx, parentID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('order:' || $1))`, parentID); err != nil {
		return fmt.Errorf("lock sibling set: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListClaims(ctx context.Context, investigationID string) ([]Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.investigation_id, c.claim_text, c.position, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM evidence e WHERE e.claim_id = c.id) AS evidence_count,
			(SELECT COUNT(*) FROM counterarguments ca WHERE ca.claim_id = c.id) AS counterargument_count
		FROM claims c
		WHERE c.investigation_id=$1
		ORDER BY c.position ASC
	`, investigationID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	items := make([]Claim, 0)
	for rows.Next() {
		var item Claim
		if err := rows.Scan(
			&item.ID,
			&item.InvestigationID,
			&item.ClaimText,
			&item.Position,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.EvidenceCount,
			&item.CounterargumentCount,
		); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, claimID string) (Claim, error) {
	var item Claim
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.investigation_id, c.claim_text, c.position, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM evidence e WHERE e.claim_id = c.id) AS evidence_count,
			(SELECT COUNT(*) FROM counterarguments ca WHERE ca.claim_id = c.id) AS counterargument_count
		FROM claims c
		WHERE c.id=$1
	`, claimID).Scan(
		&item.ID,
		&item.InvestigationID,
		&item.ClaimText,
		&item.Position,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.EvidenceCount,
		&item.CounterargumentCount,
	)
	if err != nil {
		return Claim{}, err
	}
	return item, nil
}

// InsertClaim appends at the end of the investigation's sequence.
func (s *PostgresStore) InsertClaim(ctx context.Context, item Claim) (Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Claim{}, fmt.Errorf("begin insert claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockSiblings(ctx, tx, item.InvestigationID); err != nil {
		return Claim{}, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO claims (id, investigation_id, claim_text, position)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM claims WHERE investigation_id=$2))
		RETURNING position, created_at, updated_at
	`, item.ID, item.InvestigationID, item.ClaimText).Scan(&item.Position, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Claim{}, fmt.Errorf("insert claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Claim{}, fmt.Errorf("commit insert claim: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateClaimText(ctx context.Context, claimID, claimText string) (Claim, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE claims SET claim_text=$2, updated_at=NOW() WHERE id=$1
	`, claimID, claimText)
	if err != nil {
		return Claim{}, fmt.Errorf("update claim text: %w", err)
	}
	return s.GetClaim(ctx, claimID)
}

// MoveClaim swaps the claim with its adjacent sibling. Positions are
// re-read inside the transaction; a stale caller-side read can never
// produce a bad swap. Boundary moves return ErrAtBoundary.
func (s *PostgresStore) MoveClaim(ctx context.Context, claimID, direction string) (int, error) {
	return s.moveRow(ctx, claimID, direction, moveTarget{
		table:      "claims",
		parentCol:  "investigation_id",
		lockPrefix: "",
	})
}

// DeleteClaim removes the claim (evidence and counterarguments cascade)
// and closes the position gap it leaves behind.
func (s *PostgresStore) DeleteClaim(ctx context.Context, claimID string) error {
	return s.deleteAndCompact(ctx, claimID, moveTarget{
		table:     "claims",
		parentCol: "investigation_id",
	})
}

func (s *PostgresStore) ListCounterarguments(ctx context.Context, claimID string) ([]Counterargument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, counter_text, rebuttal_text, position, created_at, updated_at
		FROM counterarguments
		WHERE claim_id=$1
		ORDER BY position ASC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list counterarguments: %w", err)
	}
	defer rows.Close()

	items := make([]Counterargument, 0)
	for rows.Next() {
		var item Counterargument
		if err := rows.Scan(
			&item.ID,
			&item.ClaimID,
			&item.CounterText,
			&item.RebuttalText,
			&item.Position,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan counterargument: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterarguments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCounterargument(ctx context.Context, claimID, counterargumentID string) (Counterargument, error) {
	var item Counterargument
	err := s.db.QueryRowContext(ctx, `
		SELECT id, claim_id, counter_text, rebuttal_text, position, created_at, updated_at
		FROM counterarguments
		WHERE id=$1 AND claim_id=$2
	`, counterargumentID, claimID).Scan(
		&item.ID,
		&item.ClaimID,
		&item.CounterText,
		&item.RebuttalText,
		&item.Position,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Counterargument{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertCounterargument(ctx context.Context, item Counterargument) (Counterargument, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Counterargument{}, fmt.Errorf("begin insert counterargument: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockSiblings(ctx, tx, item.ClaimID); err != nil {
		return Counterargument{}, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO counterarguments (id, claim_id, counter_text, rebuttal_text, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM counterarguments WHERE claim_id=$2))
		RETURNING position, created_at, updated_at
	`, item.ID, item.ClaimID, item.CounterText, item.RebuttalText).Scan(&item.Position, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Counterargument{}, fmt.Errorf("insert counterargument: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Counterargument{}, fmt.Errorf("commit insert counterargument: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateCounterargument(ctx context.Context, claimID, counterargumentID, counterText, rebuttalText string) (Counterargument, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE counterarguments
		SET counter_text=$3, rebuttal_text=$4, updated_at=NOW()
		WHERE id=$1 AND claim_id=$2
	`, counterargumentID, claimID, counterText, rebuttalText)
	if err != nil {
		return Counterargument{}, fmt.Errorf("update counterargument: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Counterargument{}, fmt.Errorf("update counterargument rows: %w", err)
	}
	if affected == 0 {
		return Counterargument{}, sql.ErrNoRows
	}
	return s.GetCounterargument(ctx, claimID, counterargumentID)
}

func (s *PostgresStore) MoveCounterargument(ctx context.Context, counterargumentID, direction string) (int, error) {
	return s.moveRow(ctx, counterargumentID, direction, moveTarget{
		table:     "counterarguments",
		parentCol: "claim_id",
	})
}

func (s *PostgresStore) DeleteCounterargument(ctx context.Context, counterargumentID string) error {
	return s.deleteAndCompact(ctx, counterargumentID, moveTarget{
		table:     "counterarguments",
		parentCol: "claim_id",
	})
}

// SiblingPositions returns (id, position) pairs for a sibling set, in
// order. Returned alongside InvalidOperation responses so callers can
// resync after a rejected move.
func (s *PostgresStore) SiblingPositions(ctx context.Context, table, parentID string) ([][2]string, error) {
	if table != "claims" && table != "counterarguments" {
		return nil, fmt.Errorf("unknown sibling table %q", table)
	}
	parentCol := "investigation_id"
	if table == "counterarguments" {
		parentCol = "claim_id"
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, position FROM %s WHERE %s=$1 ORDER BY position ASC
	`, table, parentCol), parentID)
	if err != nil {
		return nil, fmt.Errorf("list sibling positions: %w", err)
	}
	defer rows.Close()

	items := make([][2]string, 0)
	for rows.Next() {
		var id string
		var position int
		if err := rows.Scan(&id, &position); err != nil {
			return nil, fmt.Errorf("scan sibling position: %w", err)
		}
		items = append(items, [2]string{id, fmt.Sprintf("%d", position)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sibling positions: %w", err)
	}
	return items, nil
}

type moveTarget struct {
	table      string
	parentCol  string
	lockPrefix string
}

// moveRow is the single-step promote/demote shared by claims and
// counterarguments: a transposition with the adjacent sibling, nothing
// else in the sequence is touched. The deferred unique constraint on
// (parent, position) lets both updates land before the invariant is
// checked at commit.
func (s *PostgresStore) moveRow(ctx context.Context, id, direction string, target moveTarget) (int, error) {
	if !ValidDirection(direction) {
		return 0, fmt.Errorf("invalid direction %q", direction)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin move: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var parentID string
	var position int
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s, position FROM %s WHERE id=$1
	`, target.parentCol, target.table), id).Scan(&parentID, &position)
	if err != nil {
		return 0, err
	}

	if err := lockSiblings(ctx, tx, parentID); err != nil {
		return 0, err
	}

	// Re-read after acquiring the lock; a concurrent move may have
	// shifted this row between the first read and the lock.
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT position FROM %s WHERE id=$1
	`, target.table), id).Scan(&position)
	if err != nil {
		return 0, err
	}

	neighborPos := position + 1
	if direction == DirectionUp {
		neighborPos = position - 1
	}
	if neighborPos < 0 {
		return 0, ErrAtBoundary
	}

	var neighborID string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id FROM %s WHERE %s=$1 AND position=$2
	`, target.table, target.parentCol), parentID, neighborPos).Scan(&neighborID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAtBoundary
	}
	if err != nil {
		return 0, fmt.Errorf("find move neighbor: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET position=$2, updated_at=NOW() WHERE id=$1
	`, target.table), neighborID, position); err != nil {
		return 0, fmt.Errorf("shift neighbor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET position=$2, updated_at=NOW() WHERE id=$1
	`, target.table), id, neighborPos); err != nil {
		return 0, fmt.Errorf("move row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit move: %w", err)
	}
	return neighborPos, nil
}

// deleteAndCompact removes a positioned row and decrements every
// sibling that sat after it, restoring the dense 0..n-1 sequence.
func (s *PostgresStore) deleteAndCompact(ctx context.Context, id string, target moveTarget) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var parentID string
	var position int
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s, position FROM %s WHERE id=$1
	`, target.parentCol, target.table), id).Scan(&parentID, &position)
	if err != nil {
		return err
	}

	if err := lockSiblings(ctx, tx, parentID); err != nil {
		return err
	}

	// Position may have changed while waiting for the lock.
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT position FROM %s WHERE id=$1
	`, target.table), id).Scan(&position)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id=$1
	`, target.table), id); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET position = position - 1
		WHERE %s=$1 AND position > $2
	`, target.table, target.parentCol), parentID, position); err != nil {
		return fmt.Errorf("compact positions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}
