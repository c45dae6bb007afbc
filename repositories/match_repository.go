package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/Dosada05/badminton-platform/models"
)

const matchColumns = `id, discipline, side_a, side_b, set_scores, declared_winner, status, submitted_by,
	awaiting_confirmation_from, confirmed_by, resolved_by, resolved_action, resolved_at,
	reject_reason, rating_delta, created_at, updated_at, last_reminded_at`

var matchColumnList = []string{
	"id", "discipline", "side_a", "side_b", "set_scores", "declared_winner", "status", "submitted_by",
	"awaiting_confirmation_from", "confirmed_by", "resolved_by", "resolved_action", "resolved_at",
	"reject_reason", "rating_delta", "created_at", "updated_at", "last_reminded_at",
}

type postgresMatchRepository struct {
	exec SQLExecutor
}

func NewPostgresMatchRepository(exec SQLExecutor) MatchRepository {
	return &postgresMatchRepository{exec: exec}
}

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.MatchRecord) error {
	setScores, err := json.Marshal(match.SetScores)
	if err != nil {
		return fmt.Errorf("failed to encode set scores: %w", err)
	}

	query := `
		INSERT INTO match_records
			(id, discipline, side_a, side_b, set_scores, declared_winner, status, submitted_by,
			 awaiting_confirmation_from, confirmed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	_, err = r.exec.ExecContext(ctx, query,
		match.ID,
		match.Discipline,
		pq.Array([]string(match.SideA)),
		pq.Array([]string(match.SideB)),
		string(setScores),
		match.DeclaredWinner,
		match.Status,
		match.SubmittedBy,
		pq.Array([]string(match.AwaitingConfirmationFrom)),
		pq.Array([]string(match.ConfirmedBy)),
		match.CreatedAt,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	match.UpdatedAt = match.CreatedAt
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	query := `SELECT ` + matchColumns + ` FROM match_records WHERE id = $1`

	match, err := scanMatch(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match record %s: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListPendingFor(ctx context.Context, accountID string) ([]*models.MatchRecord, error) {
	builder := psql.Select(matchColumnList...).
		From("match_records").
		Where(sq.Eq{"status": models.MatchStatusPending}).
		Where(sq.Expr("? = ANY(awaiting_confirmation_from)", accountID)).
		OrderBy("created_at ASC", "id ASC")

	return r.list(ctx, builder)
}

func (r *postgresMatchRepository) ListByAccount(ctx context.Context, accountID string, filter MatchListFilter) ([]*models.MatchRecord, error) {
	builder := psql.Select(matchColumnList...).
		From("match_records").
		Where(sq.Or{
			sq.Expr("? = ANY(side_a)", accountID),
			sq.Expr("? = ANY(side_b)", accountID),
		}).
		OrderBy("created_at DESC", "id DESC")

	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	return r.list(ctx, builder)
}

func (r *postgresMatchRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.MatchRecord, error) {
	builder := psql.Select(matchColumnList...).
		From("match_records").
		Where(sq.Eq{"status": models.MatchStatusPending}).
		Where(sq.Expr("COALESCE(last_reminded_at, created_at) < ?", before)).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	return r.list(ctx, builder)
}

func (r *postgresMatchRepository) RecordConfirmation(ctx context.Context, id, accountID string, at time.Time) (*models.MatchRecord, error) {
	query := `
		UPDATE match_records
		SET awaiting_confirmation_from = array_remove(awaiting_confirmation_from, $2::text),
		    confirmed_by = array_append(confirmed_by, $2::text),
		    updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND $2::text = ANY(awaiting_confirmation_from)
		  AND cardinality(awaiting_confirmation_from) > 1
		RETURNING ` + matchColumns

	return r.conditionalUpdate(ctx, id, query, id, accountID, at)
}

func (r *postgresMatchRepository) MarkConfirmed(ctx context.Context, id, accountID string, deltas map[string]int, at time.Time) (*models.MatchRecord, error) {
	encoded, err := json.Marshal(deltas)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rating delta: %w", err)
	}

	query := `
		UPDATE match_records
		SET status = 'confirmed',
		    awaiting_confirmation_from = '{}',
		    confirmed_by = array_append(confirmed_by, $2::text),
		    resolved_by = $2::text,
		    resolved_action = 'confirm',
		    resolved_at = $3,
		    rating_delta = $4,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND cardinality(awaiting_confirmation_from) = 1
		  AND $2::text = ANY(awaiting_confirmation_from)
		RETURNING ` + matchColumns

	return r.conditionalUpdate(ctx, id, query, id, accountID, at, string(encoded))
}

func (r *postgresMatchRepository) MarkRejected(ctx context.Context, id, accountID string, reason *string, at time.Time) (*models.MatchRecord, error) {
	query := `
		UPDATE match_records
		SET status = 'rejected',
		    awaiting_confirmation_from = '{}',
		    resolved_by = $2::text,
		    resolved_action = 'reject',
		    resolved_at = $3,
		    reject_reason = $4,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND $2::text = ANY(awaiting_confirmation_from)
		RETURNING ` + matchColumns

	return r.conditionalUpdate(ctx, id, query, id, accountID, at, reason)
}

func (r *postgresMatchRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE match_records SET last_reminded_at = $2 WHERE id = $1 AND status = 'pending'`
	result, err := r.exec.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("MarkReminded: failed to execute query for match %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStateChanged)
}

// conditionalUpdate runs an UPDATE ... RETURNING guarded by a WHERE clause.
// No row back means either the match is gone or the guard failed.
func (r *postgresMatchRepository) conditionalUpdate(ctx context.Context, id, query string, args ...interface{}) (*models.MatchRecord, error) {
	match, err := scanMatch(r.exec.QueryRowContext(ctx, query, args...))
	if err == nil {
		return match, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, r.handleMatchError(err)
	}

	var exists bool
	if err := r.exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM match_records WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check match %s existence: %w", id, err)
	}
	if !exists {
		return nil, ErrMatchNotFound
	}
	return nil, ErrMatchStateChanged
}

func (r *postgresMatchRepository) list(ctx context.Context, builder sq.SelectBuilder) ([]*models.MatchRecord, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build match query: %w", err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match records: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.MatchRecord, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match record row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match record rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := pqErrorCode(err)
	switch {
	case code == pqUniqueViolation && constraint == "match_records_pkey":
		return ErrMatchIDConflict
	case code == pqCheckViolation:
		return fmt.Errorf("match record violates %s: %w", constraint, err)
	}
	return err
}

func scanMatch(row rowScanner) (*models.MatchRecord, error) {
	var (
		match                             models.MatchRecord
		sideA, sideB, awaiting, confirmed []string
		setScores, ratingDelta            []byte
	)

	err := row.Scan(
		&match.ID,
		&match.Discipline,
		pq.Array(&sideA),
		pq.Array(&sideB),
		&setScores,
		&match.DeclaredWinner,
		&match.Status,
		&match.SubmittedBy,
		pq.Array(&awaiting),
		pq.Array(&confirmed),
		&match.ResolvedBy,
		&match.ResolvedAction,
		&match.ResolvedAt,
		&match.RejectReason,
		&ratingDelta,
		&match.CreatedAt,
		&match.UpdatedAt,
		&match.LastRemindedAt,
	)
	if err != nil {
		return nil, err
	}

	match.SideA = models.Side(sideA)
	match.SideB = models.Side(sideB)
	match.AwaitingConfirmationFrom = models.AccountSet(nonNil(awaiting))
	match.ConfirmedBy = models.AccountSet(nonNil(confirmed))

	if err := json.Unmarshal(setScores, &match.SetScores); err != nil {
		return nil, fmt.Errorf("failed to decode set scores: %w", err)
	}
	if len(ratingDelta) > 0 {
		if err := json.Unmarshal(ratingDelta, &match.RatingDelta); err != nil {
			return nil, fmt.Errorf("failed to decode rating delta: %w", err)
		}
	}
	return &match, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
