package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Dosada05/badminton-platform/models"
)

type postgresRatingHistoryRepository struct {
	exec SQLExecutor
}

func NewPostgresRatingHistoryRepository(exec SQLExecutor) RatingHistoryRepository {
	return &postgresRatingHistoryRepository{exec: exec}
}

func (r *postgresRatingHistoryRepository) Append(ctx context.Context, entries []*models.RatingHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	builder := psql.Insert("rating_history").
		Columns("account_id", "match_id", "discipline", "rating_before", "rating_after", "delta", "won", "created_at").
		Suffix("RETURNING id")
	for _, e := range entries {
		builder = builder.Values(e.AccountID, e.MatchID, e.Discipline, e.RatingBefore, e.RatingAfter, e.Delta, e.Won, e.CreatedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rating history insert: %w", err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return fmt.Errorf("rating history references unknown account or match: %w", err)
		}
		return fmt.Errorf("failed to insert rating history: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(entries) {
			break
		}
		if err := rows.Scan(&entries[i].ID); err != nil {
			return fmt.Errorf("failed to scan rating history id: %w", err)
		}
		i++
	}
	return rows.Err()
}

func (r *postgresRatingHistoryRepository) ListByAccount(ctx context.Context, accountID string, discipline *models.Discipline, limit int) ([]*models.RatingHistoryEntry, error) {
	builder := psql.Select("id", "account_id", "match_id", "discipline", "rating_before", "rating_after", "delta", "won", "created_at").
		From("rating_history").
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("created_at DESC", "id DESC")
	if discipline != nil {
		builder = builder.Where(sq.Eq{"discipline": *discipline})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rating history query: %w", err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating history of account %s: %w", accountID, err)
	}
	defer rows.Close()

	entries := make([]*models.RatingHistoryEntry, 0)
	for rows.Next() {
		var e models.RatingHistoryEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.MatchID, &e.Discipline, &e.RatingBefore, &e.RatingAfter, &e.Delta, &e.Won, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating history row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rating history rows iteration: %w", err)
	}
	return entries, nil
}
