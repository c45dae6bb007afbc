package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/Dosada05/badminton-platform/models"
)

type postgresAccountRepository struct {
	exec          SQLExecutor
	initialRating int
}

func NewPostgresAccountRepository(exec SQLExecutor, initialRating int) AccountRepository {
	return &postgresAccountRepository{exec: exec, initialRating: initialRating}
}

func (r *postgresAccountRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Account, error) {
	accounts := make(map[string]*models.Account, len(ids))
	if len(ids) == 0 {
		return accounts, nil
	}

	query := `SELECT id, display_name, gender, created_at FROM accounts WHERE id = ANY($1)`
	rows, err := r.exec.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.DisplayName, &account.Gender, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts[account.ID] = &account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during account rows iteration: %w", err)
	}
	return accounts, nil
}

func (r *postgresAccountRepository) ReadRating(ctx context.Context, accountID string, discipline models.Discipline) (*models.AccountRating, error) {
	query := `
		SELECT a.id, r.rating, r.games_played, r.games_won, r.win_rate, r.version, r.updated_at
		FROM accounts a
		LEFT JOIN account_ratings r ON r.account_id = a.id AND r.discipline = $2
		WHERE a.id = $1`

	var (
		id                  string
		rating, played, won sql.NullInt64
		winRate             sql.NullFloat64
		version             sql.NullInt64
		updatedAt           sql.NullTime
	)
	err := r.exec.QueryRowContext(ctx, query, accountID, discipline).Scan(
		&id, &rating, &played, &won, &winRate, &version, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read rating of account %s: %w", accountID, err)
	}

	if !rating.Valid {
		return &models.AccountRating{
			AccountID:  id,
			Discipline: discipline,
			Rating:     r.initialRating,
		}, nil
	}
	return &models.AccountRating{
		AccountID:   id,
		Discipline:  discipline,
		Rating:      int(rating.Int64),
		GamesPlayed: int(played.Int64),
		GamesWon:    int(won.Int64),
		WinRate:     winRate.Float64,
		Version:     version.Int64,
		UpdatedAt:   updatedAt.Time,
	}, nil
}

func (r *postgresAccountRepository) ListRatings(ctx context.Context, accountID string) ([]*models.AccountRating, error) {
	query, args, err := psql.Select(ratingColumnList...).
		From("account_ratings").
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("discipline ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rating query: %w", err)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings of account %s: %w", accountID, err)
	}
	defer rows.Close()

	ratings := make([]*models.AccountRating, 0, len(models.Disciplines))
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rating rows iteration: %w", err)
	}
	return ratings, nil
}

// ApplyRatingChange inserts the first row of a discipline or updates the
// existing row, in both cases only if nobody wrote it since it was read.
func (r *postgresAccountRepository) ApplyRatingChange(ctx context.Context, change models.RatingChange) (*models.AccountRating, error) {
	won := 0
	if change.Won {
		won = 1
	}

	var row *sql.Row
	if change.ExpectedVersion == 0 {
		query := `
			INSERT INTO account_ratings
				(account_id, discipline, rating, games_played, games_won, win_rate, version, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5, 1, $6)
			ON CONFLICT (account_id, discipline) DO NOTHING
			RETURNING ` + ratingColumns
		row = r.exec.QueryRowContext(ctx, query,
			change.AccountID, change.Discipline, change.ExpectedRating+change.Delta, won,
			models.WinRate(won, 1), change.At)
	} else {
		query := `
			UPDATE account_ratings
			SET rating = rating + $5,
			    games_played = games_played + 1,
			    games_won = games_won + $6,
			    win_rate = (games_won + $6)::float8 / (games_played + 1) * 100,
			    version = version + 1,
			    updated_at = $7
			WHERE account_id = $1 AND discipline = $2 AND version = $3 AND rating = $4
			RETURNING ` + ratingColumns
		row = r.exec.QueryRowContext(ctx, query,
			change.AccountID, change.Discipline, change.ExpectedVersion, change.ExpectedRating,
			change.Delta, won, change.At)
	}

	rating, err := scanRating(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingVersionConflict
		}
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return nil, ErrAccountNotFound
		}
		if isTxConflict(err) {
			return nil, fmt.Errorf("%w: account %s: %v", ErrRatingVersionConflict, change.AccountID, err)
		}
		return nil, fmt.Errorf("failed to apply rating change to account %s: %w", change.AccountID, err)
	}
	return rating, nil
}

const ratingColumns = `account_id, discipline, rating, games_played, games_won, win_rate, version, updated_at`

var ratingColumnList = []string{
	"account_id", "discipline", "rating", "games_played", "games_won", "win_rate", "version", "updated_at",
}

func scanRating(row rowScanner) (*models.AccountRating, error) {
	var rating models.AccountRating
	err := row.Scan(
		&rating.AccountID,
		&rating.Discipline,
		&rating.Rating,
		&rating.GamesPlayed,
		&rating.GamesWon,
		&rating.WinRate,
		&rating.Version,
		&rating.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rating, nil
}
