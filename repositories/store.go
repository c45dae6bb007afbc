package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/badminton-platform/models"
)

var (
	ErrMatchNotFound         = errors.New("match record not found")
	ErrMatchIDConflict       = errors.New("match record id already exists")
	ErrMatchStateChanged     = errors.New("match record changed since it was read")
	ErrAccountNotFound       = errors.New("account not found")
	ErrRatingVersionConflict = errors.New("account rating changed since it was read")
)

type MatchListFilter struct {
	Status *models.MatchStatus
	Limit  int
	Offset int
}

type MatchRepository interface {
	Create(ctx context.Context, match *models.MatchRecord) error
	GetByID(ctx context.Context, id string) (*models.MatchRecord, error)
	// ListPendingFor returns pending matches whose awaiting set holds accountID.
	ListPendingFor(ctx context.Context, accountID string) ([]*models.MatchRecord, error)
	ListByAccount(ctx context.Context, accountID string, filter MatchListFilter) ([]*models.MatchRecord, error)
	// ListStalePending returns pending matches not created or reminded since before.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.MatchRecord, error)
	// RecordConfirmation removes accountID from the awaiting set of a pending
	// match while at least one other confirmer is still awaited. Fails with
	// ErrMatchStateChanged when that no longer holds.
	RecordConfirmation(ctx context.Context, id, accountID string, at time.Time) (*models.MatchRecord, error)
	// MarkConfirmed transitions a pending match whose only awaited account is
	// accountID to confirmed and stores the deltas.
	MarkConfirmed(ctx context.Context, id, accountID string, deltas map[string]int, at time.Time) (*models.MatchRecord, error)
	// MarkRejected transitions a pending match to rejected if accountID is awaited.
	MarkRejected(ctx context.Context, id, accountID string, reason *string, at time.Time) (*models.MatchRecord, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

type AccountRepository interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Account, error)
	// ReadRating returns the stored rating, or the initial rating at version 0
	// when the account has not played the discipline yet.
	ReadRating(ctx context.Context, accountID string, discipline models.Discipline) (*models.AccountRating, error)
	ListRatings(ctx context.Context, accountID string) ([]*models.AccountRating, error)
	// ApplyRatingChange is conditional on the expected version and rating;
	// it fails with ErrRatingVersionConflict if either moved.
	ApplyRatingChange(ctx context.Context, change models.RatingChange) (*models.AccountRating, error)
}

type RatingHistoryRepository interface {
	Append(ctx context.Context, entries []*models.RatingHistoryEntry) error
	ListByAccount(ctx context.Context, accountID string, discipline *models.Discipline, limit int) ([]*models.RatingHistoryEntry, error)
}

// Store groups the repositories sharing one transaction boundary.
type Store interface {
	Matches() MatchRepository
	Accounts() AccountRepository
	RatingHistory() RatingHistoryRepository
	// WithinTx runs fn against a store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type postgresStore struct {
	db            *sql.DB
	tx            *sql.Tx
	initialRating int
}

func NewPostgresStore(db *sql.DB, initialRating int) Store {
	return &postgresStore{db: db, initialRating: initialRating}
}

func (s *postgresStore) executor() SQLExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *postgresStore) Matches() MatchRepository {
	return NewPostgresMatchRepository(s.executor())
}

func (s *postgresStore) Accounts() AccountRepository {
	return NewPostgresAccountRepository(s.executor(), s.initialRating)
}

func (s *postgresStore) RatingHistory() RatingHistoryRepository {
	return NewPostgresRatingHistoryRepository(s.executor())
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			if isTxConflict(commitErr) {
				err = fmt.Errorf("%w: commit: %v", ErrRatingVersionConflict, commitErr)
				return
			}
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(&postgresStore{db: s.db, tx: tx, initialRating: s.initialRating})
}
