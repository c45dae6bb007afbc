package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/repositories"
)

const defaultHistoryLimit = 100

// RatingService is the read side of account ratings.
type RatingService interface {
	// ListRatings returns one entry per discipline; disciplines without a
	// confirmed match read as the initial rating.
	ListRatings(ctx context.Context, accountID string) ([]*models.AccountRating, error)
	ListHistory(ctx context.Context, accountID string, discipline *models.Discipline, limit int) ([]*models.RatingHistoryEntry, error)
}

type ratingService struct {
	store repositories.Store
}

func NewRatingService(store repositories.Store) RatingService {
	return &ratingService{store: store}
}

func (s *ratingService) ListRatings(ctx context.Context, accountID string) ([]*models.AccountRating, error) {
	stored, err := s.store.Accounts().ListRatings(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings of %s: %w", accountID, err)
	}
	byDiscipline := make(map[models.Discipline]*models.AccountRating, len(stored))
	for _, r := range stored {
		byDiscipline[r.Discipline] = r
	}

	out := make([]*models.AccountRating, 0, len(models.Disciplines))
	for _, d := range models.Disciplines {
		if r, ok := byDiscipline[d]; ok {
			out = append(out, r)
			continue
		}
		r, err := s.store.Accounts().ReadRating(ctx, accountID, d)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return nil, ErrAccountNotFound
			}
			return nil, fmt.Errorf("failed to read %s rating of %s: %w", d, accountID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *ratingService) ListHistory(ctx context.Context, accountID string, discipline *models.Discipline, limit int) ([]*models.RatingHistoryEntry, error) {
	if discipline != nil && !discipline.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"discipline": "must be one of singles, doubles, mixed-doubles"}}
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultHistoryLimit
	}
	entries, err := s.store.RatingHistory().ListByAccount(ctx, accountID, discipline, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history of %s: %w", accountID, err)
	}
	return entries, nil
}
