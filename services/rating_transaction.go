package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/rating"
	"github.com/Dosada05/badminton-platform/repositories"
)

// applyConfirmation confirms the match and applies the rating exchange in one
// transaction. The deltas are recomputed from fresh reads on every call, so a
// conflict error from here is safe to retry.
func (s *confirmationService) applyConfirmation(ctx context.Context, match *models.MatchRecord, actingAccount string, at time.Time) (*models.MatchRecord, error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.applyConfirmation")
	defer span.End()

	var confirmed *models.MatchRecord
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		participants := match.Participants()
		current := make(map[string]*models.AccountRating, len(participants))
		for _, id := range participants {
			r, err := tx.Accounts().ReadRating(ctx, id, match.Discipline)
			if err != nil {
				return fmt.Errorf("read rating of %s: %w", id, err)
			}
			current[id] = r
		}

		deltas, err := s.model.ComputeDeltas(
			match.Discipline,
			members(match.SideA, current),
			members(match.SideB, current),
			match.DeclaredWinner == models.SideA,
		)
		if err != nil {
			return fmt.Errorf("compute rating deltas: %w", err)
		}

		confirmed, err = tx.Matches().MarkConfirmed(ctx, match.ID, actingAccount, deltas, at)
		if err != nil {
			return err
		}

		// Rows are locked in account id order so two matches between the
		// same players cannot deadlock on each other.
		history := make([]*models.RatingHistoryEntry, 0, len(participants))
		for _, id := range slices.Sorted(slices.Values(participants)) {
			before := current[id]
			after, err := tx.Accounts().ApplyRatingChange(ctx, models.RatingChange{
				AccountID:       id,
				Discipline:      match.Discipline,
				ExpectedRating:  before.Rating,
				ExpectedVersion: before.Version,
				Delta:           deltas[id],
				Won:             match.Won(id),
				At:              at,
			})
			if err != nil {
				return fmt.Errorf("apply rating change to %s: %w", id, err)
			}
			history = append(history, &models.RatingHistoryEntry{
				AccountID:    id,
				MatchID:      match.ID,
				Discipline:   match.Discipline,
				RatingBefore: before.Rating,
				RatingAfter:  after.Rating,
				Delta:        deltas[id],
				Won:          match.Won(id),
				CreatedAt:    at,
			})
		}
		return tx.RatingHistory().Append(ctx, history)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rating.participants", len(confirmed.RatingDelta)))
	return confirmed, nil
}

func members(side models.Side, ratings map[string]*models.AccountRating) []rating.Member {
	out := make([]rating.Member, 0, len(side))
	for _, id := range side {
		out = append(out, rating.Member{AccountID: id, Rating: ratings[id].Rating})
	}
	return out
}
