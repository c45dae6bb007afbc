package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/badminton-platform/models"
)

func TestListRatingsFillsUnplayedDisciplines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.account("a1", models.GenderMale)
	f.account("b1", models.GenderMale)
	match := f.submit(t, singles("a1", models.SideA))
	_, err := f.svc.Confirm(ctx, match.ID, "b1")
	require.NoError(t, err)

	ratings := NewRatingService(f.store)
	got, err := ratings.ListRatings(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, len(models.Disciplines))

	byDiscipline := make(map[models.Discipline]*models.AccountRating)
	for _, r := range got {
		byDiscipline[r.Discipline] = r
	}
	assert.Equal(t, 1016, byDiscipline[models.DisciplineSingles].Rating)
	assert.Equal(t, 1, byDiscipline[models.DisciplineSingles].GamesPlayed)
	assert.Equal(t, 1000, byDiscipline[models.DisciplineDoubles].Rating)
	assert.Zero(t, byDiscipline[models.DisciplineMixedDoubles].GamesPlayed)

	_, err = ratings.ListRatings(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestListHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.account("a1", models.GenderMale)
	f.account("b1", models.GenderMale)
	for i := 0; i < 3; i++ {
		match := f.submit(t, singles("a1", models.SideA))
		_, err := f.svc.Confirm(ctx, match.ID, "b1")
		require.NoError(t, err)
	}

	ratings := NewRatingService(f.store)
	history, err := ratings.ListHistory(ctx, "b1", nil, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, history[0].RatingBefore+history[0].Delta, history[0].RatingAfter)
	assert.Less(t, history[0].RatingAfter, history[2].RatingAfter, "newest first, b1 keeps losing")

	limited, err := ratings.ListHistory(ctx, "b1", nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	doubles := models.DisciplineDoubles
	none, err := ratings.ListHistory(ctx, "b1", &doubles, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	bogus := models.Discipline("squash")
	_, err = ratings.ListHistory(ctx, "b1", &bogus, 10)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
