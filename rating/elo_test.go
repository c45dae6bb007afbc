package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/badminton-platform/models"
)

func sumDeltas(deltas map[string]int) int {
	total := 0
	for _, d := range deltas {
		total += d
	}
	return total
}

func TestComputeDeltas(t *testing.T) {
	model := NewModel(32)

	tests := []struct {
		name       string
		discipline models.Discipline
		sideA      []Member
		sideB      []Member
		sideAWon   bool
		expected   map[string]int
	}{
		{
			name:       "evenSinglesWinnerTakesSixteen",
			discipline: models.DisciplineSingles,
			sideA:      []Member{{AccountID: "alice", Rating: 1000}},
			sideB:      []Member{{AccountID: "bob", Rating: 1000}},
			sideAWon:   true,
			expected:   map[string]int{"alice": 16, "bob": -16},
		},
		{
			name:       "doublesUnderdogsWin",
			discipline: models.DisciplineDoubles,
			sideA:      []Member{{AccountID: "a1", Rating: 1100}, {AccountID: "a2", Rating: 1000}},
			sideB:      []Member{{AccountID: "b1", Rating: 900}, {AccountID: "b2", Rating: 1000}},
			sideAWon:   false,
			expected:   map[string]int{"a1": -20, "a2": -20, "b1": 20, "b2": 20},
		},
		{
			name:       "favouriteWinsSmallGain",
			discipline: models.DisciplineSingles,
			sideA:      []Member{{AccountID: "strong", Rating: 1400}},
			sideB:      []Member{{AccountID: "weak", Rating: 1000}},
			sideAWon:   true,
			expected:   map[string]int{"strong": 3, "weak": -3},
		},
		{
			name:       "mixedUsesSameK",
			discipline: models.DisciplineMixedDoubles,
			sideA:      []Member{{AccountID: "m1", Rating: 1000}, {AccountID: "f1", Rating: 1000}},
			sideB:      []Member{{AccountID: "m2", Rating: 1000}, {AccountID: "f2", Rating: 1000}},
			sideAWon:   false,
			expected:   map[string]int{"m1": -16, "f1": -16, "m2": 16, "f2": 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas, err := model.ComputeDeltas(tt.discipline, tt.sideA, tt.sideB, tt.sideAWon)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, deltas)
			assert.Zero(t, sumDeltas(deltas))
		})
	}
}

func TestComputeDeltasAlwaysZeroSum(t *testing.T) {
	model := NewModel(32)
	for ra := 600; ra <= 2400; ra += 37 {
		for rb := 600; rb <= 2400; rb += 53 {
			for _, won := range []bool{true, false} {
				deltas, err := model.ComputeDeltas(models.DisciplineDoubles,
					[]Member{{AccountID: "a1", Rating: ra}, {AccountID: "a2", Rating: ra + 10}},
					[]Member{{AccountID: "b1", Rating: rb}, {AccountID: "b2", Rating: rb - 10}},
					won,
				)
				require.NoError(t, err)
				assert.Zero(t, sumDeltas(deltas), "ra=%d rb=%d won=%v", ra, rb, won)
				assert.Equal(t, deltas["a1"], deltas["a2"])
				assert.Equal(t, deltas["b1"], deltas["b2"])
			}
		}
	}
}

func TestComputeDeltasDeterministic(t *testing.T) {
	model := NewModel(24)
	a := []Member{{AccountID: "x", Rating: 1234}}
	b := []Member{{AccountID: "y", Rating: 1177}}

	first, err := model.ComputeDeltas(models.DisciplineSingles, a, b, false)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := model.ComputeDeltas(models.DisciplineSingles, a, b, false)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeDeltasRejectsBadSides(t *testing.T) {
	model := NewModel(32)

	_, err := model.ComputeDeltas(models.DisciplineSingles, nil, []Member{{AccountID: "b", Rating: 1000}}, true)
	assert.ErrorIs(t, err, ErrEmptySide)

	_, err = model.ComputeDeltas(models.DisciplineDoubles,
		[]Member{{AccountID: "a", Rating: 1000}},
		[]Member{{AccountID: "b", Rating: 1000}, {AccountID: "c", Rating: 1000}},
		true)
	assert.ErrorIs(t, err, ErrUnevenSides)

	_, err = model.ComputeDeltas(models.DisciplineSingles,
		[]Member{{AccountID: "a", Rating: 1000}},
		[]Member{{AccountID: "a", Rating: 1000}},
		true)
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestKFactorFallback(t *testing.T) {
	model := Model{KFactors: map[models.Discipline]int{models.DisciplineSingles: 40}}
	assert.Equal(t, 40, model.KFactor(models.DisciplineSingles))
	assert.Equal(t, DefaultKFactor, model.KFactor(models.DisciplineDoubles))
	assert.Equal(t, DefaultKFactor, NewModel(0).KFactor(models.DisciplineMixedDoubles))
}

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1000, 1000), 1e-9)
	assert.InDelta(t, 1.0, ExpectedScore(1050, 950)+ExpectedScore(950, 1050), 1e-9)
	assert.InDelta(t, 0.6401, ExpectedScore(1050, 950), 1e-4)
}
