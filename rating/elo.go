// Package rating computes zero-sum rating exchanges between two sides.
package rating

import (
	"errors"
	"fmt"
	"math"

	"github.com/Dosada05/badminton-platform/models"
)

const (
	DefaultKFactor = 32
	DefaultInitial = 1000
)

var (
	ErrEmptySide        = errors.New("rating: side has no members")
	ErrUnevenSides      = errors.New("rating: sides must field the same number of players")
	ErrDuplicateAccount = errors.New("rating: account appears more than once")
)

// Member is one account with its current discipline rating.
type Member struct {
	AccountID string
	Rating    int
}

// Model holds the K-factor per discipline. Disciplines missing from
// KFactors fall back to DefaultKFactor.
type Model struct {
	KFactors map[models.Discipline]int
}

// NewModel returns a model applying k to every discipline.
func NewModel(k int) Model {
	if k <= 0 {
		k = DefaultKFactor
	}
	factors := make(map[models.Discipline]int, len(models.Disciplines))
	for _, d := range models.Disciplines {
		factors[d] = k
	}
	return Model{KFactors: factors}
}

func (m Model) KFactor(d models.Discipline) int {
	if k, ok := m.KFactors[d]; ok && k > 0 {
		return k
	}
	return DefaultKFactor
}

// ComputeDeltas returns the signed rating change of every member of both
// sides. Partners move together and the deltas sum to zero. The result
// depends only on the arguments.
func (m Model) ComputeDeltas(d models.Discipline, sideA, sideB []Member, sideAWon bool) (map[string]int, error) {
	if len(sideA) == 0 || len(sideB) == 0 {
		return nil, ErrEmptySide
	}
	if len(sideA) != len(sideB) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrUnevenSides, len(sideA), len(sideB))
	}

	expectedA := ExpectedScore(EffectiveRating(sideA), EffectiveRating(sideB))
	actualA := 0.0
	if sideAWon {
		actualA = 1
	}

	k := float64(m.KFactor(d))
	// Side B's term is exactly the negation of side A's; math.Round is
	// symmetric around zero, so negating the rounded value is the same as
	// rounding B's term and keeps the exchange exact.
	deltaA := int(math.Round(k * (actualA - expectedA)))
	deltaB := -deltaA

	deltas := make(map[string]int, len(sideA)+len(sideB))
	for _, member := range sideA {
		if _, dup := deltas[member.AccountID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, member.AccountID)
		}
		deltas[member.AccountID] = deltaA
	}
	for _, member := range sideB {
		if _, dup := deltas[member.AccountID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, member.AccountID)
		}
		deltas[member.AccountID] = deltaB
	}
	return deltas, nil
}

// EffectiveRating is the arithmetic mean of the side's ratings.
func EffectiveRating(side []Member) float64 {
	if len(side) == 0 {
		return 0
	}
	sum := 0
	for _, member := range side {
		sum += member.Rating
	}
	return float64(sum) / float64(len(side))
}

// ExpectedScore is the logistic expectation of a side rated ra against rb.
func ExpectedScore(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}
