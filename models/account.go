package models

import "time"

type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
)

// Account is the slice of a profile the rating engine needs. Profiles are
// owned by the account service; this is a read model.
type Account struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Gender      Gender    `json:"gender,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountRating is the per-discipline rating view. Version increases on
// every applied change and guards optimistic updates.
type AccountRating struct {
	AccountID   string     `json:"account_id"`
	Discipline  Discipline `json:"discipline"`
	Rating      int        `json:"rating"`
	GamesPlayed int        `json:"games_played"`
	GamesWon    int        `json:"games_won"`
	WinRate     float64    `json:"win_rate"`
	Version     int64      `json:"-"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RatingChange is a conditional write against an AccountRating read at
// ExpectedVersion / ExpectedRating.
type RatingChange struct {
	AccountID       string
	Discipline      Discipline
	ExpectedRating  int
	ExpectedVersion int64
	Delta           int
	Won             bool
	At              time.Time
}

// Applied returns the rating row as it looks after the change.
func (c RatingChange) Applied(prev AccountRating) AccountRating {
	next := prev
	next.AccountID = c.AccountID
	next.Discipline = c.Discipline
	next.Rating = prev.Rating + c.Delta
	next.GamesPlayed = prev.GamesPlayed + 1
	if c.Won {
		next.GamesWon = prev.GamesWon + 1
	}
	next.WinRate = WinRate(next.GamesWon, next.GamesPlayed)
	next.Version = prev.Version + 1
	next.UpdatedAt = c.At
	return next
}

// WinRate is recomputed from the counters rather than patched.
func WinRate(won, played int) float64 {
	if played == 0 {
		return 0
	}
	return float64(won) / float64(played) * 100
}

type RatingHistoryEntry struct {
	ID           int64      `json:"id"`
	AccountID    string     `json:"account_id"`
	MatchID      string     `json:"match_id"`
	Discipline   Discipline `json:"discipline"`
	RatingBefore int        `json:"rating_before"`
	RatingAfter  int        `json:"rating_after"`
	Delta        int        `json:"delta"`
	Won          bool       `json:"won"`
	CreatedAt    time.Time  `json:"created_at"`
}
