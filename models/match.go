package models

import (
	"slices"
	"time"
)

type Discipline string

const (
	DisciplineSingles      Discipline = "singles"
	DisciplineDoubles      Discipline = "doubles"
	DisciplineMixedDoubles Discipline = "mixed-doubles"
)

// Disciplines lists every discipline an account holds a rating for.
var Disciplines = []Discipline{DisciplineSingles, DisciplineDoubles, DisciplineMixedDoubles}

func (d Discipline) Valid() bool {
	return slices.Contains(Disciplines, d)
}

// SideSize is the number of accounts each side fields in the discipline.
func (d Discipline) SideSize() int {
	if d == DisciplineSingles {
		return 1
	}
	return 2
}

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusRejected  MatchStatus = "rejected"
)

func (s MatchStatus) Terminal() bool {
	return s == MatchStatusConfirmed || s == MatchStatusRejected
}

type ResolutionAction string

const (
	ActionConfirm ResolutionAction = "confirm"
	ActionReject  ResolutionAction = "reject"
)

type SideID string

const (
	SideA SideID = "sideA"
	SideB SideID = "sideB"
)

func (s SideID) Valid() bool {
	return s == SideA || s == SideB
}

func (s SideID) Opposite() SideID {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Side is the ordered list of accounts competing as one unit.
type Side []string

func (s Side) Contains(accountID string) bool {
	return slices.Contains(s, accountID)
}

// SetScore holds the points of one set as [sideA, sideB].
type SetScore [2]int

// Winner returns the side that took the set; ok is false for a level set.
func (s SetScore) Winner() (SideID, bool) {
	switch {
	case s[0] > s[1]:
		return SideA, true
	case s[1] > s[0]:
		return SideB, true
	default:
		return "", false
	}
}

// AccountSet is an unordered set of account identifiers. Awaiting sets
// trigger the confirmed transition once they become empty.
type AccountSet []string

func (s AccountSet) Contains(accountID string) bool {
	return slices.Contains(s, accountID)
}

func (s AccountSet) Len() int { return len(s) }

// Without returns a copy of the set with accountID removed.
func (s AccountSet) Without(accountID string) AccountSet {
	out := make(AccountSet, 0, len(s))
	for _, id := range s {
		if id != accountID {
			out = append(out, id)
		}
	}
	return out
}

// With returns a copy of the set with accountID added.
func (s AccountSet) With(accountID string) AccountSet {
	if s.Contains(accountID) {
		return slices.Clone(s)
	}
	out := make(AccountSet, 0, len(s)+1)
	out = append(out, s...)
	return append(out, accountID)
}

type MatchRecord struct {
	ID                       string            `json:"id"`
	Discipline               Discipline        `json:"discipline"`
	SideA                    Side              `json:"side_a"`
	SideB                    Side              `json:"side_b"`
	SetScores                []SetScore        `json:"set_scores"`
	DeclaredWinner           SideID            `json:"declared_winner"`
	Status                   MatchStatus       `json:"status"`
	SubmittedBy              string            `json:"submitted_by"`
	AwaitingConfirmationFrom AccountSet        `json:"awaiting_confirmation_from"`
	ConfirmedBy              AccountSet        `json:"confirmed_by"`
	ResolvedBy               *string           `json:"resolved_by,omitempty"`
	ResolvedAction           *ResolutionAction `json:"resolved_action,omitempty"`
	ResolvedAt               *time.Time        `json:"resolved_at,omitempty"`
	RejectReason             *string           `json:"reject_reason,omitempty"`
	RatingDelta              map[string]int    `json:"rating_delta,omitempty"`
	CreatedAt                time.Time         `json:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at"`
	LastRemindedAt           *time.Time        `json:"last_reminded_at,omitempty"`
}

// Side returns the members of the given side.
func (m *MatchRecord) Side(id SideID) Side {
	if id == SideA {
		return m.SideA
	}
	return m.SideB
}

// SideOf reports which side accountID plays on.
func (m *MatchRecord) SideOf(accountID string) (SideID, bool) {
	switch {
	case m.SideA.Contains(accountID):
		return SideA, true
	case m.SideB.Contains(accountID):
		return SideB, true
	default:
		return "", false
	}
}

// Participants returns every account of the match, side A first.
func (m *MatchRecord) Participants() []string {
	out := make([]string, 0, len(m.SideA)+len(m.SideB))
	out = append(out, m.SideA...)
	return append(out, m.SideB...)
}

// RequiredConfirmers is the side opposite the submitter.
func (m *MatchRecord) RequiredConfirmers() Side {
	side, ok := m.SideOf(m.SubmittedBy)
	if !ok {
		return nil
	}
	return m.Side(side.Opposite())
}

// Won reports whether accountID played on the declared winning side.
func (m *MatchRecord) Won(accountID string) bool {
	return m.Side(m.DeclaredWinner).Contains(accountID)
}

func (m *MatchRecord) Clone() *MatchRecord {
	if m == nil {
		return nil
	}
	c := *m
	c.SideA = slices.Clone(m.SideA)
	c.SideB = slices.Clone(m.SideB)
	c.SetScores = slices.Clone(m.SetScores)
	c.AwaitingConfirmationFrom = slices.Clone(m.AwaitingConfirmationFrom)
	c.ConfirmedBy = slices.Clone(m.ConfirmedBy)
	if m.RatingDelta != nil {
		c.RatingDelta = make(map[string]int, len(m.RatingDelta))
		for k, v := range m.RatingDelta {
			c.RatingDelta[k] = v
		}
	}
	c.ResolvedBy = clonePtr(m.ResolvedBy)
	c.ResolvedAction = clonePtr(m.ResolvedAction)
	c.ResolvedAt = clonePtr(m.ResolvedAt)
	c.RejectReason = clonePtr(m.RejectReason)
	c.LastRemindedAt = clonePtr(m.LastRemindedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
