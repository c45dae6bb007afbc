package services

import (
	"fmt"
	"strings"

	"github.com/Dosada05/badminton-platform/models"
)

const maxRejectReasonLength = 500

// SubmitMatchInput is a candidate result as reported by one participant.
type SubmitMatchInput struct {
	Discipline     models.Discipline
	SideA          []string
	SideB          []string
	SetScores      [][]int
	DeclaredWinner models.SideID
	SubmittedBy    string
}

type validatedSubmission struct {
	sideA     models.Side
	sideB     models.Side
	setScores []models.SetScore
}

// validateSubmission checks the shape of a submission. Participation of the
// submitter and existence of the accounts are checked by the caller.
func validateSubmission(in SubmitMatchInput) (*validatedSubmission, error) {
	fields := make(map[string]string)

	if !in.Discipline.Valid() {
		fields["discipline"] = "must be one of singles, doubles, mixed-doubles"
	}

	sideA := validateSide(fields, "side_a", in.SideA, in.Discipline)
	sideB := validateSide(fields, "side_b", in.SideB, in.Discipline)
	for _, id := range sideA {
		if sideB.Contains(id) {
			fields["sides"] = fmt.Sprintf("account %s appears on both sides", id)
			break
		}
	}

	scores := validateSetScores(fields, in.SetScores)

	switch {
	case !in.DeclaredWinner.Valid():
		fields["declared_winner"] = "must be sideA or sideB"
	case scores != nil:
		winner, decided := majorityWinner(scores)
		if !decided {
			fields["declared_winner"] = "sets are split evenly, no side won the majority"
		} else if winner != in.DeclaredWinner {
			fields["declared_winner"] = fmt.Sprintf("%s won the majority of sets", winner)
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return &validatedSubmission{sideA: sideA, sideB: sideB, setScores: scores}, nil
}

func validateSide(fields map[string]string, field string, ids []string, d models.Discipline) models.Side {
	side := make(models.Side, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			fields[field] = "account ids must not be empty"
			return nil
		}
		if side.Contains(id) {
			fields[field] = fmt.Sprintf("account %s is listed twice", id)
			return nil
		}
		side = append(side, id)
	}
	if d.Valid() && len(side) != d.SideSize() {
		fields[field] = fmt.Sprintf("%s needs %d account(s) per side, got %d", d, d.SideSize(), len(side))
		return nil
	}
	return side
}

// validateSetScores returns nil when any set is malformed.
func validateSetScores(fields map[string]string, raw [][]int) []models.SetScore {
	if len(raw) == 0 {
		fields["set_scores"] = "at least one set is required"
		return nil
	}
	scores := make([]models.SetScore, 0, len(raw))
	for i, set := range raw {
		switch {
		case len(set) != 2:
			fields["set_scores"] = fmt.Sprintf("set %d must hold exactly two scores", i+1)
			return nil
		case set[0] < 0 || set[1] < 0:
			fields["set_scores"] = fmt.Sprintf("set %d has a negative score", i+1)
			return nil
		case set[0] == set[1]:
			fields["set_scores"] = fmt.Sprintf("set %d is level, every set needs a winner", i+1)
			return nil
		}
		scores = append(scores, models.SetScore{set[0], set[1]})
	}
	return scores
}

func majorityWinner(scores []models.SetScore) (models.SideID, bool) {
	wonA, wonB := 0, 0
	for _, s := range scores {
		if w, ok := s.Winner(); ok {
			if w == models.SideA {
				wonA++
			} else {
				wonB++
			}
		}
	}
	switch {
	case wonA > wonB:
		return models.SideA, true
	case wonB > wonA:
		return models.SideB, true
	default:
		return "", false
	}
}

// validateMixedSides requires one male and one female account per side.
func validateMixedSides(match *models.MatchRecord, accounts map[string]*models.Account) error {
	fields := make(map[string]string)
	for field, side := range map[string]models.Side{"side_a": match.SideA, "side_b": match.SideB} {
		var male, female int
		for _, id := range side {
			switch accounts[id].Gender {
			case models.GenderMale:
				male++
			case models.GenderFemale:
				female++
			}
		}
		if male != 1 || female != 1 {
			fields[field] = "mixed-doubles sides need one male and one female account"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > maxRejectReasonLength {
		return nil, &ValidationError{Fields: map[string]string{
			"reason": fmt.Sprintf("must be at most %d characters", maxRejectReasonLength),
		}}
	}
	return &trimmed, nil
}
