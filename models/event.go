package models

import "time"

type MatchEventType string

const (
	EventConfirmationRequested MatchEventType = "confirmation_requested"
	EventMatchConfirmed        MatchEventType = "match_confirmed"
	EventMatchRejected         MatchEventType = "match_rejected"
)

// MatchEvent is addressed to a single account.
type MatchEvent struct {
	Type       MatchEventType `json:"type"`
	MatchID    string         `json:"match_id"`
	AccountID  string         `json:"account_id"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventsFor builds one event of the given type per account.
func EventsFor(t MatchEventType, matchID string, accounts []string, at time.Time) []MatchEvent {
	events := make([]MatchEvent, 0, len(accounts))
	for _, id := range accounts {
		events = append(events, MatchEvent{Type: t, MatchID: matchID, AccountID: id, OccurredAt: at})
	}
	return events
}
