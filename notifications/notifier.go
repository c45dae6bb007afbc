package notifications

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/badminton-platform/models"
)

// Notifier receives the per-account events of a state change. Delivery and
// ordering towards clients are the implementation's concern.
type Notifier interface {
	Notify(ctx context.Context, events []models.MatchEvent) error
}

// HubNotifier delivers events to the websocket rooms of this instance.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(_ context.Context, events []models.MatchEvent) error {
	for _, event := range events {
		n.hub.BroadcastToRoom(RoomForAccount(event.AccountID), event)
	}
	return nil
}

// LogNotifier records events in the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, events []models.MatchEvent) error {
	for _, event := range events {
		n.logger.InfoContext(ctx, "match event",
			slog.String("type", string(event.Type)),
			slog.String("match_id", event.MatchID),
			slog.String("account_id", event.AccountID),
		)
	}
	return nil
}

type multiNotifier []Notifier

// Multi notifies every non-nil notifier in order and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multiNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multiNotifier) Notify(ctx context.Context, events []models.MatchEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
