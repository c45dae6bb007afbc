package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/notifications"
	"github.com/Dosada05/badminton-platform/repositories"
)

const reminderBatchSize = 100

// ReminderService re-sends confirmation requests for matches that have been
// pending longer than a threshold.
type ReminderService struct {
	store    repositories.Store
	notifier notifications.Notifier
	logger   *slog.Logger
	after    time.Duration
	now      func() time.Time
}

func NewReminderService(store repositories.Store, notifier notifications.Notifier, logger *slog.Logger, after time.Duration) *ReminderService {
	return &ReminderService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		after:    after,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RemindStale notifies the awaited accounts of every stale pending match and
// returns how many matches were reminded.
func (r *ReminderService) RemindStale(ctx context.Context) (int, error) {
	now := r.now()
	stale, err := r.store.Matches().ListStalePending(ctx, now.Add(-r.after), reminderBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale pending matches: %w", err)
	}

	reminded := 0
	for _, match := range stale {
		if err := r.store.Matches().MarkReminded(ctx, match.ID, now); err != nil {
			if errors.Is(err, repositories.ErrMatchStateChanged) {
				continue
			}
			return reminded, fmt.Errorf("failed to mark match %s reminded: %w", match.ID, err)
		}
		events := models.EventsFor(models.EventConfirmationRequested, match.ID, match.AwaitingConfirmationFrom, now)
		if err := r.notifier.Notify(ctx, events); err != nil {
			r.logger.WarnContext(ctx, "failed to send confirmation reminder", slog.String("match_id", match.ID), slog.Any("error", err))
		}
		reminded++
	}
	return reminded, nil
}

// Schedule registers RemindStale as a recurring job on the scheduler.
func (r *ReminderService) Schedule(s gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := r.RemindStale(ctx)
			if err != nil {
				r.logger.Error("confirmation reminder run failed", slog.Any("error", err))
				return
			}
			if n > 0 {
				r.logger.Info("confirmation reminders sent", slog.Int("matches", n))
			}
		}),
		gocron.WithName("confirmation-reminders"),
		gocron.WithTags("matches"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
