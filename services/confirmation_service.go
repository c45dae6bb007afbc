package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/notifications"
	"github.com/Dosada05/badminton-platform/rating"
	"github.com/Dosada05/badminton-platform/repositories"
)

const (
	DefaultMaxAttempts = 5
	defaultListLimit   = 50
	maxListLimit       = 200
	maxIDAttempts      = 3
)

var tracer = otel.Tracer("github.com/Dosada05/badminton-platform/services")

// MatchArchiver stores terminal records outside the database.
type MatchArchiver interface {
	ArchiveMatch(ctx context.Context, match *models.MatchRecord) (string, error)
}

type ConfirmationService interface {
	Submit(ctx context.Context, in SubmitMatchInput) (*models.MatchRecord, error)
	// Confirm records the acting account's confirmation. The last awaited
	// confirmation confirms the match and applies the rating exchange.
	Confirm(ctx context.Context, matchID, actingAccount string) (*models.MatchRecord, error)
	// Reject vetoes the match; one awaited account is enough.
	Reject(ctx context.Context, matchID, actingAccount string, reason *string) (*models.MatchRecord, error)
	GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, error)
	PendingFor(ctx context.Context, accountID string) ([]*models.MatchRecord, error)
	ListMatches(ctx context.Context, accountID string, filter repositories.MatchListFilter) ([]*models.MatchRecord, error)
}

type confirmationService struct {
	store       repositories.Store
	model       rating.Model
	notifier    notifications.Notifier
	archiver    MatchArchiver
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// NewConfirmationService wires the state machine. notifier and archiver may
// be nil.
func NewConfirmationService(
	store repositories.Store,
	model rating.Model,
	notifier notifications.Notifier,
	archiver MatchArchiver,
	logger *slog.Logger,
	maxAttempts int,
) ConfirmationService {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &confirmationService{
		store:       store,
		model:       model,
		notifier:    notifier,
		archiver:    archiver,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *confirmationService) Submit(ctx context.Context, in SubmitMatchInput) (_ *models.MatchRecord, err error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.Submit", trace.WithAttributes(
		attribute.String("match.discipline", string(in.Discipline)),
		attribute.String("account.id", in.SubmittedBy),
	))
	defer func() { endSpan(span, err) }()

	valid, err := validateSubmission(in)
	if err != nil {
		return nil, err
	}

	match := &models.MatchRecord{
		Discipline:     in.Discipline,
		SideA:          valid.sideA,
		SideB:          valid.sideB,
		SetScores:      valid.setScores,
		DeclaredWinner: in.DeclaredWinner,
		Status:         models.MatchStatusPending,
		SubmittedBy:    in.SubmittedBy,
		ConfirmedBy:    models.AccountSet{},
	}

	submitterSide, ok := match.SideOf(in.SubmittedBy)
	if !ok {
		return nil, fmt.Errorf("%w: submitter %q does not play in the match", ErrUnauthorized, in.SubmittedBy)
	}
	match.AwaitingConfirmationFrom = models.AccountSet(append([]string(nil), match.Side(submitterSide.Opposite())...))

	participants := match.Participants()
	accounts, err := s.store.Accounts().GetByIDs(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("failed to load match participants: %w", err)
	}
	var missing []string
	for _, id := range participants {
		if _, ok := accounts[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrAccountNotFound, missing)
	}
	if match.Discipline == models.DisciplineMixedDoubles {
		if err := validateMixedSides(match, accounts); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		match.ID = uuid.NewString()
		match.CreatedAt = s.now()
		err = s.store.Matches().Create(ctx, match)
		if errors.Is(err, repositories.ErrMatchIDConflict) && attempt < maxIDAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create match record: %w", err)
		}
		break
	}
	span.SetAttributes(attribute.String("match.id", match.ID))

	s.logger.InfoContext(ctx, "match submitted",
		slog.String("match_id", match.ID),
		slog.String("discipline", string(match.Discipline)),
		slog.String("submitted_by", match.SubmittedBy),
		slog.Any("awaiting", []string(match.AwaitingConfirmationFrom)),
	)
	s.notify(ctx, models.EventsFor(models.EventConfirmationRequested, match.ID, match.AwaitingConfirmationFrom, match.CreatedAt))
	return match, nil
}

func (s *confirmationService) Confirm(ctx context.Context, matchID, actingAccount string) (_ *models.MatchRecord, err error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.Confirm", trace.WithAttributes(
		attribute.String("match.id", matchID),
		attribute.String("account.id", actingAccount),
	))
	defer func() { endSpan(span, err) }()

	// Once the checks pass the transition runs on work, which outlives a
	// disconnected caller so a committed match is never left half-applied.
	work := ctx
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		match, err := s.loadMatch(work, matchID)
		if err != nil {
			return nil, err
		}
		if !match.RequiredConfirmers().Contains(actingAccount) {
			return nil, fmt.Errorf("%w: account %s is not a confirmer of match %s", ErrUnauthorized, actingAccount, matchID)
		}

		switch {
		case match.Status == models.MatchStatusConfirmed && match.ConfirmedBy.Contains(actingAccount):
			return match, nil
		case match.Status.Terminal():
			return nil, &AlreadyResolvedError{Match: match}
		case match.ConfirmedBy.Contains(actingAccount):
			return match, nil
		case !match.AwaitingConfirmationFrom.Contains(actingAccount):
			return nil, fmt.Errorf("%w: account %s is not awaited on match %s", ErrUnauthorized, actingAccount, matchID)
		}
		work = context.WithoutCancel(ctx)

		at := s.now()
		if match.AwaitingConfirmationFrom.Len() > 1 {
			updated, err := s.store.Matches().RecordConfirmation(work, matchID, actingAccount, at)
			if errors.Is(err, repositories.ErrMatchStateChanged) {
				s.logger.DebugContext(ctx, "match changed while confirming, retrying",
					slog.String("match_id", matchID), slog.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return nil, mapRepositoryError(err, "failed to record confirmation")
			}
			s.logger.InfoContext(ctx, "match confirmation recorded",
				slog.String("match_id", matchID),
				slog.String("account_id", actingAccount),
				slog.Any("awaiting", []string(updated.AwaitingConfirmationFrom)),
			)
			return updated, nil
		}

		confirmed, err := s.applyConfirmation(work, match, actingAccount, at)
		if errors.Is(err, repositories.ErrMatchStateChanged) || errors.Is(err, repositories.ErrRatingVersionConflict) {
			s.logger.DebugContext(ctx, "rating application conflicted, retrying",
				slog.String("match_id", matchID), slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}
		if err != nil {
			return nil, mapRepositoryError(err, "failed to apply rating change")
		}

		s.logger.InfoContext(ctx, "match confirmed",
			slog.String("match_id", confirmed.ID),
			slog.String("resolved_by", actingAccount),
			slog.Any("rating_delta", confirmed.RatingDelta),
		)
		s.afterResolution(work, confirmed, models.EventMatchConfirmed)
		return confirmed, nil
	}

	s.logger.WarnContext(ctx, "confirmation retry budget exhausted",
		slog.String("match_id", matchID), slog.Int("attempts", s.maxAttempts))
	return nil, fmt.Errorf("%w: match %s after %d attempts", ErrConflict, matchID, s.maxAttempts)
}

func (s *confirmationService) Reject(ctx context.Context, matchID, actingAccount string, reason *string) (_ *models.MatchRecord, err error) {
	ctx, span := tracer.Start(ctx, "ConfirmationService.Reject", trace.WithAttributes(
		attribute.String("match.id", matchID),
		attribute.String("account.id", actingAccount),
	))
	defer func() { endSpan(span, err) }()

	reason, err = normalizeReason(reason)
	if err != nil {
		return nil, err
	}

	work := ctx
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		match, err := s.loadMatch(work, matchID)
		if err != nil {
			return nil, err
		}
		if !match.RequiredConfirmers().Contains(actingAccount) {
			return nil, fmt.Errorf("%w: account %s is not a confirmer of match %s", ErrUnauthorized, actingAccount, matchID)
		}

		switch {
		case match.Status == models.MatchStatusRejected && match.ResolvedBy != nil && *match.ResolvedBy == actingAccount:
			return match, nil
		case match.Status.Terminal():
			return nil, &AlreadyResolvedError{Match: match}
		case match.ConfirmedBy.Contains(actingAccount):
			return nil, fmt.Errorf("%w: account %s already confirmed match %s", ErrUnauthorized, actingAccount, matchID)
		}
		work = context.WithoutCancel(ctx)

		rejected, err := s.store.Matches().MarkRejected(work, matchID, actingAccount, reason, s.now())
		if errors.Is(err, repositories.ErrMatchStateChanged) {
			s.logger.DebugContext(ctx, "match changed while rejecting, retrying",
				slog.String("match_id", matchID), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, mapRepositoryError(err, "failed to reject match")
		}

		s.logger.InfoContext(ctx, "match rejected",
			slog.String("match_id", rejected.ID),
			slog.String("resolved_by", actingAccount),
		)
		s.afterResolution(work, rejected, models.EventMatchRejected)
		return rejected, nil
	}

	return nil, fmt.Errorf("%w: match %s after %d attempts", ErrConflict, matchID, s.maxAttempts)
}

func (s *confirmationService) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	return s.loadMatch(ctx, matchID)
}

func (s *confirmationService) PendingFor(ctx context.Context, accountID string) ([]*models.MatchRecord, error) {
	matches, err := s.store.Matches().ListPendingFor(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending matches of %s: %w", accountID, err)
	}
	return matches, nil
}

func (s *confirmationService) ListMatches(ctx context.Context, accountID string, filter repositories.MatchListFilter) ([]*models.MatchRecord, error) {
	if filter.Status != nil {
		switch *filter.Status {
		case models.MatchStatusPending, models.MatchStatusConfirmed, models.MatchStatusRejected:
		default:
			return nil, &ValidationError{Fields: map[string]string{"status": "must be pending, confirmed or rejected"}}
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	matches, err := s.store.Matches().ListByAccount(ctx, accountID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of %s: %w", accountID, err)
	}
	return matches, nil
}

func (s *confirmationService) loadMatch(ctx context.Context, matchID string) (*models.MatchRecord, error) {
	if _, err := uuid.Parse(matchID); err != nil {
		return nil, ErrMatchNotFound
	}
	match, err := s.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, mapRepositoryError(err, "failed to load match")
	}
	return match, nil
}

// afterResolution informs every participant and archives the record. Both
// are best effort once the transition is committed.
func (s *confirmationService) afterResolution(ctx context.Context, match *models.MatchRecord, eventType models.MatchEventType) {
	s.notify(ctx, models.EventsFor(eventType, match.ID, match.Participants(), *match.ResolvedAt))

	if s.archiver == nil {
		return
	}
	url, err := s.archiver.ArchiveMatch(ctx, match)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to archive match", slog.String("match_id", match.ID), slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "match archived", slog.String("match_id", match.ID), slog.String("url", url))
}

func (s *confirmationService) notify(ctx context.Context, events []models.MatchEvent) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, events); err != nil {
		s.logger.WarnContext(ctx, "failed to emit match events",
			slog.String("type", string(events[0].Type)),
			slog.String("match_id", events[0].MatchID),
			slog.Any("error", err),
		)
	}
}

func mapRepositoryError(err error, msg string) error {
	switch {
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrAccountNotFound):
		return fmt.Errorf("%s: %w", msg, ErrAccountNotFound)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// endSpan marks the span failed for errors the caller cannot fix.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !isClientError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func isClientError(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyResolved)
}
