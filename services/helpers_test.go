package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/rating"
	"github.com/Dosada05/badminton-platform/repositories"
)

var testNow = time.Date(2026, 6, 1, 18, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.MatchEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, events []models.MatchEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
	return n.err
}

func (n *recordingNotifier) ofType(t models.MatchEventType) []models.MatchEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.MatchEvent
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveMatch(ctx context.Context, match *models.MatchRecord) (string, error) {
	args := m.Called(ctx, match)
	return args.String(0), args.Error(1)
}

type fixture struct {
	store    *repositories.MemoryStore
	notifier *recordingNotifier
	svc      *confirmationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore(rating.DefaultInitial)
	notifier := &recordingNotifier{}
	svc := NewConfirmationService(store, rating.NewModel(rating.DefaultKFactor), notifier, nil, discardLogger(), DefaultMaxAttempts).(*confirmationService)
	svc.now = func() time.Time { return testNow }
	return &fixture{store: store, notifier: notifier, svc: svc}
}

func (f *fixture) account(id string, gender models.Gender, ratings ...int) {
	f.store.PutAccount(models.Account{ID: id, DisplayName: id, Gender: gender, CreatedAt: testNow})
	if len(ratings) > 0 {
		for _, d := range models.Disciplines {
			f.store.PutRating(models.AccountRating{AccountID: id, Discipline: d, Rating: ratings[0], Version: 1})
		}
	}
}

func (f *fixture) rating(t *testing.T, id string, d models.Discipline) *models.AccountRating {
	t.Helper()
	r, err := f.store.Accounts().ReadRating(context.Background(), id, d)
	require.NoError(t, err)
	return r
}

func (f *fixture) submit(t *testing.T, in SubmitMatchInput) *models.MatchRecord {
	t.Helper()
	match, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	return match
}

func singles(submitter string, winner models.SideID) SubmitMatchInput {
	scores := [][]int{{21, 15}, {21, 17}}
	if winner == models.SideB {
		scores = [][]int{{15, 21}, {17, 21}}
	}
	return SubmitMatchInput{
		Discipline:     models.DisciplineSingles,
		SideA:          []string{"a1"},
		SideB:          []string{"b1"},
		SetScores:      scores,
		DeclaredWinner: winner,
		SubmittedBy:    submitter,
	}
}

func doubles(submitter string, winner models.SideID) SubmitMatchInput {
	in := singles(submitter, winner)
	in.Discipline = models.DisciplineDoubles
	in.SideA = []string{"a1", "a2"}
	in.SideB = []string{"b1", "b2"}
	return in
}

func sumDeltas(deltas map[string]int) int {
	total := 0
	for _, d := range deltas {
		total += d
	}
	return total
}
