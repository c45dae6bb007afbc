package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/badminton-platform/models"
)

type ratingKey struct {
	accountID  string
	discipline models.Discipline
}

type memoryState struct {
	accounts      map[string]models.Account
	ratings       map[ratingKey]models.AccountRating
	matches       map[string]*models.MatchRecord
	history       []models.RatingHistoryEntry
	nextHistoryID int64
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		accounts:      make(map[string]models.Account, len(st.accounts)),
		ratings:       make(map[ratingKey]models.AccountRating, len(st.ratings)),
		matches:       make(map[string]*models.MatchRecord, len(st.matches)),
		history:       slices.Clone(st.history),
		nextHistoryID: st.nextHistoryID,
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.ratings {
		c.ratings[k] = v
	}
	for k, v := range st.matches {
		c.matches[k] = v.Clone()
	}
	return c
}

type memoryDB struct {
	mu            sync.Mutex
	state         *memoryState
	initialRating int
}

// MemoryStore keeps everything in process. Transactions serialise on a
// single lock and work on a copy that replaces the state on commit, so the
// conditional-update contract matches the Postgres store.
type MemoryStore struct {
	db *memoryDB
	tx *memoryState
}

func NewMemoryStore(initialRating int) *MemoryStore {
	return &MemoryStore{db: &memoryDB{
		initialRating: initialRating,
		state: &memoryState{
			accounts: make(map[string]models.Account),
			ratings:  make(map[ratingKey]models.AccountRating),
			matches:  make(map[string]*models.MatchRecord),
		},
	}}
}

func (s *MemoryStore) view(fn func(st *memoryState) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.state)
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	working := s.db.state.clone()
	if err := fn(&MemoryStore{db: s.db, tx: working}); err != nil {
		return err
	}
	s.db.state = working
	return nil
}

func (s *MemoryStore) Matches() MatchRepository { return memoryMatches{s} }

func (s *MemoryStore) Accounts() AccountRepository { return memoryAccounts{s} }

func (s *MemoryStore) RatingHistory() RatingHistoryRepository { return memoryHistory{s} }

// PutAccount registers or replaces an account.
func (s *MemoryStore) PutAccount(account models.Account) {
	_ = s.view(func(st *memoryState) error {
		st.accounts[account.ID] = account
		return nil
	})
}

// SeedAccounts registers accounts given as "id" or "id:gender".
func (s *MemoryStore) SeedAccounts(entries []string, at time.Time) error {
	for _, entry := range entries {
		id, gender, _ := strings.Cut(strings.TrimSpace(entry), ":")
		if id == "" {
			continue
		}
		g := models.Gender(strings.ToLower(gender))
		switch g {
		case models.GenderUnspecified, models.GenderMale, models.GenderFemale:
		default:
			return fmt.Errorf("account %s: unknown gender %q", id, gender)
		}
		s.PutAccount(models.Account{ID: id, DisplayName: id, Gender: g, CreatedAt: at})
	}
	return nil
}

// PutRating overwrites a stored rating row.
func (s *MemoryStore) PutRating(rating models.AccountRating) {
	_ = s.view(func(st *memoryState) error {
		st.ratings[ratingKey{rating.AccountID, rating.Discipline}] = rating
		return nil
	})
}

type memoryMatches struct{ s *MemoryStore }

func (m memoryMatches) Create(_ context.Context, match *models.MatchRecord) error {
	return m.s.view(func(st *memoryState) error {
		if _, exists := st.matches[match.ID]; exists {
			return ErrMatchIDConflict
		}
		match.UpdatedAt = match.CreatedAt
		st.matches[match.ID] = match.Clone()
		return nil
	})
}

func (m memoryMatches) GetByID(_ context.Context, id string) (*models.MatchRecord, error) {
	var out *models.MatchRecord
	err := m.s.view(func(st *memoryState) error {
		match, ok := st.matches[id]
		if !ok {
			return ErrMatchNotFound
		}
		out = match.Clone()
		return nil
	})
	return out, err
}

func (m memoryMatches) filter(keep func(*models.MatchRecord) bool, newestFirst bool) []*models.MatchRecord {
	var out []*models.MatchRecord
	_ = m.s.view(func(st *memoryState) error {
		for _, match := range st.matches {
			if keep(match) {
				out = append(out, match.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if newestFirst {
				return out[i].ID > out[j].ID
			}
			return out[i].ID < out[j].ID
		}
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if out == nil {
		out = make([]*models.MatchRecord, 0)
	}
	return out
}

func (m memoryMatches) ListPendingFor(_ context.Context, accountID string) ([]*models.MatchRecord, error) {
	return m.filter(func(match *models.MatchRecord) bool {
		return match.Status == models.MatchStatusPending && match.AwaitingConfirmationFrom.Contains(accountID)
	}, false), nil
}

func (m memoryMatches) ListByAccount(_ context.Context, accountID string, filter MatchListFilter) ([]*models.MatchRecord, error) {
	out := m.filter(func(match *models.MatchRecord) bool {
		if filter.Status != nil && match.Status != *filter.Status {
			return false
		}
		return match.SideA.Contains(accountID) || match.SideB.Contains(accountID)
	}, true)
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (m memoryMatches) ListStalePending(_ context.Context, before time.Time, limit int) ([]*models.MatchRecord, error) {
	out := m.filter(func(match *models.MatchRecord) bool {
		if match.Status != models.MatchStatusPending {
			return false
		}
		last := match.CreatedAt
		if match.LastRemindedAt != nil {
			last = *match.LastRemindedAt
		}
		return last.Before(before)
	}, false)
	return paginate(out, 0, limit), nil
}

func (m memoryMatches) update(id string, guard func(*models.MatchRecord) bool, apply func(*models.MatchRecord)) (*models.MatchRecord, error) {
	var out *models.MatchRecord
	err := m.s.view(func(st *memoryState) error {
		match, ok := st.matches[id]
		if !ok {
			return ErrMatchNotFound
		}
		if !guard(match) {
			return ErrMatchStateChanged
		}
		next := match.Clone()
		apply(next)
		st.matches[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}

func (m memoryMatches) RecordConfirmation(_ context.Context, id, accountID string, at time.Time) (*models.MatchRecord, error) {
	return m.update(id,
		func(match *models.MatchRecord) bool {
			return match.Status == models.MatchStatusPending &&
				match.AwaitingConfirmationFrom.Contains(accountID) &&
				match.AwaitingConfirmationFrom.Len() > 1
		},
		func(match *models.MatchRecord) {
			match.AwaitingConfirmationFrom = match.AwaitingConfirmationFrom.Without(accountID)
			match.ConfirmedBy = match.ConfirmedBy.With(accountID)
			match.UpdatedAt = at
		})
}

func (m memoryMatches) MarkConfirmed(_ context.Context, id, accountID string, deltas map[string]int, at time.Time) (*models.MatchRecord, error) {
	return m.update(id,
		func(match *models.MatchRecord) bool {
			return match.Status == models.MatchStatusPending &&
				match.AwaitingConfirmationFrom.Len() == 1 &&
				match.AwaitingConfirmationFrom.Contains(accountID)
		},
		func(match *models.MatchRecord) {
			action := models.ActionConfirm
			match.Status = models.MatchStatusConfirmed
			match.AwaitingConfirmationFrom = models.AccountSet{}
			match.ConfirmedBy = match.ConfirmedBy.With(accountID)
			match.ResolvedBy = &accountID
			match.ResolvedAction = &action
			match.ResolvedAt = &at
			match.RatingDelta = make(map[string]int, len(deltas))
			for k, v := range deltas {
				match.RatingDelta[k] = v
			}
			match.UpdatedAt = at
		})
}

func (m memoryMatches) MarkRejected(_ context.Context, id, accountID string, reason *string, at time.Time) (*models.MatchRecord, error) {
	return m.update(id,
		func(match *models.MatchRecord) bool {
			return match.Status == models.MatchStatusPending && match.AwaitingConfirmationFrom.Contains(accountID)
		},
		func(match *models.MatchRecord) {
			action := models.ActionReject
			match.Status = models.MatchStatusRejected
			match.AwaitingConfirmationFrom = models.AccountSet{}
			match.ResolvedBy = &accountID
			match.ResolvedAction = &action
			match.ResolvedAt = &at
			if reason != nil {
				r := *reason
				match.RejectReason = &r
			}
			match.UpdatedAt = at
		})
}

func (m memoryMatches) MarkReminded(_ context.Context, id string, at time.Time) error {
	_, err := m.update(id,
		func(match *models.MatchRecord) bool { return match.Status == models.MatchStatusPending },
		func(match *models.MatchRecord) { match.LastRemindedAt = &at })
	if err == ErrMatchNotFound {
		return ErrMatchStateChanged
	}
	return err
}

type memoryAccounts struct{ s *MemoryStore }

func (a memoryAccounts) GetByIDs(_ context.Context, ids []string) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account, len(ids))
	err := a.s.view(func(st *memoryState) error {
		for _, id := range ids {
			if account, ok := st.accounts[id]; ok {
				acc := account
				out[id] = &acc
			}
		}
		return nil
	})
	return out, err
}

func (a memoryAccounts) ReadRating(_ context.Context, accountID string, discipline models.Discipline) (*models.AccountRating, error) {
	var out *models.AccountRating
	err := a.s.view(func(st *memoryState) error {
		if _, ok := st.accounts[accountID]; !ok {
			return ErrAccountNotFound
		}
		rating, ok := st.ratings[ratingKey{accountID, discipline}]
		if !ok {
			rating = models.AccountRating{AccountID: accountID, Discipline: discipline, Rating: a.s.db.initialRating}
		}
		out = &rating
		return nil
	})
	return out, err
}

func (a memoryAccounts) ListRatings(_ context.Context, accountID string) ([]*models.AccountRating, error) {
	out := make([]*models.AccountRating, 0, len(models.Disciplines))
	err := a.s.view(func(st *memoryState) error {
		for _, d := range models.Disciplines {
			if rating, ok := st.ratings[ratingKey{accountID, d}]; ok {
				r := rating
				out = append(out, &r)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Discipline < out[j].Discipline })
	return out, err
}

func (a memoryAccounts) ApplyRatingChange(_ context.Context, change models.RatingChange) (*models.AccountRating, error) {
	var out *models.AccountRating
	err := a.s.view(func(st *memoryState) error {
		if _, ok := st.accounts[change.AccountID]; !ok {
			return ErrAccountNotFound
		}
		key := ratingKey{change.AccountID, change.Discipline}
		current, exists := st.ratings[key]
		if !exists {
			current = models.AccountRating{AccountID: change.AccountID, Discipline: change.Discipline, Rating: change.ExpectedRating}
		}
		if current.Version != change.ExpectedVersion || current.Rating != change.ExpectedRating {
			return ErrRatingVersionConflict
		}
		next := change.Applied(current)
		st.ratings[key] = next
		out = &next
		return nil
	})
	return out, err
}

type memoryHistory struct{ s *MemoryStore }

func (h memoryHistory) Append(_ context.Context, entries []*models.RatingHistoryEntry) error {
	return h.s.view(func(st *memoryState) error {
		for _, e := range entries {
			st.nextHistoryID++
			e.ID = st.nextHistoryID
			st.history = append(st.history, *e)
		}
		return nil
	})
}

func (h memoryHistory) ListByAccount(_ context.Context, accountID string, discipline *models.Discipline, limit int) ([]*models.RatingHistoryEntry, error) {
	out := make([]*models.RatingHistoryEntry, 0)
	err := h.s.view(func(st *memoryState) error {
		for i := len(st.history) - 1; i >= 0; i-- {
			e := st.history[i]
			if e.AccountID != accountID {
				continue
			}
			if discipline != nil && e.Discipline != *discipline {
				continue
			}
			out = append(out, &e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
