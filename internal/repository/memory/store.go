// Package memory provides repository implementations held in process memory.
// It backs the service when no Postgres DSN is configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/repository"
)

type ideaRecord struct {
	idea    domain.Idea
	order   int64
	updates []domain.Update
	history []domain.IdeaChange
}

// Store holds users, ideas, updates and history behind a single lock, so
// every mutation observes and leaves a consistent state.
type Store struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	byEmail map[string]string
	ideas   map[string]*ideaRecord
	order   int64
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
		ideas:   make(map[string]*ideaRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Users returns a UserRepository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepository{s} }

// Ideas returns an IdeaRepository view of the store.
func (s *Store) Ideas() repository.IdeaRepository { return ideaRepository{s} }

// Updates returns an UpdateRepository view of the store.
func (s *Store) Updates() repository.UpdateRepository { return updateRepository{s} }

type userRepository struct{ s *Store }

func (r userRepository) Create(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, taken := s.byEmail[key]; taken {
		return repository.ErrDuplicateEmail
	}
	user.ID = uuid.NewString()
	user.CreatedAt = s.now()
	s.users[user.ID] = copyUser(*user)
	s.byEmail[key] = user.ID
	return nil
}

func (r userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := copyUser(user)
	return &out, nil
}

func (r userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := copyUser(r.s.users[id])
	return &out, nil
}

func (r userRepository) List(_ context.Context, role *domain.Role) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.User
	for _, user := range r.s.users {
		if role != nil && user.Role != *role {
			continue
		}
		result = append(result, copyUser(user))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type ideaRepository struct{ s *Store }

func (r ideaRepository) Create(_ context.Context, idea *domain.Idea) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.users[idea.CustomerID]
	if !ok {
		return pgx.ErrNoRows
	}
	if err := idea.CheckInvariants(); err != nil {
		return err
	}

	now := s.now()
	idea.ID = uuid.NewString()
	idea.CreatedAt = now
	idea.UpdatedAt = now
	idea.CustomerName = customer.Name

	s.order++
	s.ideas[idea.ID] = &ideaRecord{idea: copyIdea(*idea), order: s.order}
	return nil
}

func (r ideaRepository) GetByID(_ context.Context, id string) (*domain.Idea, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.ideas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := copyIdea(rec.idea)
	return &out, nil
}

func (r ideaRepository) List(_ context.Context, filter repository.IdeaFilter) ([]domain.Idea, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	records := r.s.matching(filter)
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.idea.CreatedAt.Equal(b.idea.CreatedAt) {
			return a.idea.CreatedAt.After(b.idea.CreatedAt)
		}
		return a.order > b.order
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return nil, nil
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(records) {
		records = records[:filter.Limit]
	}

	result := make([]domain.Idea, 0, len(records))
	for _, rec := range records {
		result = append(result, copyIdea(rec.idea))
	}
	return result, nil
}

func (r ideaRepository) CountByStatus(_ context.Context, filter repository.IdeaFilter) (domain.Stats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	records := r.s.matching(filter)
	ideas := make([]domain.Idea, 0, len(records))
	for _, rec := range records {
		ideas = append(ideas, rec.idea)
	}
	return domain.Tally(ideas), nil
}

func (r ideaRepository) Detail(_ context.Context, id string) (*domain.IdeaDetail, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.ideas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	detail := &domain.IdeaDetail{Idea: copyIdea(rec.idea)}
	for _, update := range rec.updates {
		detail.Updates = append(detail.Updates, domain.UpdateView{
			Update:     update,
			AuthorName: s.users[update.AuthorID].Name,
		})
	}
	for _, change := range rec.history {
		detail.History = append(detail.History, copyChange(change))
	}
	return detail, nil
}

func (r ideaRepository) Mutate(_ context.Context, id string, fn repository.IdeaMutation) (*domain.Idea, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ideas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	working := copyIdea(rec.idea)
	changes, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		out := copyIdea(rec.idea)
		return &out, nil
	}
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}

	now := s.now()
	working.UpdatedAt = now
	for _, change := range changes {
		change.ID = uuid.NewString()
		change.IdeaID = id
		change.CreatedAt = now
		rec.history = append(rec.history, copyChange(change))
	}
	rec.idea = working

	out := copyIdea(working)
	return &out, nil
}

type updateRepository struct{ s *Store }

func (r updateRepository) Append(_ context.Context, update *domain.Update, scope repository.IdeaFilter) (*domain.Idea, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ideas[update.IdeaID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !matches(scope, &rec.idea) {
		return nil, repository.ErrNotVisible
	}

	update.ID = uuid.NewString()
	update.Seq = int64(len(rec.updates)) + 1
	update.CreatedAt = s.now()
	rec.updates = append(rec.updates, *update)

	out := copyIdea(rec.idea)
	return &out, nil
}

// matching must be called with s.mu held.
func (s *Store) matching(filter repository.IdeaFilter) []*ideaRecord {
	var out []*ideaRecord
	for _, rec := range s.ideas {
		if matches(filter, &rec.idea) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(filter repository.IdeaFilter, idea *domain.Idea) bool {
	if filter.CustomerID != nil && idea.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.AssignedTo != nil && (idea.AssignedTo == nil || *idea.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.Status != nil && idea.Status != *filter.Status {
		return false
	}
	return true
}

func copyUser(u domain.User) domain.User {
	u.Phone = clonePtr(u.Phone)
	return u
}

func copyIdea(i domain.Idea) domain.Idea {
	i.AssignedTo = clonePtr(i.AssignedTo)
	return i
}

func copyChange(c domain.IdeaChange) domain.IdeaChange {
	c.OldValue = clonePtr(c.OldValue)
	c.NewValue = clonePtr(c.NewValue)
	return c
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
