package memorystorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ldomjan/sharedcal/internal/storage"
)

type Storage struct {
	mu     sync.RWMutex
	events map[string]storage.Event
	users  map[string]storage.User
}

func New() *Storage {
	return &Storage{
		events: make(map[string]storage.Event),
		users:  make(map[string]storage.User),
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	if err := storage.ValidateEvent(*e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.OwnerName = s.usernameLocked(e.OwnerID)
	s.events[e.ID] = *e
	return nil
}

func (s *Storage) UpdateEvent(_ context.Context, id string, e storage.Event) (storage.Event, error) {
	if err := storage.ValidateEvent(e); err != nil {
		return storage.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	// Last write in arrival order wins; owner is immutable.
	e.ID = id
	e.OwnerID = old.OwnerID
	e.OwnerName = old.OwnerName
	s.events[id] = e
	return e, nil
}

func (s *Storage) RemoveEvent(_ context.Context, id string) (storage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	delete(s.events, id)
	return e, nil
}

func (s *Storage) GetEvent(_ context.Context, id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return e, nil
}

func (s *Storage) ListEvents(_ context.Context) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0, len(s.events))
	for _, e := range s.events {
		e.OwnerName = s.usernameLocked(e.OwnerID)
		events = append(events, e)
	}
	return events, nil
}

func (s *Storage) RemoveEndedBefore(_ context.Context, t time.Time) ([]storage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make([]storage.Event, 0)
	for id, e := range s.events {
		if e.EndTime.Before(t) {
			removed = append(removed, e)
			delete(s.events, id)
		}
	}
	return removed, nil
}

func (s *Storage) AddUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("duplicate username %q: %w", u.Username, storage.ErrDuplicateUsername)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, fmt.Errorf("failed to get user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, nil
}

func (s *Storage) GetUserByName(_ context.Context, username string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return storage.User{}, fmt.Errorf("failed to get user %q: %w", username, storage.ErrNotFoundUser)
}

func (s *Storage) ListUsers(_ context.Context) ([]storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]storage.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *Storage) UpdateUser(_ context.Context, id string, u storage.User) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[id]
	if !ok {
		return storage.User{}, fmt.Errorf("failed to update user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	u.ID = id
	if u.PasswordHash == "" {
		u.PasswordHash = old.PasswordHash
	}
	s.users[id] = u
	return u, nil
}

func (s *Storage) RemoveUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("failed to remove user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	delete(s.users, id)
	return nil
}

func (s *Storage) usernameLocked(ownerID string) string {
	if u, ok := s.users[ownerID]; ok {
		return u.Username
	}
	return ""
}
