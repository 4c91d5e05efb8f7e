package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateEventID   = errors.New("event with same ID exists")
	ErrNotFoundEvent      = errors.New("event not found")
	ErrIncorrectEventTime = errors.New("incorrect event time")
	ErrEmptyTitle         = errors.New("event title is empty")
	ErrNotFoundUser       = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("user with same name exists")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AddEvent(ctx context.Context, e *Event) error
	UpdateEvent(ctx context.Context, id string, e Event) (Event, error)
	RemoveEvent(ctx context.Context, id string) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	RemoveEndedBefore(ctx context.Context, t time.Time) ([]Event, error)

	AddUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByName(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, u User) (User, error)
	RemoveUser(ctx context.Context, id string) error
}

// ValidateEvent checks the rules both storage backends enforce
// before accepting a create or update.
func ValidateEvent(e Event) error {
	if e.Title == "" {
		return ErrEmptyTitle
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return ErrIncorrectEventTime
	}
	if !e.EndTime.After(e.StartTime) {
		return ErrIncorrectEventTime
	}
	return nil
}
