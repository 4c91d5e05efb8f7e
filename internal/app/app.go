package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ldomjan/sharedcal/internal/storage"
)

// ErrNotOwner is returned when a user mutates an event they do not own.
var ErrNotOwner = errors.New("event belongs to another user")

type App struct {
	Storage storage.Storage
}

func New(storage storage.Storage) *App {
	return &App{Storage: storage}
}

func (a *App) CreateEvent(ctx context.Context, ownerID string, e storage.Event) (storage.Event, error) {
	e.OwnerID = ownerID
	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return storage.Event{}, err
	}
	return a.Storage.GetEvent(ctx, e.ID)
}

func (a *App) UpdateEvent(ctx context.Context, actorID string, id string, e storage.Event) (storage.Event, error) {
	if err := a.checkOwner(ctx, actorID, id); err != nil {
		return storage.Event{}, err
	}
	return a.Storage.UpdateEvent(ctx, id, e)
}

func (a *App) RemoveEvent(ctx context.Context, actorID string, id string) (storage.Event, error) {
	if err := a.checkOwner(ctx, actorID, id); err != nil {
		return storage.Event{}, err
	}
	return a.Storage.RemoveEvent(ctx, id)
}

func (a *App) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	return a.Storage.GetEvent(ctx, id)
}

func (a *App) ListEvents(ctx context.Context) ([]storage.Event, error) {
	return a.Storage.ListEvents(ctx)
}

func (a *App) ListUsers(ctx context.Context) ([]storage.User, error) {
	return a.Storage.ListUsers(ctx)
}

func (a *App) UpdateUser(ctx context.Context, actorID string, id string, u storage.User) (storage.User, error) {
	if actorID != id {
		return storage.User{}, fmt.Errorf("user %q: %w", id, ErrNotOwner)
	}
	return a.Storage.UpdateUser(ctx, id, u)
}

func (a *App) RemoveUser(ctx context.Context, actorID string, id string) error {
	if actorID != id {
		return fmt.Errorf("user %q: %w", id, ErrNotOwner)
	}
	return a.Storage.RemoveUser(ctx, id)
}

func (a *App) checkOwner(ctx context.Context, actorID string, id string) error {
	e, err := a.Storage.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if e.OwnerID != actorID {
		return fmt.Errorf("event %q: %w", id, ErrNotOwner)
	}
	return nil
}
