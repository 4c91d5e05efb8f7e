package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/hub"
	"github.com/ldomjan/sharedcal/internal/storage"
	log "github.com/sirupsen/logrus"
)

// ErrHolidayReadOnly is returned when a mutation targets a holiday
// entry; holidays are not user events.
var ErrHolidayReadOnly = errors.New("holiday entries are read-only")

// Client runs the synchronization protocol for one calendar view:
// optimistic local apply, authoritative store call, hub announcement,
// and merge of everyone else's announcements.
type Client struct {
	api      *API
	cache    *Cache
	socket   *Socket
	session  *Session
	onChange func()
}

func New(serverURL string, session *Session, loc *time.Location) (*Client, error) {
	socket, err := NewSocket(serverURL, session)
	if err != nil {
		return nil, err
	}
	c := &Client{
		api:     NewAPI(serverURL, session),
		cache:   NewCache(NewAssignment(nil, nil), loc),
		socket:  socket,
		session: session,
	}
	socket.OnMessage(c.handleEnvelope)
	socket.OnReconnect(func(ctx context.Context) {
		if err := c.Load(ctx); err != nil {
			log.Errorf("failed to re-synchronize after reconnect: %v", err)
		}
	})
	return c, nil
}

func (c *Client) API() *API { return c.api }

func (c *Client) Cache() *Cache { return c.cache }

// OnChange registers a hook invoked after every hub-delivered change
// is merged into the cache.
func (c *Client) OnChange(handler func()) { c.onChange = handler }

// Connected reports whether the hub connection is up.
func (c *Client) Connected() bool { return c.socket.Connected() }

// Load fetches the roster, the persisted events and the holiday set,
// and replaces the cache with the merged view. A holiday feed failure
// degrades to an empty holiday set; it never fails the load.
func (c *Client) Load(ctx context.Context) error {
	users, err := c.api.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load user roster: %w", err)
	}
	c.cache.SetColors(NewAssignment(users, nil))

	events, err := c.api.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	holidays, err := c.api.Holidays(ctx, time.Now().Year())
	if err != nil {
		log.Warnf("holiday feed unavailable, rendering without holidays: %v", err)
		holidays = []holiday.Event{}
	}

	stale := c.cache.Load(events, holidays, time.Now())
	for _, e := range stale {
		log.Debugf("skipped stale event %q (%s), ended %s", e.ID, e.Title, e.EndTime)
	}
	return nil
}

// Run establishes the hub connection and starts the read loop.
// Blocks until the context ends or reconnection is exhausted.
func (c *Client) Run(ctx context.Context) error {
	if err := c.socket.Connect(ctx); err != nil {
		return err
	}
	return c.socket.Listen(ctx)
}

// CreateEvent applies the draft optimistically, persists it, then
// replaces the optimistic entry with the authoritative record and
// announces it. On failure the optimistic entry stays until the next
// Load; the error is returned to the caller.
func (c *Client) CreateEvent(ctx context.Context, draft storage.Event) (storage.Event, error) {
	draft.OwnerID = c.session.User.ID
	draft.OwnerName = c.session.User.Username

	optimistic := draft
	optimistic.ID = "pending-" + uuid.NewString()
	c.cache.Upsert(c.cache.Display(optimistic))

	created, err := c.api.CreateEvent(ctx, draft)
	if err != nil {
		return storage.Event{}, err
	}

	c.cache.Evict(optimistic.ID)
	c.cache.Upsert(c.cache.Display(created))
	c.announce(hub.Envelope{Type: hub.TypeEventAdded, Event: &created})
	return created, nil
}

// UpdateEvent applies the patch optimistically, persists it, then
// overwrites the entry with the authoritative record and announces.
func (c *Client) UpdateEvent(ctx context.Context, id string, patch storage.Event) (storage.Event, error) {
	if entry, ok := c.cache.Get(id); ok && entry.Holiday {
		return storage.Event{}, ErrHolidayReadOnly
	}

	patch.ID = id
	patch.OwnerID = c.session.User.ID
	patch.OwnerName = c.session.User.Username
	c.cache.Upsert(c.cache.Display(patch))

	updated, err := c.api.UpdateEvent(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Stale id: someone else already removed it.
			c.cache.Evict(id)
		}
		return storage.Event{}, err
	}

	c.cache.Upsert(c.cache.Display(updated))
	c.announce(hub.Envelope{Type: hub.TypeEventUpdated, Event: &updated})
	return updated, nil
}

// DeleteEvent evicts optimistically, deletes from the store, and
// announces the removal.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if entry, ok := c.cache.Get(id); ok && entry.Holiday {
		return ErrHolidayReadOnly
	}

	c.cache.Evict(id)

	if _, err := c.api.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Already gone; the optimistic eviction stands.
			return nil
		}
		return err
	}

	c.announce(hub.Envelope{Type: hub.TypeEventDeleted, EventID: id})
	return nil
}

// handleEnvelope merges a hub delivery into the cache. Upserts and
// evictions are idempotent; duplicates and reordering are harmless.
func (c *Client) handleEnvelope(env hub.Envelope) {
	switch env.Type {
	case hub.TypeCalendarUpdated:
		if env.Event == nil {
			log.Debugf("dropping %s without event", env.Type)
			return
		}
		c.cache.Upsert(c.cache.Display(*env.Event))
	case hub.TypeEventRemoved:
		if env.EventID == "" {
			log.Debugf("dropping %s without id", env.Type)
			return
		}
		c.cache.Evict(env.EventID)
	default:
		log.Debugf("dropping hub message of unknown type %q", env.Type)
		return
	}
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Client) announce(env hub.Envelope) {
	if err := c.socket.Send(env); err != nil {
		// The mutation is already persisted; peers catch up on their
		// next full load.
		log.Warnf("failed to announce %s: %v", env.Type, err)
	}
}
