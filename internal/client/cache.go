package client

import (
	"sort"
	"sync"
	"time"

	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/janitor"
	"github.com/ldomjan/sharedcal/internal/storage"
	"github.com/ldomjan/sharedcal/internal/util"
)

// DisplayEvent is a cache entry ready for rendering: times in the
// display location, owner color resolved.
type DisplayEvent struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Color       string
	BorderColor string
	OwnerID     string
	OwnerName   string
	Holiday     bool
}

// Cache is the per-client merged view of persisted events, holiday
// entries, and live updates. It is the single source of truth for
// what this client renders. Entries carry no order; View imposes one.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]DisplayEvent
	colors    Assignment
	loc       *time.Location
	retention time.Duration
}

func NewCache(colors Assignment, loc *time.Location) *Cache {
	if loc == nil {
		loc = time.Local
	}
	return &Cache{
		entries:   make(map[string]DisplayEvent),
		colors:    colors,
		loc:       loc,
		retention: janitor.RetentionWindow,
	}
}

// SetColors swaps the color assignment; existing entries keep the
// colors they were resolved with until the next Load.
func (c *Cache) SetColors(colors Assignment) {
	c.mu.Lock()
	c.colors = colors
	c.mu.Unlock()
}

// Load replaces the whole cache with the given persisted events and
// holiday entries. Events past the retention window are not loaded;
// they are returned so the caller can report them. Deleting them from
// the store is the janitor's job, not the reader's.
func (c *Cache) Load(events []storage.Event, holidays []holiday.Event, now time.Time) []storage.Event {
	cutoff := now.Add(-c.retention)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]DisplayEvent, len(events)+len(holidays))

	stale := make([]storage.Event, 0)
	for _, e := range events {
		if e.EndTime.Before(cutoff) {
			stale = append(stale, e)
			continue
		}
		de := c.displayLocked(e)
		c.entries[de.ID] = de
	}
	for _, h := range holidays {
		de := displayHoliday(h, c.loc)
		c.entries[de.ID] = de
	}
	return stale
}

// Display converts a stored event into its display form under the
// cache's current color assignment and location.
func (c *Cache) Display(e storage.Event) DisplayEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayLocked(e)
}

// Upsert inserts or replaces by id. Applying the same entry twice is
// a no-op beyond the first; hub deliveries may repeat.
func (c *Cache) Upsert(e DisplayEvent) {
	c.mu.Lock()
	c.entries[e.ID] = e
	c.mu.Unlock()
}

// Evict removes by id. Evicting an absent id is a no-op.
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *Cache) Get(id string) (DisplayEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// View returns the non-holiday events active on the given calendar
// day, shortest first, then by start time. Short events surface first
// so they are not buried under day-long ones.
func (c *Cache) View(day time.Time) []DisplayEvent {
	return c.selectDay(day, false)
}

// Holidays returns the holiday entries falling on the given day.
func (c *Cache) Holidays(day time.Time) []DisplayEvent {
	return c.selectDay(day, true)
}

func (c *Cache) selectDay(day time.Time, holidays bool) []DisplayEvent {
	dayStart := util.TruncateToDay(day.In(c.loc))
	dayEnd := dayStart.Add(24 * time.Hour)

	c.mu.RLock()
	selected := make([]DisplayEvent, 0)
	for _, e := range c.entries {
		if e.Holiday != holidays {
			continue
		}
		if e.Start.Before(dayEnd) && e.End.After(dayStart) {
			selected = append(selected, e)
		}
	}
	c.mu.RUnlock()

	// Map order is random; fix it before the stable sort so repeated
	// calls return identical sequences.
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	sort.SliceStable(selected, func(i, j int) bool {
		di := selected[i].End.Sub(selected[i].Start)
		dj := selected[j].End.Sub(selected[j].Start)
		if di != dj {
			return di < dj
		}
		return selected[i].Start.Before(selected[j].Start)
	})
	return selected
}

func (c *Cache) displayLocked(e storage.Event) DisplayEvent {
	color := c.colors.Resolve(e.OwnerID)
	return DisplayEvent{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.StartTime.In(c.loc),
		End:         e.EndTime.In(c.loc),
		Color:       color,
		BorderColor: color,
		OwnerID:     e.OwnerID,
		OwnerName:   e.OwnerName,
	}
}

func displayHoliday(h holiday.Event, loc *time.Location) DisplayEvent {
	return DisplayEvent{
		ID:          h.ID,
		Title:       h.Title,
		Start:       h.StartTime.In(loc),
		End:         h.EndTime.In(loc),
		Color:       h.Color,
		BorderColor: h.Border,
		Holiday:     true,
	}
}
