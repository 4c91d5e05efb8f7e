package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/storage"
	"github.com/stretchr/testify/require"
)

var testRoster = []storage.User{
	{ID: "user-a", Username: "ana"},
	{ID: "user-b", Username: "boris"},
	{ID: "user-c", Username: "carla"},
}

func newTestCache() *Cache {
	return NewCache(NewAssignment(testRoster, nil), time.UTC)
}

func displayEvent(id string, start time.Time, duration time.Duration) DisplayEvent {
	return DisplayEvent{
		ID:      id,
		Title:   "event " + id,
		Start:   start,
		End:     start.Add(duration),
		OwnerID: "user-a",
		Color:   Palette[0],
	}
}

func TestCacheUpsertEvict(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	t.Run("upsert then evict", func(t *testing.T) {
		c := newTestCache()
		c.Upsert(displayEvent("1", base, time.Hour))
		require.Equal(t, 1, c.Len())

		c.Evict("1")
		require.Equal(t, 0, c.Len())
	})

	t.Run("duplicate upserts are no-ops beyond the first", func(t *testing.T) {
		c := newTestCache()
		e := displayEvent("1", base, time.Hour)
		c.Upsert(e)
		c.Upsert(e)
		c.Upsert(e)
		require.Equal(t, 1, c.Len())
		got, ok := c.Get("1")
		require.True(t, ok)
		require.Equal(t, e, got)
	})

	t.Run("evicting an absent id is a no-op", func(t *testing.T) {
		c := newTestCache()
		c.Evict("missing")
		require.Equal(t, 0, c.Len())
	})

	t.Run("last operation per id wins regardless of duplicates", func(t *testing.T) {
		first := displayEvent("1", base, time.Hour)
		second := displayEvent("1", base, 2*time.Hour)
		second.Title = "rewritten"

		// Any delivery order with duplicates must equal applying only
		// the last operation per id.
		c := newTestCache()
		c.Upsert(first)
		c.Upsert(first)
		c.Evict("1")
		c.Upsert(first)
		c.Upsert(second)

		want := newTestCache()
		want.Upsert(second)

		require.Equal(t, want.Len(), c.Len())
		gotEvent, ok := c.Get("1")
		require.True(t, ok)
		wantEvent, _ := want.Get("1")
		require.Equal(t, wantEvent, gotEvent)
	})
}

func TestCacheLoad(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	newEvent := func(id string, end time.Time) storage.Event {
		return storage.Event{
			ID:        id,
			Title:     "event " + id,
			StartTime: end.Add(-time.Hour),
			EndTime:   end,
			OwnerID:   "user-a",
		}
	}

	t.Run("replaces the whole cache", func(t *testing.T) {
		c := newTestCache()
		c.Upsert(displayEvent("old", now, time.Hour))

		c.Load([]storage.Event{newEvent("1", now.Add(time.Hour))}, nil, now)
		require.Equal(t, 1, c.Len())
		_, ok := c.Get("old")
		require.False(t, ok)
	})

	t.Run("event just past the retention window is pruned", func(t *testing.T) {
		c := newTestCache()
		end := now.Add(-7 * 24 * time.Hour).Add(-time.Second)
		stale := c.Load([]storage.Event{newEvent("1", end)}, nil, now)
		require.Len(t, stale, 1)
		require.Equal(t, "1", stale[0].ID)
		require.Equal(t, 0, c.Len())
	})

	t.Run("event just inside the retention window is retained", func(t *testing.T) {
		c := newTestCache()
		end := now.Add(-7 * 24 * time.Hour).Add(time.Second)
		stale := c.Load([]storage.Event{newEvent("1", end)}, nil, now)
		require.Empty(t, stale)
		require.Equal(t, 1, c.Len())
	})

	t.Run("resolves owner colors", func(t *testing.T) {
		c := newTestCache()
		c.Load([]storage.Event{newEvent("1", now.Add(time.Hour))}, nil, now)
		got, ok := c.Get("1")
		require.True(t, ok)
		require.Equal(t, Palette[0], got.Color)
		require.Equal(t, got.Color, got.BorderColor)
	})

	t.Run("converts times to the display location", func(t *testing.T) {
		zagreb := time.FixedZone("CEST", 2*60*60)
		c := NewCache(NewAssignment(testRoster, nil), zagreb)
		c.Load([]storage.Event{newEvent("1", now.Add(time.Hour))}, nil, now)
		got, _ := c.Get("1")
		require.Equal(t, zagreb, got.Start.Location())
		require.True(t, got.Start.Equal(now))
	})

	t.Run("merges holidays", func(t *testing.T) {
		c := newTestCache()
		day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		h := holiday.Event{
			ID:        "holiday-2025-06-10",
			Title:     "Dan drzavnosti",
			StartTime: day,
			EndTime:   day.Add(24*time.Hour - time.Second),
			Color:     holiday.Color,
			Border:    holiday.BorderColor,
			IsHoliday: true,
		}
		c.Load(nil, []holiday.Event{h}, now)
		got, ok := c.Get("holiday-2025-06-10")
		require.True(t, ok)
		require.True(t, got.Holiday)
		require.Equal(t, holiday.Color, got.Color)
		require.Equal(t, holiday.BorderColor, got.BorderColor)
	})
}

func TestCacheView(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	t.Run("shorter events come first regardless of insertion order", func(t *testing.T) {
		long := displayEvent("long", day.Add(9*time.Hour), 60*time.Minute)
		short := displayEvent("short", day.Add(10*time.Hour), 30*time.Minute)

		for _, order := range [][]DisplayEvent{{long, short}, {short, long}} {
			c := newTestCache()
			for _, e := range order {
				c.Upsert(e)
			}
			view := c.View(day)
			require.Len(t, view, 2)
			require.Equal(t, "short", view[0].ID)
			require.Equal(t, "long", view[1].ID)
		}
	})

	t.Run("equal durations order by start time", func(t *testing.T) {
		c := newTestCache()
		c.Upsert(displayEvent("later", day.Add(14*time.Hour), time.Hour))
		c.Upsert(displayEvent("earlier", day.Add(9*time.Hour), time.Hour))
		view := c.View(day)
		require.Len(t, view, 2)
		require.Equal(t, "earlier", view[0].ID)
		require.Equal(t, "later", view[1].ID)
	})

	t.Run("stable across repeated invocations", func(t *testing.T) {
		c := newTestCache()
		for i := 0; i < 20; i++ {
			c.Upsert(displayEvent(fmt.Sprintf("event-%d", i), day.Add(9*time.Hour), time.Hour))
		}
		first := c.View(day)
		for i := 0; i < 10; i++ {
			require.Equal(t, first, c.View(day))
		}
	})

	t.Run("excludes holidays and other days", func(t *testing.T) {
		c := newTestCache()
		c.Upsert(displayEvent("today", day.Add(9*time.Hour), time.Hour))
		c.Upsert(displayEvent("tomorrow", day.Add(33*time.Hour), time.Hour))
		c.Upsert(DisplayEvent{
			ID:      "holiday-2025-06-02",
			Title:   "holiday",
			Start:   day,
			End:     day.Add(24*time.Hour - time.Second),
			Holiday: true,
		})

		view := c.View(day)
		require.Len(t, view, 1)
		require.Equal(t, "today", view[0].ID)

		holidays := c.Holidays(day)
		require.Len(t, holidays, 1)
		require.Equal(t, "holiday-2025-06-02", holidays[0].ID)
	})

	t.Run("includes multi-day events overlapping the day", func(t *testing.T) {
		c := newTestCache()
		c.Upsert(displayEvent("spanning", day.Add(-2*time.Hour), 6*time.Hour))
		view := c.View(day)
		require.Len(t, view, 1)
	})
}
