package client

import (
	"sort"

	"github.com/ldomjan/sharedcal/internal/storage"
)

// Palette is the set of colors handed out to event owners, in
// assignment order. Holiday colors are reserved separately.
var Palette = []string{
	"#3B82F6", "#10B981", "#F59E0B", "#8B5CF6", "#EC4899",
	"#06B6D4", "#84CC16", "#D97706", "#F43F5E", "#6366F1",
}

// FallbackColor is resolved for owners missing from the roster the
// assignment was built from, e.g. a user who registered mid-session.
const FallbackColor = "#888888"

// Assignment maps owner ids to palette colors. The roster is sorted
// by id before positions are assigned, so two sessions that fetched
// the same users in different order agree on every color.
type Assignment struct {
	colors map[string]string
}

func NewAssignment(roster []storage.User, palette []string) Assignment {
	if len(palette) == 0 {
		palette = Palette
	}
	ids := make([]string, 0, len(roster))
	for _, u := range roster {
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)

	colors := make(map[string]string, len(ids))
	for i, id := range ids {
		colors[id] = palette[i%len(palette)]
	}
	return Assignment{colors: colors}
}

func (a Assignment) Resolve(ownerID string) string {
	if color, ok := a.colors[ownerID]; ok {
		return color
	}
	return FallbackColor
}
