package client

import (
	"testing"

	"github.com/ldomjan/sharedcal/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestAssignment(t *testing.T) {
	roster := []storage.User{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	palette := []string{"c1", "c2", "c3"}

	t.Run("i-th user gets i-th color", func(t *testing.T) {
		a := NewAssignment(roster, palette)
		require.Equal(t, "c1", a.Resolve("a"))
		require.Equal(t, "c2", a.Resolve("b"))
		require.Equal(t, "c3", a.Resolve("c"))
	})

	t.Run("unknown owner resolves to the fallback", func(t *testing.T) {
		a := NewAssignment(roster, palette)
		require.Equal(t, FallbackColor, a.Resolve("d"))
	})

	t.Run("assignment does not depend on roster fetch order", func(t *testing.T) {
		shuffled := []storage.User{{ID: "c"}, {ID: "a"}, {ID: "b"}}
		a1 := NewAssignment(roster, palette)
		a2 := NewAssignment(shuffled, palette)
		for _, id := range []string{"a", "b", "c"} {
			require.Equal(t, a1.Resolve(id), a2.Resolve(id))
		}
	})

	t.Run("palette cycles when users exceed it", func(t *testing.T) {
		bigRoster := []storage.User{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
		a := NewAssignment(bigRoster, palette)
		require.Equal(t, "c1", a.Resolve("d"))
	})

	t.Run("empty palette falls back to the default one", func(t *testing.T) {
		a := NewAssignment(roster, nil)
		require.Equal(t, Palette[0], a.Resolve("a"))
	})
}
