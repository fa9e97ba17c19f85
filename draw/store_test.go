package draw

import (
	"testing"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_KeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		s.Add(&core.Annotation{ID: id, Kind: core.KindLine})
	}

	var order []string
	for _, a := range s.All() {
		order = append(order, a.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestStore_AddReplacesInPlace(t *testing.T) {
	s := NewStore()
	s.Add(&core.Annotation{ID: "a", Color: "#111111"})
	s.Add(&core.Annotation{ID: "b"})
	s.Add(&core.Annotation{ID: "a", Color: "#222222"})

	require.Equal(t, 2, s.Len())

	a, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "#222222", a.Color)

	// Replacing keeps the original position
	assert.Equal(t, "a", s.All()[0].ID)
}

func TestStore_IgnoresNilAndEmptyID(t *testing.T) {
	s := NewStore()
	s.Add(nil)
	s.Add(&core.Annotation{})

	assert.Equal(t, 0, s.Len())
}

func TestStore_RemoveReportsPresence(t *testing.T) {
	s := NewStore()
	s.Add(&core.Annotation{ID: "a"})

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReplaceSwapsContent(t *testing.T) {
	s := NewStore()
	s.Add(&core.Annotation{ID: "old"})

	s.Replace([]*core.Annotation{{ID: "n1"}, {ID: "n2"}})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("old")
	assert.False(t, ok)
}
