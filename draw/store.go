package draw

import (
	"github.com/StudioSol/set"
	"github.com/chartmark/chartmark/core"
)

// Store is the in-memory source of truth for drawn annotations. Ids keep
// insertion order so render output stays deterministic frame to frame.
//
// The store is mutated only by the interaction engine and read by the
// renderer and hit tester on the same event loop, so it carries no lock.
type Store struct {
	ids  *set.LinkedHashSetString
	byID map[string]*core.Annotation
}

// NewStore creates an empty annotation store.
func NewStore() *Store {
	return &Store{
		ids:  set.NewLinkedHashSetString(),
		byID: make(map[string]*core.Annotation),
	}
}

// Add inserts or replaces an annotation.
func (s *Store) Add(a *core.Annotation) {
	if a == nil || a.ID == "" {
		return
	}

	s.ids.Add(a.ID)
	s.byID[a.ID] = a
}

// Get returns the annotation with the given id.
func (s *Store) Get(id string) (*core.Annotation, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Remove deletes an annotation, reporting whether it was present.
func (s *Store) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}

	delete(s.byID, id)
	s.ids.Remove(id)
	return true
}

// Clear drops every annotation.
func (s *Store) Clear() {
	s.ids = set.NewLinkedHashSetString()
	s.byID = make(map[string]*core.Annotation)
}

// Len returns the number of stored annotations.
func (s *Store) Len() int { return len(s.byID) }

// All returns the stored annotations in insertion order.
func (s *Store) All() []*core.Annotation {
	out := make([]*core.Annotation, 0, len(s.byID))
	for id := range s.ids.Iter() {
		if a, ok := s.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Replace swaps the whole content for a freshly loaded set.
func (s *Store) Replace(list []*core.Annotation) {
	s.Clear()
	for _, a := range list {
		s.Add(a)
	}
}
