// Package condition defines the takeoff conditions that parameterize
// measurements: their type, unit, color, and geometry modifiers.
package condition

import (
	"errors"
	"sync"
)

// Type determines how a measurement drawn under a condition is interpreted.
type Type string

const (
	Linear Type = "linear"
	Area   Type = "area"
	Volume Type = "volume"
	Count  Type = "count"
)

// ErrStale is returned when a condition id no longer resolves. Capture must
// fall back to selection mode rather than recording against a ghost condition.
var ErrStale = errors.New("condition no longer exists")

// Condition is a named, priced category of measurement ("Foundation Wall").
// The engine treats conditions as read-only input owned by the CRUD layer.
type Condition struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Unit  string `json:"unit"`
	Color string `json:"color"` // "#rrggbb"

	// Depth applies to volume conditions; zero means 1 real unit.
	Depth float64 `json:"depth,omitempty"`

	// IncludePerimeter attaches a perimeter value to area measurements.
	IncludePerimeter bool `json:"include_perimeter,omitempty"`

	// IncludeHeight derives an area from linear measurements using Height.
	IncludeHeight bool    `json:"include_height,omitempty"`
	Height        float64 `json:"height,omitempty"`
}

// EffectiveDepth returns the depth used for volume math, defaulting to 1.
func (c *Condition) EffectiveDepth() float64 {
	if c.Depth > 0 {
		return c.Depth
	}
	return 1
}

// Store is the read-only condition lookup consumed by the engine.
type Store interface {
	// Condition resolves a condition id. Returns ErrStale if the id does
	// not resolve (deleted by the CRUD layer while selected).
	Condition(id string) (*Condition, error)
}

// MemoryStore is an in-memory Store, also used as the live store behind the
// CRUD dialogs. Color edits propagate to rendered measurements automatically
// because colors are always resolved through the store at render time.
type MemoryStore struct {
	mu         sync.RWMutex
	conditions map[string]*Condition
	order      []string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conditions: make(map[string]*Condition)}
}

// Condition implements Store.
func (s *MemoryStore) Condition(id string) (*Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conditions[id]
	if !ok {
		return nil, ErrStale
	}
	cp := *c
	return &cp, nil
}

// Put inserts or replaces a condition.
func (s *MemoryStore) Put(c *Condition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conditions[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	cp := *c
	s.conditions[c.ID] = &cp
}

// SetColor updates a condition's color in place.
func (s *MemoryStore) SetColor(id, color string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conditions[id]
	if !ok {
		return false
	}
	c.Color = color
	return true
}

// Remove deletes a condition. Measurements referencing it remain valid
// records; rendering falls back to a neutral color.
func (s *MemoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conditions[id]; !ok {
		return false
	}
	delete(s.conditions, id)
	for i, cid := range s.order {
		if cid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the conditions in insertion order.
func (s *MemoryStore) All() []*Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Condition, 0, len(s.order))
	for _, id := range s.order {
		if c := s.conditions[id]; c != nil {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}
