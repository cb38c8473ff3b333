// Package store persists markups. Writes are decoupled from the UI thread:
// the engine treats every save as fire-and-forget and rolls back on failure.
package store

import (
	"errors"
	"sync"

	"plan-takeoff/internal/markup"
)

// ErrNotFound is returned when updating or deleting an unknown markup.
var ErrNotFound = errors.New("markup not found")

// Store is the persistence backend for measurements and annotations.
type Store interface {
	SaveMeasurement(m *markup.Measurement) error
	UpdateMeasurement(m *markup.Measurement) error
	DeleteMeasurement(id string) error

	SaveAnnotation(a *markup.Annotation) error
	UpdateAnnotation(a *markup.Annotation) error
	DeleteAnnotation(id string) error
}

// Memory is an in-memory Store used standalone and as the cache behind
// project files.
type Memory struct {
	mu           sync.RWMutex
	measurements map[string]*markup.Measurement
	annotations  map[string]*markup.Annotation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		measurements: make(map[string]*markup.Measurement),
		annotations:  make(map[string]*markup.Annotation),
	}
}

// SaveMeasurement implements Store.
func (s *Memory) SaveMeasurement(m *markup.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.measurements[m.ID] = &cp
	return nil
}

// UpdateMeasurement implements Store.
func (s *Memory) UpdateMeasurement(m *markup.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.measurements[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	s.measurements[m.ID] = &cp
	return nil
}

// DeleteMeasurement implements Store.
func (s *Memory) DeleteMeasurement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.measurements[id]; !ok {
		return ErrNotFound
	}
	delete(s.measurements, id)
	return nil
}

// SaveAnnotation implements Store.
func (s *Memory) SaveAnnotation(a *markup.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.annotations[a.ID] = &cp
	return nil
}

// UpdateAnnotation implements Store.
func (s *Memory) UpdateAnnotation(a *markup.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.annotations[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	s.annotations[a.ID] = &cp
	return nil
}

// DeleteAnnotation implements Store.
func (s *Memory) DeleteAnnotation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.annotations[id]; !ok {
		return ErrNotFound
	}
	delete(s.annotations, id)
	return nil
}

// Measurements returns a snapshot of all stored measurements.
func (s *Memory) Measurements() []*markup.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*markup.Measurement, 0, len(s.measurements))
	for _, m := range s.measurements {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

// Annotations returns a snapshot of all stored annotations.
func (s *Memory) Annotations() []*markup.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*markup.Annotation, 0, len(s.annotations))
	for _, a := range s.annotations {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
