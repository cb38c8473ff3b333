package store

import (
	"errors"
	"sync"
	"testing"

	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
)

func TestMemoryCRUD(t *testing.T) {
	s := NewMemory()
	m := &markup.Measurement{ID: "m-1", Type: condition.Linear, Value: 40, Unit: "ft", Page: 1}

	if err := s.SaveMeasurement(m); err != nil {
		t.Fatal(err)
	}
	m.Value = 50
	if err := s.UpdateMeasurement(m); err != nil {
		t.Fatal(err)
	}
	got := s.Measurements()
	if len(got) != 1 || got[0].Value != 50 {
		t.Errorf("unexpected stored state: %+v", got)
	}
	if err := s.DeleteMeasurement("m-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteMeasurement("m-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateMeasurement(m); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	m := &markup.Measurement{ID: "m-1", Value: 40}
	s.SaveMeasurement(m)

	m.Value = 999
	if got := s.Measurements()[0].Value; got != 40 {
		t.Errorf("store must copy on save, got %v", got)
	}
}

func TestAsyncSaverPersistsInOrder(t *testing.T) {
	backend := NewMemory()
	saver := NewAsyncSaver(backend)

	m := &markup.Measurement{ID: "m-1", Value: 40}
	saver.SaveMeasurement(m)
	m.Value = 50
	saver.UpdateMeasurement(m)
	saver.Close()

	got := backend.Measurements()
	if len(got) != 1 || got[0].Value != 50 {
		t.Errorf("unexpected persisted state: %+v", got)
	}
}

type failingStore struct {
	Memory
}

func (f *failingStore) SaveMeasurement(m *markup.Measurement) error {
	return errors.New("disk full")
}

func TestAsyncSaverRollbackCallback(t *testing.T) {
	saver := NewAsyncSaver(&failingStore{})

	var mu sync.Mutex
	var failed []string
	saver.OnMeasurementError = func(m *markup.Measurement, err error) {
		mu.Lock()
		failed = append(failed, m.ID)
		mu.Unlock()
	}

	saver.SaveMeasurement(&markup.Measurement{ID: "m-1"})
	saver.Close()

	if len(failed) != 1 || failed[0] != "m-1" {
		t.Errorf("rollback callback not invoked: %v", failed)
	}
}
