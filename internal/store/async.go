package store

import (
	"log"
	"sync"

	"plan-takeoff/internal/markup"
)

// AsyncSaver wraps a Store so the UI never blocks on persistence. Saves run
// on a single background goroutine in submission order; a failed write
// invokes the rollback callback so the caller can undo its optimistic state.
type AsyncSaver struct {
	backend Store

	// OnMeasurementError is called with the failed measurement and error.
	// Nil callbacks just log.
	OnMeasurementError func(m *markup.Measurement, err error)
	OnAnnotationError  func(a *markup.Annotation, err error)

	jobs chan func()
	wg   sync.WaitGroup
	once sync.Once
}

// NewAsyncSaver starts the background writer.
func NewAsyncSaver(backend Store) *AsyncSaver {
	s := &AsyncSaver{
		backend: backend,
		jobs:    make(chan func(), 64),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSaver) run() {
	defer s.wg.Done()
	for job := range s.jobs {
		job()
	}
}

// Close drains pending writes and stops the writer.
func (s *AsyncSaver) Close() {
	s.once.Do(func() { close(s.jobs) })
	s.wg.Wait()
}

func (s *AsyncSaver) measurementFailed(m *markup.Measurement, err error) {
	if s.OnMeasurementError != nil {
		s.OnMeasurementError(m, err)
		return
	}
	log.Printf("save measurement %s: %v", m.ID, err)
}

func (s *AsyncSaver) annotationFailed(a *markup.Annotation, err error) {
	if s.OnAnnotationError != nil {
		s.OnAnnotationError(a, err)
		return
	}
	log.Printf("save annotation %s: %v", a.ID, err)
}

// SaveMeasurement queues a measurement insert.
func (s *AsyncSaver) SaveMeasurement(m *markup.Measurement) {
	cp := *m
	s.jobs <- func() {
		if err := s.backend.SaveMeasurement(&cp); err != nil {
			s.measurementFailed(&cp, err)
		}
	}
}

// UpdateMeasurement queues a measurement update (e.g. after a cutout).
func (s *AsyncSaver) UpdateMeasurement(m *markup.Measurement) {
	cp := *m
	s.jobs <- func() {
		if err := s.backend.UpdateMeasurement(&cp); err != nil {
			s.measurementFailed(&cp, err)
		}
	}
}

// DeleteMeasurement queues a measurement delete.
func (s *AsyncSaver) DeleteMeasurement(id string) {
	s.jobs <- func() {
		if err := s.backend.DeleteMeasurement(id); err != nil {
			s.measurementFailed(&markup.Measurement{ID: id}, err)
		}
	}
}

// SaveAnnotation queues an annotation insert.
func (s *AsyncSaver) SaveAnnotation(a *markup.Annotation) {
	cp := *a
	s.jobs <- func() {
		if err := s.backend.SaveAnnotation(&cp); err != nil {
			s.annotationFailed(&cp, err)
		}
	}
}

// DeleteAnnotation queues an annotation delete.
func (s *AsyncSaver) DeleteAnnotation(id string) {
	s.jobs <- func() {
		if err := s.backend.DeleteAnnotation(id); err != nil {
			s.annotationFailed(&markup.Annotation{ID: id}, err)
		}
	}
}
