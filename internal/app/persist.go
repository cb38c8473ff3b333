package app

import (
	"plan-takeoff/internal/project"
)

// LoadProject reads a project file and restores the engines from it. Any
// open project is discarded first so sessions never merge.
func (s *State) LoadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}

	s.rewireEngines()

	s.mu.Lock()
	s.ProjectPath = path
	s.Project = proj
	s.Modified = false
	s.mu.Unlock()

	for i := range proj.Conditions {
		s.Conditions.Put(&proj.Conditions[i])
	}
	s.Cal.Restore(proj.Calibrations)
	for i := range proj.Measurements {
		s.Markups.AddMeasurement(&proj.Measurements[i])
	}
	for i := range proj.Annotations {
		s.Markups.AddAnnotation(&proj.Annotations[i])
	}

	s.Emit(EventProjectLoaded, path)
	s.Emit(EventConditionsChanged, nil)
	s.Emit(EventCalibrationChanged, nil)
	s.Emit(EventMarkupsChanged, nil)
	return nil
}

// SaveProject snapshots the engines into the project file and writes it.
func (s *State) SaveProject(path string) error {
	s.mu.RLock()
	proj := s.Project
	s.mu.RUnlock()

	proj.Conditions = proj.Conditions[:0]
	for _, c := range s.Conditions.All() {
		proj.Conditions = append(proj.Conditions, *c)
	}
	proj.Calibrations = s.Cal.Records()

	proj.Measurements = proj.Measurements[:0]
	for _, m := range s.Markups.AllMeasurements() {
		proj.Measurements = append(proj.Measurements, *m)
	}
	proj.Annotations = proj.Annotations[:0]
	for _, a := range s.Markups.AllAnnotations() {
		proj.Annotations = append(proj.Annotations, *a)
	}

	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventProjectSaved, path)
	return nil
}
