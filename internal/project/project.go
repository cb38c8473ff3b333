// Package project provides project file handling and persistence.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
)

// CurrentVersion is written to new project files.
const CurrentVersion = 1

// File represents a takeoff project file (.takeoff).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Pages in document order. Image paths are relative to the project file.
	Pages []PageInfo `json:"pages"`

	Conditions   []condition.Condition `json:"conditions,omitempty"`
	Calibrations []calibration.Record  `json:"calibrations,omitempty"`
	Measurements []markup.Measurement  `json:"measurements,omitempty"`
	Annotations  []markup.Annotation   `json:"annotations,omitempty"`
}

// PageInfo describes one drawing sheet.
type PageInfo struct {
	Number    int    `json:"number"`
	ImagePath string `json:"image,omitempty"`

	// Title block metadata, filled by OCR or by hand.
	SheetNumber string `json:"sheet_number,omitempty"`
	SheetName   string `json:"sheet_name,omitempty"`

	// Base frame dimensions at 100% zoom and 0 degrees rotation.
	BaseWidth  float64 `json:"base_width,omitempty"`
	BaseHeight float64 `json:"base_height,omitempty"`
}

// New creates an empty project.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
	}
}

// Load reads a project from a .takeoff file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("parsing project %s: %w", path, err)
	}
	if proj.Version > CurrentVersion {
		return nil, fmt.Errorf("project %s has version %d, newest supported is %d", path, proj.Version, CurrentVersion)
	}
	return &proj, nil
}

// Save writes the project to a file, bumping the modified timestamp.
func (p *File) Save(path string) error {
	p.Modified = time.Now()
	if p.Version == 0 {
		p.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetPageImage stores an image path relative to the project file.
func (p *File) SetPageImage(projectPath string, pageNum int, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(projectPath), imagePath)
	if err != nil {
		rel = imagePath
	}
	for i := range p.Pages {
		if p.Pages[i].Number == pageNum {
			p.Pages[i].ImagePath = rel
			return
		}
	}
	p.Pages = append(p.Pages, PageInfo{Number: pageNum, ImagePath: rel})
}

// PageImagePath returns the absolute path to a page's image.
func (p *File) PageImagePath(projectPath string, pageNum int) string {
	for _, pg := range p.Pages {
		if pg.Number != pageNum {
			continue
		}
		if pg.ImagePath == "" {
			return ""
		}
		if filepath.IsAbs(pg.ImagePath) {
			return pg.ImagePath
		}
		return filepath.Join(filepath.Dir(projectPath), pg.ImagePath)
	}
	return ""
}

// Page returns the PageInfo for a page number, creating it on demand.
func (p *File) Page(pageNum int) *PageInfo {
	for i := range p.Pages {
		if p.Pages[i].Number == pageNum {
			return &p.Pages[i]
		}
	}
	p.Pages = append(p.Pages, PageInfo{Number: pageNum})
	return &p.Pages[len(p.Pages)-1]
}
