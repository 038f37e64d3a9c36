// Package project provides analysis session persistence.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// File represents a saved analysis session (.phasorproj). Paths are
// stored relative to the project file when possible so sessions survive
// directory moves.
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Datasets    []DatasetRef        `json:"datasets,omitempty"`
	Calibration CalibrationSettings `json:"calibration"`
	Filters     FilterSettings      `json:"filters"`
}

// DatasetRef points at one imported sample file.
type DatasetRef struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Channel  int    `json:"channel"`
	Harmonic int    `json:"harmonic"`
}

// CalibrationSettings records the reference and the derived corrections.
type CalibrationSettings struct {
	ReferencePath  string  `json:"reference_path,omitempty"`
	Channel        int     `json:"channel"`
	FrequencyMHz   float64 `json:"frequency_mhz"`
	LifetimeNS     float64 `json:"lifetime_ns"`
	PhaseZero      float64 `json:"phase_zero"`
	ModulationZero float64 `json:"modulation_zero"`
}

// FilterSettings records the filter pipeline parameters.
type FilterSettings struct {
	MedianKernel int     `json:"median_kernel"`
	MedianRepeat int     `json:"median_repeat"`
	PhotonMin    float64 `json:"photon_min"`
	PhotonMax    float64 `json:"photon_max"` // negative = unbounded
}

// New creates a project with default settings.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
		Calibration: CalibrationSettings{
			ModulationZero: 1,
		},
		Filters: FilterSettings{
			MedianKernel: 3,
			MedianRepeat: 1,
			PhotonMax:    -1,
		},
	}
}

// Load loads a project from a .phasorproj file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	if proj.Calibration.ModulationZero == 0 {
		proj.Calibration.ModulationZero = 1
	}
	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// AddDataset appends a dataset reference, storing its path relative to
// the project file when possible. Duplicate names are rejected.
func (p *File) AddDataset(projectPath string, ref DatasetRef) error {
	for _, d := range p.Datasets {
		if d.Name == ref.Name {
			return fmt.Errorf("dataset %q already in project", ref.Name)
		}
	}
	if rel, err := filepath.Rel(filepath.Dir(projectPath), ref.Path); err == nil {
		ref.Path = rel
	}
	p.Datasets = append(p.Datasets, ref)
	p.Modified = time.Now()
	return nil
}

// DatasetPath returns the absolute path of a dataset reference.
func (p *File) DatasetPath(projectPath string, ref DatasetRef) string {
	if filepath.IsAbs(ref.Path) {
		return ref.Path
	}
	return filepath.Join(filepath.Dir(projectPath), ref.Path)
}

// SetReference records the calibration reference path relative to the
// project file when possible.
func (p *File) SetReference(projectPath, refPath string) {
	if rel, err := filepath.Rel(filepath.Dir(projectPath), refPath); err == nil {
		p.Calibration.ReferencePath = rel
	} else {
		p.Calibration.ReferencePath = refPath
	}
	p.Modified = time.Now()
}

// ReferencePath returns the absolute path of the calibration reference,
// or "" when none is set.
func (p *File) ReferencePath(projectPath string) string {
	if p.Calibration.ReferencePath == "" {
		return ""
	}
	if filepath.IsAbs(p.Calibration.ReferencePath) {
		return p.Calibration.ReferencePath
	}
	return filepath.Join(filepath.Dir(projectPath), p.Calibration.ReferencePath)
}
