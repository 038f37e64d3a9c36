package dataset

import (
	"fmt"

	"phasor-studio/internal/calibration"
)

// Manager holds the loaded datasets in insertion order, keyed by name.
type Manager struct {
	order  []string
	byName map[string]*Dataset
}

// NewManager creates an empty dataset manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]*Dataset)}
}

// Add registers a dataset. Names must be unique.
func (m *Manager) Add(d *Dataset) error {
	if _, exists := m.byName[d.Name]; exists {
		return fmt.Errorf("dataset %q already loaded", d.Name)
	}
	m.byName[d.Name] = d
	m.order = append(m.order, d.Name)
	return nil
}

// Remove drops a dataset by name.
func (m *Manager) Remove(name string) error {
	if _, exists := m.byName[name]; !exists {
		return fmt.Errorf("no dataset named %q", name)
	}
	delete(m.byName, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a dataset by name.
func (m *Manager) Get(name string) (*Dataset, bool) {
	d, ok := m.byName[name]
	return d, ok
}

// List returns the datasets in insertion order.
func (m *Manager) List() []*Dataset {
	out := make([]*Dataset, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out
}

// Len returns the number of loaded datasets.
func (m *Manager) Len() int {
	return len(m.order)
}

// CalibrateAll applies one calibration to every loaded dataset. The first
// error aborts and is returned; earlier datasets stay calibrated.
func (m *Manager) CalibrateAll(cal *calibration.Calibration) error {
	for _, d := range m.List() {
		if err := d.Calibrate(cal); err != nil {
			return err
		}
	}
	return nil
}

// ResetAllFilters restores every dataset's working planes.
func (m *Manager) ResetAllFilters() {
	for _, d := range m.List() {
		d.ResetFilters()
	}
}
