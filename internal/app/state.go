// Package app provides the analysis orchestrator tying file import,
// calibration, filtering, and plotting together behind one thread-safe
// state object.
package app

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"phasor-studio/internal/calibration"
	"phasor-studio/internal/config"
	"phasor-studio/internal/dataset"
	"phasor-studio/internal/flimio"
	"phasor-studio/internal/plot"
	"phasor-studio/internal/project"
	"phasor-studio/internal/signal"
)

// EventType identifies state change notifications.
type EventType int

const (
	EventDatasetAdded EventType = iota
	EventDatasetRemoved
	EventCalibrationChanged
	EventFiltersApplied
	EventProjectLoaded
	EventProjectSaved
)

// EventListener receives state change notifications.
type EventListener func(event EventType, detail string)

// FilterParams bundle one filter pipeline run.
type FilterParams struct {
	MedianKernel int
	MedianRepeat int
	PhotonMin    float64
	PhotonMax    float64 // negative = unbounded
}

// State holds the analysis session: loaded datasets, the active
// calibration, filter settings, and configuration.
type State struct {
	mu sync.RWMutex

	log *zap.Logger
	cfg config.Config

	ProjectPath string
	Modified    bool

	Calibration *calibration.Calibration
	Datasets    *dataset.Manager
	Filters     FilterParams

	listeners map[EventType][]EventListener
}

// NewState creates a State with the given config. A nil logger disables
// logging.
func NewState(cfg config.Config, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	cal := calibration.New()
	cal.Method = calibration.CenterMethod(cfg.CenterMethod)
	return &State{
		log:         log,
		cfg:         cfg,
		Calibration: cal,
		Datasets:    dataset.NewManager(),
		Filters: FilterParams{
			MedianKernel: cfg.MedianKernelDefault,
			MedianRepeat: cfg.MedianRepeatDefault,
			PhotonMin:    cfg.PhotonMinDefault,
			PhotonMax:    cfg.PhotonMaxDefault,
		},
		listeners: make(map[EventType][]EventListener),
	}
}

// Config returns the active configuration.
func (s *State) Config() config.Config {
	return s.cfg
}

// AddListener registers a listener for an event type.
func (s *State) AddListener(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// notify calls listeners outside the state lock.
func (s *State) notify(event EventType, detail string) {
	s.mu.RLock()
	ls := append([]EventListener(nil), s.listeners[event]...)
	s.mu.RUnlock()
	for _, l := range ls {
		l(event, detail)
	}
}

// ImportDataset loads a FLIM file, computes its phasor, applies the
// current calibration, and registers it under the given name.
func (s *State) ImportDataset(path, name string, channel, harmonic int) (*dataset.Dataset, error) {
	s.log.Info("importing dataset",
		zap.String("path", path), zap.String("name", name), zap.Int("channel", channel))

	sig, err := flimio.Load(path, channel)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return s.AddSignal(sig, name, harmonic)
}

// AddSignal registers an already-loaded signal as a dataset. This is the
// entry point for synthetic or in-memory data.
func (s *State) AddSignal(sig *signal.Signal, name string, harmonic int) (*dataset.Dataset, error) {
	d, err := dataset.New(name, sig)
	if err != nil {
		return nil, err
	}
	if err := d.ComputePhasor(harmonic); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cal := s.Calibration
	if err := d.Calibrate(cal); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.Datasets.Add(d); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.Modified = true
	s.mu.Unlock()

	s.log.Info("dataset ready",
		zap.String("name", name),
		zap.Int("bins", sig.Bins),
		zap.Int("height", sig.Height),
		zap.Int("width", sig.Width),
		zap.Float64("frequency_mhz", sig.FrequencyMHz))
	s.notify(EventDatasetAdded, name)
	return d, nil
}

// RemoveDataset drops a dataset by name.
func (s *State) RemoveDataset(name string) error {
	s.mu.Lock()
	err := s.Datasets.Remove(name)
	if err == nil {
		s.Modified = true
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(EventDatasetRemoved, name)
	return nil
}

// LoadReference imports the calibration reference file.
func (s *State) LoadReference(path string, channel int) error {
	s.log.Info("loading calibration reference",
		zap.String("path", path), zap.Int("channel", channel))

	sig, err := flimio.Load(path, channel)
	if err != nil {
		return fmt.Errorf("load reference %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calibration.SetReference(sig)
}

// ComputeCalibration derives the calibration from the loaded reference
// and applies it to all datasets. freqMHz 0 uses the frequency detected
// in the reference file.
func (s *State) ComputeCalibration(freqMHz, lifetimeNS float64) error {
	s.mu.Lock()
	if err := s.Calibration.Compute(freqMHz, lifetimeNS); err != nil {
		s.mu.Unlock()
		return err
	}
	phase, mod := s.Calibration.PhaseZero, s.Calibration.ModulationZero
	err := s.Datasets.CalibrateAll(s.Calibration)
	if err == nil {
		s.Modified = true
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.log.Info("calibration computed",
		zap.Float64("phase_rad", phase), zap.Float64("modulation", mod))
	s.notify(EventCalibrationChanged, "")
	return nil
}

// CalibrateAll re-applies the current calibration to every dataset.
func (s *State) CalibrateAll() error {
	s.mu.Lock()
	err := s.Datasets.CalibrateAll(s.Calibration)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(EventCalibrationChanged, "")
	return nil
}

// ApplyFilters runs the filter pipeline (median, then photon threshold)
// on every dataset, starting from the calibrated planes.
func (s *State) ApplyFilters(params FilterParams) error {
	s.mu.Lock()
	s.Filters = params
	s.Modified = true
	for _, d := range s.Datasets.List() {
		d.ResetFilters()
		if params.MedianRepeat > 0 && params.MedianKernel >= 3 {
			if err := d.ApplyMedianFilter(params.MedianKernel, params.MedianRepeat); err != nil {
				s.mu.Unlock()
				return err
			}
		}
		if _, err := d.ApplyPhotonThreshold(params.PhotonMin, params.PhotonMax); err != nil {
			s.mu.Unlock()
			return err
		}
		s.log.Debug("filters applied",
			zap.String("dataset", d.Name),
			zap.Int("finite_pixels", d.FiniteCount()))
	}
	s.mu.Unlock()
	s.notify(EventFiltersApplied, "")
	return nil
}

// RenderPlot renders the current working coordinates of all datasets.
func (s *State) RenderPlot(mode plot.Mode) (*image.RGBA, error) {
	s.mu.RLock()
	datasets := s.Datasets.List()
	cfg := s.cfg
	s.mu.RUnlock()

	if len(datasets) == 0 {
		return nil, fmt.Errorf("no datasets loaded")
	}

	opts := plot.DefaultOptions()
	opts.Width = cfg.PlotWidth
	opts.Height = cfg.PlotHeight
	opts.GMin, opts.GMax = cfg.Plot.GMin, cfg.Plot.GMax
	opts.SMin, opts.SMax = cfg.Plot.SMin, cfg.Plot.SMax
	opts.Mode = mode
	opts.MaxPoints = cfg.MaxPlotPoints
	for _, d := range datasets {
		if d.FrequencyMHz > 0 {
			opts.FrequencyMHz = d.FrequencyMHz
			break
		}
	}

	series := make([]plot.Series, 0, len(datasets))
	for _, d := range datasets {
		series = append(series, plot.Series{Name: d.Name, G: d.G, S: d.S, Color: d.Color})
	}
	return plot.Render(opts, series...)
}

// SaveProject writes the session to a .phasorproj file.
func (s *State) SaveProject(path string) error {
	s.mu.Lock()
	proj := project.New(projectName(path))
	for _, d := range s.Datasets.List() {
		if d.Path == "" {
			continue
		}
		if err := proj.AddDataset(path, project.DatasetRef{
			Path: d.Path, Name: d.Name, Channel: d.Channel, Harmonic: d.Harmonic,
		}); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if s.Calibration.ReferencePath != "" {
		proj.SetReference(path, s.Calibration.ReferencePath)
	}
	proj.Calibration.Channel = s.Calibration.ReferenceChannel()
	proj.Calibration.FrequencyMHz = s.Calibration.FrequencyMHz
	proj.Calibration.LifetimeNS = s.Calibration.LifetimeNS
	proj.Calibration.PhaseZero = s.Calibration.PhaseZero
	proj.Calibration.ModulationZero = s.Calibration.ModulationZero
	proj.Filters = project.FilterSettings{
		MedianKernel: s.Filters.MedianKernel,
		MedianRepeat: s.Filters.MedianRepeat,
		PhotonMin:    s.Filters.PhotonMin,
		PhotonMax:    s.Filters.PhotonMax,
	}
	s.mu.Unlock()

	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.log.Info("project saved", zap.String("path", path))
	s.notify(EventProjectSaved, path)
	return nil
}

// LoadProject restores a session: re-imports the referenced files,
// recomputes the calibration when a reference is recorded (falling back
// to the saved scalars when the reference file is gone), and re-runs the
// saved filter pipeline.
func (s *State) LoadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}

	for _, ref := range proj.Datasets {
		harmonic := ref.Harmonic
		if harmonic < 1 {
			harmonic = 1
		}
		if _, err := s.ImportDataset(proj.DatasetPath(path, ref), ref.Name, ref.Channel, harmonic); err != nil {
			return fmt.Errorf("project dataset %s: %w", ref.Name, err)
		}
	}

	if refPath := proj.ReferencePath(path); refPath != "" {
		if err := s.LoadReference(refPath, proj.Calibration.Channel); err == nil {
			err = s.ComputeCalibration(proj.Calibration.FrequencyMHz, proj.Calibration.LifetimeNS)
			if err != nil {
				return err
			}
		} else {
			s.log.Warn("reference file unavailable, using saved calibration scalars",
				zap.String("path", refPath), zap.Error(err))
			if err := s.restoreCalibrationScalars(proj); err != nil {
				return err
			}
		}
	} else if proj.Calibration.PhaseZero != 0 || proj.Calibration.ModulationZero != 1 {
		if err := s.restoreCalibrationScalars(proj); err != nil {
			return err
		}
	}

	if err := s.ApplyFilters(FilterParams{
		MedianKernel: proj.Filters.MedianKernel,
		MedianRepeat: proj.Filters.MedianRepeat,
		PhotonMin:    proj.Filters.PhotonMin,
		PhotonMax:    proj.Filters.PhotonMax,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.log.Info("project loaded",
		zap.String("path", path), zap.Int("datasets", len(proj.Datasets)))
	s.notify(EventProjectLoaded, path)
	return nil
}

func (s *State) restoreCalibrationScalars(proj *project.File) error {
	s.mu.Lock()
	s.Calibration.PhaseZero = proj.Calibration.PhaseZero
	s.Calibration.ModulationZero = proj.Calibration.ModulationZero
	s.Calibration.FrequencyMHz = proj.Calibration.FrequencyMHz
	s.Calibration.LifetimeNS = proj.Calibration.LifetimeNS
	err := s.Datasets.CalibrateAll(s.Calibration)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("restore calibration: %w", err)
	}
	s.notify(EventCalibrationChanged, "")
	return nil
}

func projectName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
