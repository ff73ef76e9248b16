// Package catalog loads the shipped transit systems and the audio
// preset library they reference.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// systemFile is the on-disk schema of one shipped system. Slot keys
// appear in their text form and are parsed on load.
type systemFile struct {
	ID              string                         `yaml:"id"`
	Name            string                         `yaml:"name"`
	Description     string                         `yaml:"description"`
	FullDescription string                         `yaml:"full_description"`
	Stations        []transit.Station              `yaml:"stations"`
	Lines           []transit.Line                 `yaml:"lines"`
	Assignments     map[string]announce.Assignment `yaml:"assignments"`
	Categories      map[string]announce.Category   `yaml:"categories"`
	Defaults        []announce.Assignment          `yaml:"defaults"`
}

// Catalog holds the loaded built-in systems and preset audio library.
type Catalog struct {
	systems  []transit.System
	defaults []announce.Assignment
	audio    map[string]string // filename -> served URL
	audioDir string
}

// Load reads every system file under systemsDir and indexes the audio
// files under audioDir. A missing audio directory is tolerated; with
// no system files the built-in fallback system is used.
func Load(systemsDir, audioDir, audioBaseURL string) (*Catalog, error) {
	c := &Catalog{
		audio:    make(map[string]string),
		audioDir: audioDir,
	}

	if entries, err := os.ReadDir(audioDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			c.audio[e.Name()] = audioBaseURL + "/" + e.Name()
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read audio dir %s", audioDir)
	}

	files, err := systemFiles(systemsDir)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		sys, defaults, err := c.loadSystemFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load system file %s", path)
		}
		c.systems = append(c.systems, sys)
		c.defaults = append(c.defaults, defaults...)
	}

	if len(c.systems) == 0 {
		zlog.Warn().Str("dir", systemsDir).Msg("catalog: no system files, using fallback system")
		c.systems = append(c.systems, fallbackSystem())
	}

	zlog.Info().
		Int("systems", len(c.systems)).
		Int("audio_files", len(c.audio)).
		Msg("catalog: loaded")
	return c, nil
}

// Systems returns the shipped systems in file order.
func (c *Catalog) Systems() []transit.System {
	out := make([]transit.System, 0, len(c.systems))
	for _, s := range c.systems {
		s.Model = s.Model.Clone()
		out = append(out, s)
	}
	return out
}

// PresetPath resolves a preset filename to its served URL.
func (c *Catalog) PresetPath(filename string) (string, bool) {
	url, ok := c.audio[filename]
	return url, ok
}

// AudioFiles lists the preset audio filenames, sorted.
func (c *Catalog) AudioFiles() []string {
	out := make([]string, 0, len(c.audio))
	for name := range c.audio {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AudioDir returns the directory preset audio is served from.
func (c *Catalog) AudioDir() string {
	return c.audioDir
}

// DefaultStationAssignments returns the seeding pool for stations that
// have no audio when a line is selected.
func (c *Catalog) DefaultStationAssignments() []announce.Assignment {
	out := make([]announce.Assignment, 0, len(c.defaults))
	for _, a := range c.defaults {
		out = append(out, a.Clone())
	}
	return out
}

func systemFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read systems dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (c *Catalog) loadSystemFile(path string) (transit.System, []announce.Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transit.System{}, nil, errors.Wrap(err, "read")
	}

	var f systemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return transit.System{}, nil, errors.Wrap(err, "parse")
	}
	if f.ID == "" {
		return transit.System{}, nil, errors.New("system id is required")
	}

	m := transit.NewModel()
	for _, st := range f.Stations {
		// Dashes would make composite slot keys ambiguous
		if strings.Contains(st.ID, "-") {
			return transit.System{}, nil, errors.Newf("station id %q must not contain dashes", st.ID)
		}
		st.SnapToGrid()
		m.Stations = append(m.Stations, st)
	}
	m.Lines = append(m.Lines, f.Lines...)

	for key, a := range f.Assignments {
		slot, err := transit.ParseSlotKey(key)
		if err != nil {
			return transit.System{}, nil, errors.Wrapf(err, "assignment key %q", key)
		}
		m.Assignments[slot] = c.resolvePreset(a)
	}
	for key, cat := range f.Categories {
		slot, err := transit.ParseSlotKey(key)
		if err != nil {
			return transit.System{}, nil, errors.Wrapf(err, "category key %q", key)
		}
		if !cat.Valid() {
			return transit.System{}, nil, errors.Newf("invalid category %q for %q", cat, key)
		}
		m.Categories[slot] = cat
	}

	defaults := make([]announce.Assignment, 0, len(f.Defaults))
	for _, a := range f.Defaults {
		defaults = append(defaults, c.resolvePreset(a))
	}

	return transit.System{
		ID:              f.ID,
		Name:            f.Name,
		Description:     f.Description,
		FullDescription: f.FullDescription,
		Model:           m,
	}, defaults, nil
}

// resolvePreset fills in the served URL of a preset assignment so the
// queue can treat catalog audio like any other playable resource.
func (c *Catalog) resolvePreset(a announce.Assignment) announce.Assignment {
	if a.Kind == "" {
		a.Kind = announce.KindPreset
	}
	if a.Kind == announce.KindPreset && a.URL == "" && a.Filename != "" {
		if url, ok := c.audio[a.Filename]; ok {
			a.URL = url
		} else {
			zlog.Warn().Str("filename", a.Filename).Msg("catalog: preset audio file missing")
		}
	}
	return a
}

// fallbackSystem is the minimal system served when no catalog files
// are installed, so the board always has something to show.
func fallbackSystem() transit.System {
	m := transit.NewModel()
	m.Stations = []transit.Station{
		{ID: "central", Name: "Central", GridX: 4, GridY: 6, LineID: "line1", Index: 0},
		{ID: "riverside", Name: "Riverside", GridX: 8, GridY: 6, LineID: "line1", Index: 1},
		{ID: "hilltop", Name: "Hilltop", GridX: 12, GridY: 4, LineID: "line1", Index: 2},
		{ID: "terminal", Name: "Terminal", GridX: 16, GridY: 4, LineID: "line1", Index: 3},
	}
	for i := range m.Stations {
		m.Stations[i].SnapToGrid()
	}
	m.Lines = []transit.Line{
		{ID: "line1", Name: "City Line", Color: "#d93025", Stations: []string{"central", "riverside", "hilltop", "terminal"}},
	}
	return transit.System{
		ID:          "simple",
		Name:        "Simple Network",
		Description: "A four stop starter line",
		Model:       m,
	}
}
