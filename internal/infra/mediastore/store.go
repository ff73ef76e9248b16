// Package mediastore persists custom systems and uploaded audio files
// under a local data directory.
package mediastore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

const (
	customsFile  = "customs.json"
	settingsFile = "settings.json"
	uploadsDir   = "uploads"
	generatedDir = "generated"
)

// Settings are the scalar player preferences kept across restarts.
type Settings struct {
	EffectsPreset string  `json:"effects_preset,omitempty"`
	Speed         float64 `json:"speed,omitempty"`
	Volume        float64 `json:"volume,omitempty"`
	Muted         bool    `json:"muted,omitempty"`
}

// Store is a file-backed persister. Writes go through a temp file and
// rename so a crash never leaves a half-written customs file.
type Store struct {
	mu            sync.Mutex
	dataDir       string
	uploadBaseURL string
}

// New creates the store, making the data, uploads and generated
// directories.
func New(dataDir, uploadBaseURL string) (*Store, error) {
	for _, sub := range []string{uploadsDir, generatedDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0755); err != nil {
			return nil, errors.Wrapf(err, "create data dir %s", dataDir)
		}
	}
	return &Store{
		dataDir:       dataDir,
		uploadBaseURL: strings.TrimSuffix(uploadBaseURL, "/"),
	}, nil
}

// SaveCustomSystems writes the full custom system collection.
func (s *Store) SaveCustomSystems(systems []transit.System) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(systems, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal custom systems")
	}

	path := filepath.Join(s.dataDir, customsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write custom systems")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replace custom systems")
	}
	return nil
}

// LoadCustomSystems reads the stored custom systems. A missing file
// yields an empty collection.
func (s *Store) LoadCustomSystems() ([]transit.System, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dataDir, customsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read custom systems")
	}

	var systems []transit.System
	if err := json.Unmarshal(data, &systems); err != nil {
		return nil, errors.Wrap(err, "parse custom systems")
	}
	return systems, nil
}

// SaveSettings writes the player preferences.
func (s *Store) SaveSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal settings")
	}

	path := filepath.Join(s.dataDir, settingsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write settings")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replace settings")
	}
	return nil
}

// LoadSettings reads the stored player preferences. The second return
// reports whether a settings file existed.
func (s *Store) LoadSettings() (Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dataDir, settingsFile))
	if os.IsNotExist(err) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, errors.Wrap(err, "read settings")
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, false, errors.Wrap(err, "parse settings")
	}
	return settings, true, nil
}

// SaveUpload stores an uploaded audio file under a unique name.
func (s *Store) SaveUpload(name string, data []byte) (announce.UploadedAudio, error) {
	if len(data) == 0 {
		return announce.UploadedAudio{}, errors.New("upload is empty")
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	stored := id + "_" + sanitizeFilename(name)
	path := filepath.Join(s.dataDir, uploadsDir, stored)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return announce.UploadedAudio{}, errors.Wrapf(err, "write upload %s", name)
	}

	zlog.Debug().Str("file", stored).Int("bytes", len(data)).Msg("mediastore: upload saved")
	return announce.UploadedAudio{
		ID:   id,
		Name: name,
		URL:  s.uploadBaseURL + "/" + stored,
	}, nil
}

// RemoveUpload deletes the file behind an upload URL. URLs outside the
// uploads prefix are rejected.
func (s *Store) RemoveUpload(url string) error {
	stored, ok := strings.CutPrefix(url, s.uploadBaseURL+"/")
	if !ok || stored == "" || strings.Contains(stored, "/") || strings.Contains(stored, "..") {
		return errors.Newf("not an upload url: %s", url)
	}

	err := os.Remove(filepath.Join(s.dataDir, uploadsDir, stored))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "remove upload %s", stored)
}

// SaveGenerated stores a synthesized audio clip and returns its served
// URL. Generated files share the uploads URL space under a generated/
// prefix.
func (s *Store) SaveGenerated(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("generated clip is empty")
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	stored := id + "_" + sanitizeFilename(name)
	path := filepath.Join(s.dataDir, generatedDir, stored)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrapf(err, "write generated clip %s", name)
	}

	zlog.Debug().Str("file", stored).Int("bytes", len(data)).Msg("mediastore: generated clip saved")
	return s.uploadBaseURL + "/generated/" + stored, nil
}

// UploadsDir returns the directory uploads are served from.
func (s *Store) UploadsDir() string {
	return filepath.Join(s.dataDir, uploadsDir)
}

// GeneratedDir returns the directory generated clips are served from.
func (s *Store) GeneratedDir() string {
	return filepath.Join(s.dataDir, generatedDir)
}

// sanitizeFilename keeps a conservative character set so stored names
// are safe on any filesystem and in URLs.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || out == "." {
		out = "audio"
	}
	return out
}
