package store

import (
	"log"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/specloom/core"
)

// SpecDir names one spec's on-disk directory.
type SpecDir struct {
	SpecID ulid.ULID
	Path   string
}

// RecoveredSpec pairs a spec id with the state recovered for it at startup.
type RecoveredSpec struct {
	SpecID ulid.ULID
	State  *core.SpecState
}

// StorageManager resolves the on-disk layout rooted at home:
//
//	<home>/specs/<spec_id>/events.jsonl
//	<home>/specs/<spec_id>/snapshots/state_<event_id>.json
//	<home>/specs/<spec_id>/index.db
type StorageManager struct {
	home string
}

// NewStorageManager returns a manager rooted at home.
func NewStorageManager(home string) *StorageManager {
	return &StorageManager{home: home}
}

// Home returns the configured root directory.
func (m *StorageManager) Home() string {
	return m.home
}

func (m *StorageManager) specsRoot() string {
	return filepath.Join(m.home, "specs")
}

// GetSpecDir returns the directory path for specID, without creating it.
func (m *StorageManager) GetSpecDir(specID ulid.ULID) string {
	return filepath.Join(m.specsRoot(), specID.String())
}

// CreateSpecDir creates a fresh spec directory (and its snapshots
// subdirectory) for specID.
func (m *StorageManager) CreateSpecDir(specID ulid.ULID) (string, error) {
	dir := m.GetSpecDir(specID)
	if err := os.MkdirAll(filepath.Join(dir, snapshotsDir), 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// ListSpecDirs enumerates every directory under <home>/specs whose name
// parses as a ULID, logging and skipping anything else.
func (m *StorageManager) ListSpecDirs() ([]SpecDir, error) {
	entries, err := os.ReadDir(m.specsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []SpecDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := ulid.Parse(entry.Name())
		if err != nil {
			log.Printf("WARNING: skipping non-spec directory %q under %s", entry.Name(), m.specsRoot())
			continue
		}
		dirs = append(dirs, SpecDir{SpecID: id, Path: filepath.Join(m.specsRoot(), entry.Name())})
	}
	return dirs, nil
}

// RecoverAllSpecs runs the recovery pipeline over every spec directory,
// logging and skipping any spec whose recovery fails rather than aborting
// startup for every other spec.
func (m *StorageManager) RecoverAllSpecs() ([]RecoveredSpec, error) {
	dirs, err := m.ListSpecDirs()
	if err != nil {
		return nil, err
	}

	var recovered []RecoveredSpec
	for _, dir := range dirs {
		state, _, err := RecoverSpec(dir.Path)
		if err != nil {
			log.Printf("WARNING: recovery failed for spec %s: %v; skipping", dir.SpecID, err)
			continue
		}
		recovered = append(recovered, RecoveredSpec{SpecID: dir.SpecID, State: state})
	}
	return recovered, nil
}
