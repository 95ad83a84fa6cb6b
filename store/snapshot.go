package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/2389-research/specloom/core"
)

// SnapshotData is the self-describing blob written atomically by the
// persister task: a full materialised state plus the agent contexts active
// at save time.
type SnapshotData struct {
	State         *core.SpecState
	LastEventID   uint64
	AgentContexts map[string]json.RawMessage
	SavedAt       time.Time
}

type snapshotJSON struct {
	State         *core.SpecState            `json:"state"`
	LastEventID   uint64                     `json:"last_event_id"`
	AgentContexts map[string]json.RawMessage `json:"agent_contexts"`
	SavedAt       time.Time                  `json:"saved_at"`
}

func (d SnapshotData) MarshalJSON() ([]byte, error) {
	contexts := d.AgentContexts
	if contexts == nil {
		contexts = map[string]json.RawMessage{}
	}
	return json.Marshal(snapshotJSON{
		State: d.State, LastEventID: d.LastEventID,
		AgentContexts: contexts, SavedAt: d.SavedAt,
	})
}

func (d *SnapshotData) UnmarshalJSON(data []byte) error {
	var wire snapshotJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.State = wire.State
	d.LastEventID = wire.LastEventID
	d.AgentContexts = wire.AgentContexts
	d.SavedAt = wire.SavedAt
	return nil
}

var snapshotFilePattern = regexp.MustCompile(`^state_(\d+)\.json$`)

func snapshotPath(dir string, eventID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("state_%d.json", eventID))
}

// SaveSnapshot atomically writes data into dir, keyed by data.LastEventID.
// Readers always see either the previous snapshot file or the complete new
// one, never a partial write.
func SaveSnapshot(dir string, data SnapshotData) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	final := snapshotPath(dir, data.LastEventID)
	tmp := final + ".tmp"

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(encoded); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		return err
	}
	if parent, err := os.Open(dir); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// LoadLatestSnapshot scans dir for state_<event_id>.json files and returns
// the one with the highest event id, or (nil, nil) if dir is missing or
// contains no snapshots.
func LoadLatestSnapshot(dir string) (*SnapshotData, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var bestID uint64
	var bestName string
	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := snapshotFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		if !found || id > bestID {
			bestID = id
			bestName = entry.Name()
			found = true
		}
	}
	if !found {
		return nil, nil
	}

	raw, err := os.ReadFile(filepath.Join(dir, bestName))
	if err != nil {
		return nil, err
	}
	var data SnapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
