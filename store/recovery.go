package store

import (
	"log"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/specloom/core"
)

const (
	eventsFileName = "events.jsonl"
	snapshotsDir   = "snapshots"
	indexFileName  = "index.db"
)

// RecoverSpec reconstructs the most recent consistent state for the spec
// directory at specDir by composing the snapshot store, event log, and
// secondary index, and returns that state along with its last applied event
// id. It never writes to the event log; it may write to the index and,
// transitively via repair, to the log file.
func RecoverSpec(specDir string) (*core.SpecState, uint64, error) {
	expectedSpecID, hasExpectedSpecID := parseSpecDirID(specDir)

	snapDir := filepath.Join(specDir, snapshotsDir)
	snapshot, err := LoadLatestSnapshot(snapDir)
	if err != nil {
		log.Printf("WARNING: snapshot load failed for %s: %v; falling back to full replay", specDir, err)
		snapshot = nil
	}

	state := core.NewSpecState()
	var snapshotEventID uint64
	if snapshot != nil && snapshot.State != nil {
		state = snapshot.State
		snapshotEventID = snapshot.LastEventID
	}

	logPath := filepath.Join(specDir, eventsFileName)
	if _, err := RepairJsonl(logPath); err != nil {
		log.Printf("WARNING: repair failed for %s: %v", logPath, err)
	}

	events, err := ReplayJsonl(logPath)
	if err != nil {
		return nil, 0, err
	}

	var matching []core.Event
	for i := range events {
		event := events[i]
		if hasExpectedSpecID && event.SpecID != expectedSpecID {
			log.Printf("WARNING: skipping event with mismatched spec_id in %s", logPath)
			continue
		}
		matching = append(matching, event)
		if event.EventID <= snapshotEventID {
			continue
		}
		state.Apply(&event)
	}

	indexPath := filepath.Join(specDir, indexFileName)
	if err := reconcileIndex(indexPath, state, matching); err != nil {
		log.Printf("WARNING: index reconciliation failed for %s: %v", specDir, err)
	}

	return state, state.LastEventID, nil
}

// reconcileIndex compares the secondary index's last applied event id
// against the recovered state's and, on any mismatch (including an absent
// index), rebuilds the index from the full matching event history rather
// than just the post-snapshot tail, since the index has no memory of
// anything the snapshot already folded in.
func reconcileIndex(indexPath string, state *core.SpecState, fullEvents []core.Event) error {
	idx, err := OpenSqlite(indexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	indexed, ok, err := idx.GetLastEventID()
	if err != nil {
		return err
	}

	switch {
	case ok && indexed == state.LastEventID:
		return nil
	default:
		return idx.RebuildFromEvents(fullEvents)
	}
}

func parseSpecDirID(specDir string) (ulid.ULID, bool) {
	id, err := ulid.Parse(filepath.Base(specDir))
	if err != nil {
		return ulid.ULID{}, false
	}
	return id, true
}
