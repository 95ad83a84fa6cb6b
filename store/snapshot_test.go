package store_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/store"
)

func TestSaveThenLoadLatestSnapshot(t *testing.T) {
	dir := t.TempDir()

	state := core.NewSpecState()
	specID := core.NewULID()
	state.Apply(&core.Event{EventID: 1, SpecID: specID, Timestamp: time.Now().UTC(), Payload: core.SpecCreatedPayload{Title: "S", OneLiner: "o", Goal: "g"}})

	data := store.SnapshotData{
		State:         state,
		LastEventID:   1,
		AgentContexts: map[string]json.RawMessage{"manager-1": json.RawMessage(`{"x":1}`)},
		SavedAt:       time.Now().UTC().Truncate(time.Second),
	}

	if err := store.SaveSnapshot(dir, data); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadLatestSnapshot(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if loaded.LastEventID != 1 || loaded.State.Core.Title != "S" {
		t.Errorf("loaded snapshot mismatch: %+v", loaded)
	}
}

func TestLoadLatestSnapshotPicksHighestEventID(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []uint64{5, 20, 10} {
		state := core.NewSpecState()
		state.LastEventID = id
		data := store.SnapshotData{State: state, LastEventID: id, SavedAt: time.Now().UTC()}
		if err := store.SaveSnapshot(dir, data); err != nil {
			t.Fatalf("save %d: %v", id, err)
		}
	}

	loaded, err := store.LoadLatestSnapshot(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LastEventID != 20 {
		t.Errorf("expected highest event id 20, got %d", loaded.LastEventID)
	}
}

func TestLoadLatestSnapshotMissingDirReturnsNil(t *testing.T) {
	loaded, err := store.LoadLatestSnapshot(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil, got %+v", loaded)
	}
}
