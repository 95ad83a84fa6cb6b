package runtime_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/runtime"
	"github.com/2389-research/specloom/store"
)

func newSpecDir(t *testing.T) (string, ulid.ULID) {
	t.Helper()
	dir := t.TempDir()
	specID := core.NewULID()
	if err := os.MkdirAll(filepath.Join(dir, "snapshots"), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	return dir, specID
}

func TestSpawnPersisterAppendsEvents(t *testing.T) {
	dir, specID := newSpecDir(t)
	actor := core.SpawnActor(specID, core.NewSpecState())

	stop, contexts, err := runtime.SpawnPersister(dir, specID, actor, 200)
	if err != nil {
		t.Fatalf("SpawnPersister: %v", err)
	}
	defer stop()

	if contexts == nil {
		t.Fatal("expected non-nil AgentContextsProvider")
	}

	if _, err := actor.SendCommand(core.CreateSpecCommand{Title: "t", OneLiner: "o", Goal: "g"}); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	waitForFile(t, filepath.Join(dir, "events.jsonl"))
}

func TestSpawnPersisterSnapshotsOnInterval(t *testing.T) {
	dir, specID := newSpecDir(t)
	actor := core.SpawnActor(specID, core.NewSpecState())

	stop, _, err := runtime.SpawnPersister(dir, specID, actor, 1)
	if err != nil {
		t.Fatalf("SpawnPersister: %v", err)
	}
	defer stop()

	if _, err := actor.SendCommand(core.CreateSpecCommand{Title: "t", OneLiner: "o", Goal: "g"}); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	snapDir := filepath.Join(dir, "snapshots")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := store.LoadLatestSnapshot(snapDir)
		if err != nil {
			t.Fatalf("LoadLatestSnapshot: %v", err)
		}
		if snap != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a snapshot to be written within the deadline")
}

func TestSpawnPersisterStopIsIdempotent(t *testing.T) {
	dir, specID := newSpecDir(t)
	actor := core.SpawnActor(specID, core.NewSpecState())

	stop, _, err := runtime.SpawnPersister(dir, specID, actor, 200)
	if err != nil {
		t.Fatalf("SpawnPersister: %v", err)
	}
	stop()
	stop()
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %s to exist and be non-empty", path)
}
