package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/store"
)

func sampleEvent(id uint64) core.Event {
	return core.Event{
		EventID:   id,
		SpecID:    core.NewULID(),
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Payload:   core.SnapshotWrittenPayload{SnapshotID: id},
	}
}

func TestAppendAndReplayJsonl(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	log, err := store.OpenJsonl(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := uint64(1); i <= 5; i++ {
		if err := log.Append(sampleEvent(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	log.Close()

	events, err := store.ReplayJsonl(path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, e := range events {
		if e.EventID != uint64(i+1) {
			t.Errorf("event %d: got id %d", i, e.EventID)
		}
	}
}

func TestRepairTruncatesPartialTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	log, err := store.OpenJsonl(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := uint64(1); i <= 5; i++ {
		if err := log.Append(sampleEvent(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	log.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.WriteString(`{"event_id":6,"parti`); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	f.Close()

	kept, err := store.RepairJsonl(path)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if kept != 5 {
		t.Fatalf("expected 5 kept, got %d", kept)
	}

	events, err := store.ReplayJsonl(path)
	if err != nil {
		t.Fatalf("replay after repair: %v", err)
	}
	if len(events) != 5 || events[4].EventID != 5 {
		t.Fatalf("expected 5 events ending at id 5, got %+v", events)
	}

	keptAgain, err := store.RepairJsonl(path)
	if err != nil {
		t.Fatalf("second repair: %v", err)
	}
	if keptAgain != 5 {
		t.Fatalf("repair not idempotent: got %d on second pass", keptAgain)
	}
}

func TestReplayNonexistentFileReturnsEmpty(t *testing.T) {
	events, err := store.ReplayJsonl(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}
