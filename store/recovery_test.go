package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/store"
)

func writeEvents(t *testing.T, specDir string, specID interface{ String() string }, events []core.Event) {
	t.Helper()
	log, err := store.OpenJsonl(filepath.Join(specDir, "events.jsonl"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	for _, e := range events {
		if err := log.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	log.Close()
}

func TestRecoverSpecWithPartialTrailingLine(t *testing.T) {
	specID := core.NewULID()
	specDir := filepath.Join(t.TempDir(), specID.String())
	if err := os.MkdirAll(specDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	now := time.Now().UTC()
	var events []core.Event
	events = append(events, core.Event{EventID: 1, SpecID: specID, Timestamp: now, Payload: core.SpecCreatedPayload{Title: "S", OneLiner: "o", Goal: "g"}})
	for i := uint64(2); i <= 5; i++ {
		events = append(events, core.Event{EventID: i, SpecID: specID, Timestamp: now, Payload: core.SnapshotWrittenPayload{SnapshotID: i}})
	}
	writeEvents(t, specDir, specID, events)

	f, err := os.OpenFile(filepath.Join(specDir, "events.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	f.WriteString(`{"event_id":6,"parti`)
	f.Close()

	state, lastID, err := store.RecoverSpec(specDir)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if lastID != 5 {
		t.Errorf("expected last_event_id 5, got %d", lastID)
	}
	if state.Core == nil || state.Core.Title != "S" {
		t.Errorf("unexpected recovered core: %+v", state.Core)
	}

	raw, err := os.ReadFile(filepath.Join(specDir, "events.jsonl"))
	if err != nil {
		t.Fatalf("read repaired log: %v", err)
	}
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		t.Errorf("repaired log should end with a complete newline-terminated record")
	}
}

func TestRecoverSpecWithSnapshotAndTailReplayMatchesFullReplay(t *testing.T) {
	specID := core.NewULID()
	now := time.Now().UTC()

	var events []core.Event
	events = append(events, core.Event{EventID: 1, SpecID: specID, Timestamp: now, Payload: core.SpecCreatedPayload{Title: "S", OneLiner: "o", Goal: "g"}})
	cardID := core.NewULID()
	events = append(events, core.Event{EventID: 2, SpecID: specID, Timestamp: now, Payload: core.CardCreatedPayload{Card: core.NewCard(cardID, core.CardTypeIdea, "A", nil, "human", now)}})
	for i := uint64(3); i <= 20; i++ {
		events = append(events, core.Event{EventID: i, SpecID: specID, Timestamp: now, Payload: core.CardMovedPayload{CardID: cardID, Lane: "Plan", Order: float64(i)}})
	}

	// Full replay baseline, no snapshot involved.
	fullDir := filepath.Join(t.TempDir(), specID.String())
	os.MkdirAll(fullDir, 0o755)
	writeEvents(t, fullDir, specID, events)
	fullState, _, err := store.RecoverSpec(fullDir)
	if err != nil {
		t.Fatalf("full recover: %v", err)
	}

	// Snapshot at event 10, replay only the tail.
	snapDir := filepath.Join(t.TempDir(), specID.String())
	os.MkdirAll(snapDir, 0o755)
	writeEvents(t, snapDir, specID, events)

	baseState := core.NewSpecState()
	for i := range events[:10] {
		e := events[i]
		baseState.Apply(&e)
	}
	if err := store.SaveSnapshot(filepath.Join(snapDir, "snapshots"), store.SnapshotData{
		State: baseState, LastEventID: 10, SavedAt: now,
	}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	snapRecovered, _, err := store.RecoverSpec(snapDir)
	if err != nil {
		t.Fatalf("snapshot recover: %v", err)
	}

	if snapRecovered.LastEventID != fullState.LastEventID {
		t.Fatalf("last_event_id mismatch: snapshot-path=%d full-replay=%d", snapRecovered.LastEventID, fullState.LastEventID)
	}
	gotCard, _ := snapRecovered.Cards.Get(cardID)
	wantCard, _ := fullState.Cards.Get(cardID)
	if gotCard.Lane != wantCard.Lane || gotCard.Order != wantCard.Order {
		t.Errorf("card mismatch: got %+v, want %+v", gotCard, wantCard)
	}
}

func TestRecoverSpecRebuildsStaleIndex(t *testing.T) {
	specID := core.NewULID()
	specDir := filepath.Join(t.TempDir(), specID.String())
	os.MkdirAll(specDir, 0o755)

	now := time.Now().UTC()
	cardID := core.NewULID()
	events := []core.Event{
		{EventID: 1, SpecID: specID, Timestamp: now, Payload: core.SpecCreatedPayload{Title: "Board", OneLiner: "o", Goal: "g"}},
		{EventID: 2, SpecID: specID, Timestamp: now, Payload: core.CardCreatedPayload{Card: core.NewCard(cardID, core.CardTypeIdea, "A", nil, "human", now)}},
		{EventID: 3, SpecID: specID, Timestamp: now, Payload: core.CardMovedPayload{CardID: cardID, Lane: "Plan", Order: 2.0}},
	}
	writeEvents(t, specDir, specID, events)

	_, _, err := store.RecoverSpec(specDir)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	idx, err := store.OpenSqlite(filepath.Join(specDir, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	specs, err := idx.ListSpecs()
	if err != nil || len(specs) != 1 || specs[0].Title != "Board" {
		t.Fatalf("specs after rebuild: %+v, err=%v", specs, err)
	}
	cards, err := idx.ListCards(specID.String())
	if err != nil || len(cards) != 1 || cards[0].Lane != "Plan" || cards[0].SortOrder != 2.0 {
		t.Fatalf("cards after rebuild: %+v, err=%v", cards, err)
	}
}
