package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/store"
)

func TestSqliteIndexRebuildMatchesLiveState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	idx, err := store.OpenSqlite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	specID := core.NewULID()
	cardID := core.NewULID()
	now := time.Now().UTC()

	events := []core.Event{
		{EventID: 1, SpecID: specID, Timestamp: now, Payload: core.SpecCreatedPayload{Title: "Board", OneLiner: "o", Goal: "g"}},
		{EventID: 2, SpecID: specID, Timestamp: now, Payload: core.CardCreatedPayload{Card: core.NewCard(cardID, core.CardTypeIdea, "A card", nil, "human", now)}},
		{EventID: 3, SpecID: specID, Timestamp: now, Payload: core.CardMovedPayload{CardID: cardID, Lane: "Plan", Order: 2.0}},
	}

	if err := idx.RebuildFromEvents(events); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	specs, err := idx.ListSpecs()
	if err != nil {
		t.Fatalf("list specs: %v", err)
	}
	if len(specs) != 1 || specs[0].Title != "Board" {
		t.Fatalf("unexpected specs: %+v", specs)
	}

	cards, err := idx.ListCards(specID.String())
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 1 || cards[0].Lane != "Plan" || cards[0].SortOrder != 2.0 {
		t.Fatalf("unexpected cards: %+v", cards)
	}

	lastID, ok, err := idx.GetLastEventID()
	if err != nil || !ok || lastID != 3 {
		t.Fatalf("last event id: got %d ok=%v err=%v", lastID, ok, err)
	}
}

func TestSqliteIndexDeleteCard(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	idx, err := store.OpenSqlite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	specID := core.NewULID()
	card := core.NewCard(core.NewULID(), core.CardTypeIdea, "A", nil, "human", time.Now().UTC())
	if err := idx.UpdateCard(specID.String(), card); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.DeleteCard(card.CardID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cards, err := idx.ListCards(specID.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("expected no cards after delete, got %d", len(cards))
	}
}
