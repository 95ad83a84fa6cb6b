package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/2389-research/specloom/core"
)

func TestEventRoundTripByteEqual(t *testing.T) {
	specID := core.NewULID()
	event := core.Event{
		EventID:   7,
		SpecID:    specID,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Payload: core.CardCreatedPayload{
			Card: core.NewCard(core.NewULID(), core.CardTypeIdea, "Title", nil, "human", time.Now().UTC()),
		},
	}

	first, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded core.Event
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	second, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("round trip not byte-equal:\n%s\n%s", first, second)
	}
}

func TestCardUpdatedPayloadDistinguishesAbsentNullPresent(t *testing.T) {
	cardID := core.NewULID()

	absent := core.CardUpdatedPayload{CardID: cardID}
	data, err := json.Marshal(absent)
	if err != nil {
		t.Fatalf("marshal absent: %v", err)
	}
	var back core.CardUpdatedPayload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal absent: %v", err)
	}
	if back.Body.Set {
		t.Errorf("absent body should not be Set after round trip, got %+v", back.Body)
	}

	nulled := core.CardUpdatedPayload{CardID: cardID, Body: core.Null[string]()}
	data, err = json.Marshal(nulled)
	if err != nil {
		t.Fatalf("marshal null: %v", err)
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !back.Body.Set || back.Body.Valid {
		t.Errorf("explicit null body should be Set && !Valid, got %+v", back.Body)
	}

	present := core.CardUpdatedPayload{CardID: cardID, Body: core.Present("new body")}
	data, err = json.Marshal(present)
	if err != nil {
		t.Fatalf("marshal present: %v", err)
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal present: %v", err)
	}
	if !back.Body.Set || !back.Body.Valid || back.Body.Value != "new body" {
		t.Errorf("present body mismatch: %+v", back.Body)
	}
}

func TestUnknownEventPayloadTypeErrors(t *testing.T) {
	_, err := core.UnmarshalEventPayload([]byte(`{"type":"not_a_real_type"}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognised payload type")
	}
}
