package core_test

import (
	"testing"

	"github.com/2389-research/specloom/core"
)

func TestOptionalFieldStates(t *testing.T) {
	if a := core.Absent[string](); a.Set || a.Valid {
		t.Errorf("Absent() should be unset and invalid, got %+v", a)
	}
	if n := core.Null[string](); !n.Set || n.Valid {
		t.Errorf("Null() should be set and invalid, got %+v", n)
	}
	if p := core.Present("hi"); !p.Set || !p.Valid || p.Value != "hi" {
		t.Errorf("Present() mismatch: %+v", p)
	}
}

type wrapper struct {
	Body core.OptionalField[string] `json:"body,omitempty"`
}

func TestOptionalFieldRoundTrip(t *testing.T) {
	present := core.Present("hello")
	data, err := present.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"hello"` {
		t.Errorf("got %s, want \"hello\"", data)
	}

	var back core.OptionalField[string]
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Set || !back.Valid || back.Value != "hello" {
		t.Errorf("round trip mismatch: %+v", back)
	}

	var nullField core.OptionalField[string]
	if err := nullField.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !nullField.Set || nullField.Valid {
		t.Errorf("null should be Set && !Valid, got %+v", nullField)
	}
}
