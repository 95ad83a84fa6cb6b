package core_test

import (
	"encoding/json"
	"testing"

	"github.com/2389-research/specloom/core"
)

func TestOrderedMapIterationOrderIsKeySorted(t *testing.T) {
	m := core.NewOrderedMap[ulidKey, string]()
	ids := []ulidKey{"c", "a", "b"}
	for _, id := range ids {
		m.Set(id, string(id))
	}

	keys := m.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("expected sorted keys [a b c], got %v", keys)
	}
}

func TestOrderedMapDeleteRemovesFromKeyOrder(t *testing.T) {
	m := core.NewOrderedMap[ulidKey, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Delete("a")

	if m.Len() != 1 {
		t.Fatalf("expected len 1, got %d", m.Len())
	}
	if _, ok := m.Get("a"); ok {
		t.Error("a should be gone")
	}
	if keys := m.Keys(); len(keys) != 1 || keys[0] != "b" {
		t.Errorf("expected [b], got %v", keys)
	}
}

func TestOrderedMapMarshalJSONIsDeterministic(t *testing.T) {
	m := core.NewOrderedMap[ulidKey, int]()
	m.Set("z", 26)
	m.Set("a", 1)

	first, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("marshal not deterministic: %s vs %s", first, second)
	}
	if string(first) != `{"a":1,"z":26}` {
		t.Errorf("got %s", first)
	}
}

// ulidKey satisfies core.Stringer with plain strings, standing in for
// ulid.ULID in tests that don't need a real identifier.
type ulidKey string

func (k ulidKey) String() string { return string(k) }
