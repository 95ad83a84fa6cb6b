package core

import "encoding/json"

// OptionalField distinguishes three JSON states for a field: absent from the
// payload entirely, present and explicitly null, or present with a value.
// This is used wherever a partial-update command needs to tell "don't touch
// this field" apart from "clear this field" (UpdateCard.Body being the
// motivating case).
type OptionalField[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Absent represents a field that was not mentioned at all.
func Absent[T any]() OptionalField[T] {
	return OptionalField[T]{}
}

// Null represents a field explicitly set to JSON null.
func Null[T any]() OptionalField[T] {
	return OptionalField[T]{Set: true}
}

// Present represents a field explicitly set to a value.
func Present[T any](v T) OptionalField[T] {
	return OptionalField[T]{Set: true, Valid: true, Value: v}
}

// MarshalJSON renders Present as the value, Null as JSON null, and Absent
// as JSON null too (callers that need to omit the field entirely must check
// Set themselves before including it in a surrounding struct's map/fields).
func (o OptionalField[T]) MarshalJSON() ([]byte, error) {
	if o.Set && o.Valid {
		return json.Marshal(o.Value)
	}
	return []byte("null"), nil
}

// UnmarshalJSON marks the field Set and, unless the payload is the literal
// null, Valid with the decoded value.
func (o *OptionalField[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Valid = false
		var zero T
		o.Value = zero
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Valid = true
	o.Value = v
	return nil
}
