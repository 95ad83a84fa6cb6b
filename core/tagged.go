package core

import "encoding/json"

// marshalTagged serialises v as a flat JSON object with a "type" field
// injected alongside v's own fields (externally tagged form). v must
// marshal to a JSON object on its own.
func marshalTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = mustMarshalString(tag)
	return json.Marshal(fields)
}

func mustMarshalString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
