package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the envelope around one materialised mutation of a spec.
type Event struct {
	EventID   uint64
	SpecID    ulid.ULID
	Timestamp time.Time
	Payload   EventPayload
}

type eventJSON struct {
	EventID   uint64          `json:"event_id"`
	SpecID    ulid.ULID       `json:"spec_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := MarshalEventPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventJSON{
		EventID:   e.EventID,
		SpecID:    e.SpecID,
		Timestamp: e.Timestamp,
		Payload:   payload,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	payload, err := UnmarshalEventPayload(wire.Payload)
	if err != nil {
		return err
	}
	e.EventID = wire.EventID
	e.SpecID = wire.SpecID
	e.Timestamp = wire.Timestamp
	e.Payload = payload
	return nil
}

// EventPayload is the closed tagged union of everything that can happen to
// a spec. The private seal method keeps the set of variants closed to this
// package.
type EventPayload interface {
	EventPayloadType() string
	eventPayloadSeal()
}

type SpecCreatedPayload struct {
	Title    string `json:"title"`
	OneLiner string `json:"one_liner"`
	Goal     string `json:"goal"`
}

func (SpecCreatedPayload) EventPayloadType() string { return "spec_created" }
func (SpecCreatedPayload) eventPayloadSeal()         {}

type SpecCoreUpdatedPayload struct {
	Title           *string `json:"title,omitempty"`
	OneLiner        *string `json:"one_liner,omitempty"`
	Goal            *string `json:"goal,omitempty"`
	Description     *string `json:"description,omitempty"`
	Constraints     *string `json:"constraints,omitempty"`
	SuccessCriteria *string `json:"success_criteria,omitempty"`
	Risks           *string `json:"risks,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

func (SpecCoreUpdatedPayload) EventPayloadType() string { return "spec_core_updated" }
func (SpecCoreUpdatedPayload) eventPayloadSeal()         {}

type CardCreatedPayload struct {
	Card Card `json:"card"`
}

func (CardCreatedPayload) EventPayloadType() string { return "card_created" }
func (CardCreatedPayload) eventPayloadSeal()         {}

type CardUpdatedPayload struct {
	CardID   ulid.ULID              `json:"card_id"`
	Title    *string                `json:"title,omitempty"`
	Body     OptionalField[string]  `json:"-"`
	CardType *string                `json:"card_type,omitempty"`
	Refs     *[]string              `json:"refs,omitempty"`
}

func (CardUpdatedPayload) EventPayloadType() string { return "card_updated" }
func (CardUpdatedPayload) eventPayloadSeal()         {}

type cardUpdatedJSON struct {
	CardID   ulid.ULID       `json:"card_id"`
	Title    *string         `json:"title,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
	CardType *string         `json:"card_type,omitempty"`
	Refs     *[]string       `json:"refs,omitempty"`
}

func (p CardUpdatedPayload) MarshalJSON() ([]byte, error) {
	wire := cardUpdatedJSON{CardID: p.CardID, Title: p.Title, CardType: p.CardType, Refs: p.Refs}
	if p.Body.Set {
		raw, err := p.Body.MarshalJSON()
		if err != nil {
			return nil, err
		}
		wire.Body = raw
	}
	return json.Marshal(wire)
}

func (p *CardUpdatedPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["card_id"]; ok {
		if err := json.Unmarshal(v, &p.CardID); err != nil {
			return err
		}
	}
	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &p.Title); err != nil {
			return err
		}
	}
	if v, ok := raw["card_type"]; ok {
		if err := json.Unmarshal(v, &p.CardType); err != nil {
			return err
		}
	}
	if v, ok := raw["refs"]; ok {
		if err := json.Unmarshal(v, &p.Refs); err != nil {
			return err
		}
	}
	if v, ok := raw["body"]; ok {
		if err := p.Body.UnmarshalJSON(v); err != nil {
			return err
		}
	} else {
		p.Body = Absent[string]()
	}
	return nil
}

type CardMovedPayload struct {
	CardID ulid.ULID `json:"card_id"`
	Lane   string    `json:"lane"`
	Order  float64   `json:"order"`
}

func (CardMovedPayload) EventPayloadType() string { return "card_moved" }
func (CardMovedPayload) eventPayloadSeal()         {}

type CardDeletedPayload struct {
	CardID ulid.ULID `json:"card_id"`
}

func (CardDeletedPayload) EventPayloadType() string { return "card_deleted" }
func (CardDeletedPayload) eventPayloadSeal()         {}

type TranscriptAppendedPayload struct {
	Message TranscriptMessage `json:"message"`
}

func (TranscriptAppendedPayload) EventPayloadType() string { return "transcript_appended" }
func (TranscriptAppendedPayload) eventPayloadSeal()         {}

type QuestionAskedPayload struct {
	Question UserQuestion `json:"-"`
}

func (QuestionAskedPayload) EventPayloadType() string { return "question_asked" }
func (QuestionAskedPayload) eventPayloadSeal()         {}

func (p QuestionAskedPayload) MarshalJSON() ([]byte, error) {
	q, err := MarshalUserQuestion(p.Question)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Question json.RawMessage `json:"question"`
	}{Question: q})
}

func (p *QuestionAskedPayload) UnmarshalJSON(data []byte) error {
	var wire struct {
		Question json.RawMessage `json:"question"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	q, err := UnmarshalUserQuestion(wire.Question)
	if err != nil {
		return err
	}
	p.Question = q
	return nil
}

type QuestionAnsweredPayload struct {
	QuestionID ulid.ULID `json:"question_id"`
	Answer     string    `json:"answer"`
}

func (QuestionAnsweredPayload) EventPayloadType() string { return "question_answered" }
func (QuestionAnsweredPayload) eventPayloadSeal()         {}

type AgentStepStartedPayload struct {
	AgentID     string `json:"agent_id"`
	Description string `json:"description"`
}

func (AgentStepStartedPayload) EventPayloadType() string { return "agent_step_started" }
func (AgentStepStartedPayload) eventPayloadSeal()         {}

type AgentStepFinishedPayload struct {
	AgentID     string `json:"agent_id"`
	DiffSummary string `json:"diff_summary"`
}

func (AgentStepFinishedPayload) EventPayloadType() string { return "agent_step_finished" }
func (AgentStepFinishedPayload) eventPayloadSeal()         {}

type UndoAppliedPayload struct {
	TargetEventID uint64         `json:"target_event_id"`
	InverseEvents []EventPayload `json:"-"`
}

func (UndoAppliedPayload) EventPayloadType() string { return "undo_applied" }
func (UndoAppliedPayload) eventPayloadSeal()         {}

func (p UndoAppliedPayload) MarshalJSON() ([]byte, error) {
	inverses := make([]json.RawMessage, 0, len(p.InverseEvents))
	for _, inv := range p.InverseEvents {
		raw, err := MarshalEventPayload(inv)
		if err != nil {
			return nil, err
		}
		inverses = append(inverses, raw)
	}
	return json.Marshal(struct {
		TargetEventID uint64            `json:"target_event_id"`
		InverseEvents []json.RawMessage `json:"inverse_events"`
	}{TargetEventID: p.TargetEventID, InverseEvents: inverses})
}

func (p *UndoAppliedPayload) UnmarshalJSON(data []byte) error {
	var wire struct {
		TargetEventID uint64            `json:"target_event_id"`
		InverseEvents []json.RawMessage `json:"inverse_events"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.TargetEventID = wire.TargetEventID
	p.InverseEvents = make([]EventPayload, 0, len(wire.InverseEvents))
	for _, raw := range wire.InverseEvents {
		inv, err := UnmarshalEventPayload(raw)
		if err != nil {
			return err
		}
		p.InverseEvents = append(p.InverseEvents, inv)
	}
	return nil
}

type SnapshotWrittenPayload struct {
	SnapshotID uint64 `json:"snapshot_id"`
}

func (SnapshotWrittenPayload) EventPayloadType() string { return "snapshot_written" }
func (SnapshotWrittenPayload) eventPayloadSeal()         {}

// MarshalEventPayload renders an EventPayload with an injected "type" tag.
func MarshalEventPayload(p EventPayload) ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return marshalTagged(p.EventPayloadType(), p)
}

// UnmarshalEventPayload parses a tagged payload object into its concrete
// variant.
func UnmarshalEventPayload(data []byte) (EventPayload, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "spec_created":
		var p SpecCreatedPayload
		return p, json.Unmarshal(data, &p)
	case "spec_core_updated":
		var p SpecCoreUpdatedPayload
		return p, json.Unmarshal(data, &p)
	case "card_created":
		var p CardCreatedPayload
		return p, json.Unmarshal(data, &p)
	case "card_updated":
		var p CardUpdatedPayload
		return p, json.Unmarshal(data, &p)
	case "card_moved":
		var p CardMovedPayload
		return p, json.Unmarshal(data, &p)
	case "card_deleted":
		var p CardDeletedPayload
		return p, json.Unmarshal(data, &p)
	case "transcript_appended":
		var p TranscriptAppendedPayload
		return p, json.Unmarshal(data, &p)
	case "question_asked":
		var p QuestionAskedPayload
		return p, json.Unmarshal(data, &p)
	case "question_answered":
		var p QuestionAnsweredPayload
		return p, json.Unmarshal(data, &p)
	case "agent_step_started":
		var p AgentStepStartedPayload
		return p, json.Unmarshal(data, &p)
	case "agent_step_finished":
		var p AgentStepFinishedPayload
		return p, json.Unmarshal(data, &p)
	case "undo_applied":
		var p UndoAppliedPayload
		return p, json.Unmarshal(data, &p)
	case "snapshot_written":
		var p SnapshotWrittenPayload
		return p, json.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unknown event payload type %q", tag.Type)
	}
}
