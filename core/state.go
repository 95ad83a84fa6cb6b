package core

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// UndoEntry is an inverse payload captured at mutation time so a later Undo
// command can reverse it.
type UndoEntry struct {
	EventID uint64
	Inverse []EventPayload
}

type undoEntryJSON struct {
	EventID uint64            `json:"event_id"`
	Inverse []json.RawMessage `json:"inverse"`
}

func (u UndoEntry) MarshalJSON() ([]byte, error) {
	inverses := make([]json.RawMessage, 0, len(u.Inverse))
	for _, p := range u.Inverse {
		raw, err := MarshalEventPayload(p)
		if err != nil {
			return nil, err
		}
		inverses = append(inverses, raw)
	}
	return json.Marshal(undoEntryJSON{EventID: u.EventID, Inverse: inverses})
}

func (u *UndoEntry) UnmarshalJSON(data []byte) error {
	var wire undoEntryJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	u.EventID = wire.EventID
	u.Inverse = make([]EventPayload, 0, len(wire.Inverse))
	for _, raw := range wire.Inverse {
		p, err := UnmarshalEventPayload(raw)
		if err != nil {
			return err
		}
		u.Inverse = append(u.Inverse, p)
	}
	return nil
}

// SpecState is the materialised fold of a spec's event log.
type SpecState struct {
	Core            *SpecCore
	Cards           *OrderedMap[ulid.ULID, Card]
	Transcript      []TranscriptMessage
	PendingQuestion UserQuestion
	UndoStack       []UndoEntry
	LastEventID     uint64
	Lanes           []string
}

// NewSpecState returns an empty state with the default lane set.
func NewSpecState() *SpecState {
	return &SpecState{
		Cards:      NewOrderedMap[ulid.ULID, Card](),
		Transcript: []TranscriptMessage{},
		UndoStack:  []UndoEntry{},
		Lanes:      DefaultLanes(),
	}
}

type specStateJSON struct {
	Core            *SpecCore           `json:"core"`
	Cards           map[string]Card     `json:"cards"`
	Transcript      []TranscriptMessage `json:"transcript"`
	PendingQuestion json.RawMessage     `json:"pending_question"`
	UndoStack       []UndoEntry         `json:"undo_stack"`
	LastEventID     uint64              `json:"last_event_id"`
	Lanes           []string            `json:"lanes"`
}

func (s *SpecState) MarshalJSON() ([]byte, error) {
	cards := make(map[string]Card, s.Cards.Len())
	s.Cards.Range(func(k ulid.ULID, v Card) bool {
		cards[k.String()] = v
		return true
	})
	pending, err := MarshalUserQuestion(s.PendingQuestion)
	if err != nil {
		return nil, err
	}
	return json.Marshal(specStateJSON{
		Core: s.Core, Cards: cards, Transcript: s.Transcript,
		PendingQuestion: pending, UndoStack: s.UndoStack,
		LastEventID: s.LastEventID, Lanes: s.Lanes,
	})
}

func (s *SpecState) UnmarshalJSON(data []byte) error {
	var wire specStateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Core = wire.Core
	s.Cards = NewOrderedMap[ulid.ULID, Card]()
	for k, v := range wire.Cards {
		id, err := ulid.Parse(k)
		if err != nil {
			return err
		}
		s.Cards.Set(id, v)
	}
	s.Transcript = wire.Transcript
	if s.Transcript == nil {
		s.Transcript = []TranscriptMessage{}
	}
	if len(wire.PendingQuestion) > 0 {
		q, err := UnmarshalUserQuestion(wire.PendingQuestion)
		if err != nil {
			return err
		}
		s.PendingQuestion = q
	}
	s.UndoStack = wire.UndoStack
	if s.UndoStack == nil {
		s.UndoStack = []UndoEntry{}
	}
	s.LastEventID = wire.LastEventID
	s.Lanes = wire.Lanes
	if s.Lanes == nil {
		s.Lanes = DefaultLanes()
	}
	return nil
}

// Clone returns a deep-enough copy of the state safe to retain and mutate
// independently of the live state -- the contract ReadState's callback
// requires of anything it wants to keep after returning.
func (s *SpecState) Clone() *SpecState {
	clone := &SpecState{
		Cards:       s.Cards.Clone(),
		Transcript:  append([]TranscriptMessage(nil), s.Transcript...),
		UndoStack:   append([]UndoEntry(nil), s.UndoStack...),
		LastEventID: s.LastEventID,
		Lanes:       append([]string(nil), s.Lanes...),
	}
	if s.Core != nil {
		core := *s.Core
		clone.Core = &core
	}
	clone.PendingQuestion = s.PendingQuestion
	return clone
}

func strPtr(s string) *string { return &s }

// Apply folds one event into the state, pushing an undo entry for
// reversible mutations (card create/update/move/delete).
func (s *SpecState) Apply(event *Event) {
	s.LastEventID = event.EventID
	s.applyPayload(event.Payload, event.SpecID, event.Timestamp, true)
}

// applyWithoutUndo applies a payload without pushing a new undo entry; it is
// used internally to replay the inverse payloads of an UndoApplied event.
func (s *SpecState) applyWithoutUndo(payload EventPayload, specID ulid.ULID, at time.Time) {
	s.applyPayload(payload, specID, at, false)
}

func (s *SpecState) applyPayload(payload EventPayload, specID ulid.ULID, at time.Time, pushUndo bool) {
	switch p := payload.(type) {
	case SpecCreatedPayload:
		core := NewSpecCore(specID, p.Title, p.OneLiner, p.Goal, at)
		s.Core = &core

	case SpecCoreUpdatedPayload:
		if s.Core == nil {
			return
		}
		if p.Title != nil {
			s.Core.Title = *p.Title
		}
		if p.OneLiner != nil {
			s.Core.OneLiner = *p.OneLiner
		}
		if p.Goal != nil {
			s.Core.Goal = *p.Goal
		}
		if p.Description != nil {
			s.Core.Description = p.Description
		}
		if p.Constraints != nil {
			s.Core.Constraints = p.Constraints
		}
		if p.SuccessCriteria != nil {
			s.Core.SuccessCriteria = p.SuccessCriteria
		}
		if p.Risks != nil {
			s.Core.Risks = p.Risks
		}
		if p.Notes != nil {
			s.Core.Notes = p.Notes
		}

	case CardCreatedPayload:
		s.Cards.Set(p.Card.CardID, p.Card)
		if pushUndo {
			s.pushUndo(CardDeletedPayload{CardID: p.Card.CardID})
		}

	case CardUpdatedPayload:
		old, ok := s.Cards.Get(p.CardID)
		if !ok {
			return
		}
		inverse := CardUpdatedPayload{CardID: p.CardID}
		updated := old.Clone()
		if p.Title != nil {
			inverse.Title = strPtr(old.Title)
			updated.Title = *p.Title
		}
		if p.Body.Set {
			inverse.Body = boolBody(old.Body)
			if p.Body.Valid {
				updated.Body = strPtr(p.Body.Value)
			} else {
				updated.Body = nil
			}
		}
		if p.CardType != nil {
			inverse.CardType = strPtr(old.CardType)
			updated.CardType = *p.CardType
		}
		if p.Refs != nil {
			oldRefs := append([]string(nil), old.Refs...)
			inverse.Refs = &oldRefs
			updated.Refs = append([]string(nil), (*p.Refs)...)
		}
		s.Cards.Set(p.CardID, updated)
		if pushUndo {
			s.pushUndo(inverse)
		}

	case CardMovedPayload:
		old, ok := s.Cards.Get(p.CardID)
		if !ok {
			return
		}
		inverse := CardMovedPayload{CardID: p.CardID, Lane: old.Lane, Order: old.Order}
		old.Lane = p.Lane
		old.Order = p.Order
		s.Cards.Set(p.CardID, old)
		if pushUndo {
			s.pushUndo(inverse)
		}

	case CardDeletedPayload:
		old, ok := s.Cards.Get(p.CardID)
		if !ok {
			return
		}
		s.Cards.Delete(p.CardID)
		if pushUndo {
			s.pushUndo(CardCreatedPayload{Card: old.Clone()})
		}

	case TranscriptAppendedPayload:
		s.Transcript = append(s.Transcript, p.Message)

	case QuestionAskedPayload:
		s.PendingQuestion = p.Question

	case QuestionAnsweredPayload:
		s.PendingQuestion = nil
		s.Transcript = append(s.Transcript, TranscriptMessage{
			MessageID: p.QuestionID,
			Sender:    "human",
			Content:   p.Answer,
			Kind:      MessageKindChat,
			Timestamp: at,
		})

	case AgentStepStartedPayload:
		s.Transcript = append(s.Transcript, TranscriptMessage{
			MessageID: NewULID(),
			Sender:    p.AgentID,
			Content:   MessageKindStepStarted.Prefix() + p.Description,
			Kind:      MessageKindStepStarted,
			Timestamp: at,
		})

	case AgentStepFinishedPayload:
		s.Transcript = append(s.Transcript, TranscriptMessage{
			MessageID: NewULID(),
			Sender:    p.AgentID,
			Content:   MessageKindStepFinished.Prefix() + p.DiffSummary,
			Kind:      MessageKindStepFinished,
			Timestamp: at,
		})

	case UndoAppliedPayload:
		if n := len(s.UndoStack); n > 0 {
			s.UndoStack = s.UndoStack[:n-1]
		}
		for _, inv := range p.InverseEvents {
			s.applyWithoutUndo(inv, specID, at)
		}

	case SnapshotWrittenPayload:
		// no-op on state

	default:
		// unknown payload: ignore, closed union guards this in practice
	}
}

func (s *SpecState) pushUndo(inverse EventPayload) {
	s.UndoStack = append(s.UndoStack, UndoEntry{
		EventID: s.LastEventID,
		Inverse: []EventPayload{inverse},
	})
}

func boolBody(b *string) OptionalField[string] {
	if b == nil {
		return Null[string]()
	}
	return Present(*b)
}
