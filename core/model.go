package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// SpecCore holds the narrative fields of a spec. It is created by the first
// SpecCreated event and thereafter mutated only through SpecCoreUpdated.
type SpecCore struct {
	SpecID          ulid.ULID `json:"spec_id"`
	Title           string    `json:"title"`
	OneLiner        string    `json:"one_liner"`
	Goal            string    `json:"goal"`
	Description     *string   `json:"description,omitempty"`
	Constraints     *string   `json:"constraints,omitempty"`
	SuccessCriteria *string   `json:"success_criteria,omitempty"`
	Risks           *string   `json:"risks,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSpecCore builds a fresh SpecCore with the required fields set and all
// optional narrative fields empty.
func NewSpecCore(specID ulid.ULID, title, oneLiner, goal string, at time.Time) SpecCore {
	return SpecCore{
		SpecID:    specID,
		Title:     title,
		OneLiner:  oneLiner,
		Goal:      goal,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Card type vocabulary. CardType is a free-form string; these constants name
// the known enumeration without closing it off to other values.
const (
	CardTypeIdea         = "idea"
	CardTypePlan         = "plan"
	CardTypeTask         = "task"
	CardTypeDecision     = "decision"
	CardTypeConstraint   = "constraint"
	CardTypeRisk         = "risk"
	CardTypeAssumption   = "assumption"
	CardTypeOpenQuestion = "open_question"
	CardTypeInspiration  = "inspiration"
	CardTypeVibes        = "vibes"
	CardTypeNote         = "note"
)

// KnownCardTypes lists the recognised card-type vocabulary, for callers that
// want to offer a closed choice (e.g. a picker UI) while the wire format
// itself stays open to unrecognised values.
func KnownCardTypes() []string {
	return []string{
		CardTypeIdea, CardTypePlan, CardTypeTask, CardTypeDecision,
		CardTypeConstraint, CardTypeRisk, CardTypeAssumption,
		CardTypeOpenQuestion, CardTypeInspiration, CardTypeVibes, CardTypeNote,
	}
}

// DefaultLane is the lane newly-created cards land in absent an explicit lane.
const DefaultLane = "Ideas"

// DefaultLanes is the board's default column set.
func DefaultLanes() []string {
	return []string{"Ideas", "Plan", "Done"}
}

// Card is one entry on the spec's kanban board.
type Card struct {
	CardID    ulid.ULID `json:"card_id"`
	CardType  string    `json:"card_type"`
	Title     string    `json:"title"`
	Body      *string   `json:"body,omitempty"`
	Lane      string    `json:"lane"`
	Order     float64   `json:"order"`
	Refs      []string  `json:"refs"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
}

// NewCard builds a card in the default lane at order 0, attributed to
// createdBy at the given instant.
func NewCard(cardID ulid.ULID, cardType, title string, body *string, createdBy string, at time.Time) Card {
	return Card{
		CardID:    cardID,
		CardType:  cardType,
		Title:     title,
		Body:      body,
		Lane:      DefaultLane,
		Order:     0.0,
		Refs:      []string{},
		CreatedAt: at,
		UpdatedAt: at,
		CreatedBy: createdBy,
		UpdatedBy: createdBy,
	}
}

// Clone returns a deep-enough copy of the card suitable for capturing as an
// undo inverse (refs slice and body pointer are copied, not shared).
func (c Card) Clone() Card {
	clone := c
	if c.Body != nil {
		body := *c.Body
		clone.Body = &body
	}
	if c.Refs != nil {
		clone.Refs = append([]string(nil), c.Refs...)
	}
	return clone
}
