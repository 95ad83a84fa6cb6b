package core

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Command is the closed tagged union of requests a collaborator may submit
// to a spec actor.
type Command interface {
	CommandType() string
	commandSeal()
}

type CreateSpecCommand struct {
	Title    string `json:"title"`
	OneLiner string `json:"one_liner"`
	Goal     string `json:"goal"`
}

func (CreateSpecCommand) CommandType() string { return "create_spec" }
func (CreateSpecCommand) commandSeal()         {}

type UpdateSpecCoreCommand struct {
	Title           *string `json:"title,omitempty"`
	OneLiner        *string `json:"one_liner,omitempty"`
	Goal            *string `json:"goal,omitempty"`
	Description     *string `json:"description,omitempty"`
	Constraints     *string `json:"constraints,omitempty"`
	SuccessCriteria *string `json:"success_criteria,omitempty"`
	Risks           *string `json:"risks,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

func (UpdateSpecCoreCommand) CommandType() string { return "update_spec_core" }
func (UpdateSpecCoreCommand) commandSeal()         {}

type CreateCardCommand struct {
	CardType  string  `json:"card_type"`
	Title     string  `json:"title"`
	Body      *string `json:"body,omitempty"`
	Lane      *string `json:"lane,omitempty"`
	CreatedBy string  `json:"created_by"`
}

func (CreateCardCommand) CommandType() string { return "create_card" }
func (CreateCardCommand) commandSeal()         {}

type UpdateCardCommand struct {
	CardID    ulid.ULID             `json:"card_id"`
	Title     *string               `json:"title,omitempty"`
	Body      OptionalField[string] `json:"-"`
	CardType  *string               `json:"card_type,omitempty"`
	Refs      *[]string             `json:"refs,omitempty"`
	UpdatedBy string                `json:"updated_by"`
}

func (UpdateCardCommand) CommandType() string { return "update_card" }
func (UpdateCardCommand) commandSeal()         {}

func (c UpdateCardCommand) MarshalJSON() ([]byte, error) {
	return marshalUpdateCard(c)
}

func (c *UpdateCardCommand) UnmarshalJSON(data []byte) error {
	return unmarshalUpdateCard(data, c)
}

type MoveCardCommand struct {
	CardID ulid.ULID `json:"card_id"`
	Lane   string    `json:"lane"`
	Order  float64   `json:"order"`
}

func (MoveCardCommand) CommandType() string { return "move_card" }
func (MoveCardCommand) commandSeal()         {}

type DeleteCardCommand struct {
	CardID ulid.ULID `json:"card_id"`
}

func (DeleteCardCommand) CommandType() string { return "delete_card" }
func (DeleteCardCommand) commandSeal()         {}

type AppendTranscriptCommand struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func (AppendTranscriptCommand) CommandType() string { return "append_transcript" }
func (AppendTranscriptCommand) commandSeal()         {}

type AskQuestionCommand struct {
	Question UserQuestion `json:"-"`
}

func (AskQuestionCommand) CommandType() string { return "ask_question" }
func (AskQuestionCommand) commandSeal()         {}

func (c AskQuestionCommand) MarshalJSON() ([]byte, error) {
	return marshalAskQuestion(c)
}

func (c *AskQuestionCommand) UnmarshalJSON(data []byte) error {
	return unmarshalAskQuestion(data, c)
}

type AnswerQuestionCommand struct {
	QuestionID ulid.ULID `json:"question_id"`
	Answer     string    `json:"answer"`
}

func (AnswerQuestionCommand) CommandType() string { return "answer_question" }
func (AnswerQuestionCommand) commandSeal()         {}

type StartAgentStepCommand struct {
	AgentID     string `json:"agent_id"`
	Description string `json:"description"`
}

func (StartAgentStepCommand) CommandType() string { return "start_agent_step" }
func (StartAgentStepCommand) commandSeal()         {}

type FinishAgentStepCommand struct {
	AgentID     string `json:"agent_id"`
	DiffSummary string `json:"diff_summary"`
}

func (FinishAgentStepCommand) CommandType() string { return "finish_agent_step" }
func (FinishAgentStepCommand) commandSeal()         {}

type UndoCommand struct{}

func (UndoCommand) CommandType() string { return "undo" }
func (UndoCommand) commandSeal()         {}

// MarshalCommand renders a Command with an injected "type" tag.
func MarshalCommand(c Command) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return marshalTagged(c.CommandType(), c)
}

// UnmarshalCommand parses a tagged command object into its concrete variant.
func UnmarshalCommand(data []byte) (Command, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "create_spec":
		var c CreateSpecCommand
		return c, json.Unmarshal(data, &c)
	case "update_spec_core":
		var c UpdateSpecCoreCommand
		return c, json.Unmarshal(data, &c)
	case "create_card":
		var c CreateCardCommand
		return c, json.Unmarshal(data, &c)
	case "update_card":
		var c UpdateCardCommand
		return c, json.Unmarshal(data, &c)
	case "move_card":
		var c MoveCardCommand
		return c, json.Unmarshal(data, &c)
	case "delete_card":
		var c DeleteCardCommand
		return c, json.Unmarshal(data, &c)
	case "append_transcript":
		var c AppendTranscriptCommand
		return c, json.Unmarshal(data, &c)
	case "ask_question":
		var c AskQuestionCommand
		return c, json.Unmarshal(data, &c)
	case "answer_question":
		var c AnswerQuestionCommand
		return c, json.Unmarshal(data, &c)
	case "start_agent_step":
		var c StartAgentStepCommand
		return c, json.Unmarshal(data, &c)
	case "finish_agent_step":
		var c FinishAgentStepCommand
		return c, json.Unmarshal(data, &c)
	case "undo":
		var c UndoCommand
		return c, json.Unmarshal(data, &c)
	default:
		return nil, fmt.Errorf("unknown command type %q", tag.Type)
	}
}

type updateCardJSON struct {
	CardID    ulid.ULID       `json:"card_id"`
	Title     *string         `json:"title,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
	CardType  *string         `json:"card_type,omitempty"`
	Refs      *[]string       `json:"refs,omitempty"`
	UpdatedBy string          `json:"updated_by"`
}

func marshalUpdateCard(c UpdateCardCommand) ([]byte, error) {
	wire := updateCardJSON{
		CardID: c.CardID, Title: c.Title, CardType: c.CardType,
		Refs: c.Refs, UpdatedBy: c.UpdatedBy,
	}
	if c.Body.Set {
		raw, err := c.Body.MarshalJSON()
		if err != nil {
			return nil, err
		}
		wire.Body = raw
	}
	return json.Marshal(wire)
}

// unmarshalUpdateCard uses a raw field map so the difference between an
// absent "body" key and an explicit "body": null can be distinguished.
func unmarshalUpdateCard(data []byte, c *UpdateCardCommand) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["card_id"]; ok {
		if err := json.Unmarshal(v, &c.CardID); err != nil {
			return err
		}
	}
	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &c.Title); err != nil {
			return err
		}
	}
	if v, ok := raw["card_type"]; ok {
		if err := json.Unmarshal(v, &c.CardType); err != nil {
			return err
		}
	}
	if v, ok := raw["refs"]; ok {
		if err := json.Unmarshal(v, &c.Refs); err != nil {
			return err
		}
	}
	if v, ok := raw["updated_by"]; ok {
		if err := json.Unmarshal(v, &c.UpdatedBy); err != nil {
			return err
		}
	}
	if v, ok := raw["body"]; ok {
		if err := c.Body.UnmarshalJSON(v); err != nil {
			return err
		}
	} else {
		c.Body = Absent[string]()
	}
	return nil
}

func marshalAskQuestion(c AskQuestionCommand) ([]byte, error) {
	q, err := MarshalUserQuestion(c.Question)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Question json.RawMessage `json:"question"`
	}{Question: q})
}

func unmarshalAskQuestion(data []byte, c *AskQuestionCommand) error {
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
	c.Question = q
	return nil
}
