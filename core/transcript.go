package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// MessageKind distinguishes chat bubbles from compact agent-step status
// lines in the transcript.
type MessageKind int

const (
	MessageKindChat MessageKind = iota
	MessageKindStepStarted
	MessageKindStepFinished
)

// IsStep reports whether this kind renders as a compact status line rather
// than a chat bubble.
func (k MessageKind) IsStep() bool {
	return k == MessageKindStepStarted || k == MessageKindStepFinished
}

// Prefix returns the text prefix a step-kind message is rendered with.
func (k MessageKind) Prefix() string {
	switch k {
	case MessageKindStepStarted:
		return "[step started] "
	case MessageKindStepFinished:
		return "[step finished] "
	default:
		return ""
	}
}

func (k MessageKind) String() string {
	switch k {
	case MessageKindStepStarted:
		return "step_started"
	case MessageKindStepFinished:
		return "step_finished"
	default:
		return "chat"
	}
}

func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON defaults an absent or unrecognised kind to Chat, matching
// the wire-format backward-compatibility rule: older transcripts without a
// kind field are chat messages.
func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "step_started":
		*k = MessageKindStepStarted
	case "step_finished":
		*k = MessageKindStepFinished
	default:
		*k = MessageKindChat
	}
	return nil
}

// TranscriptMessage is one line of the spec's shared conversation: a human
// message, an agent narration, or a compact step status.
type TranscriptMessage struct {
	MessageID ulid.ULID   `json:"message_id"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewTranscriptMessage builds a Chat-kind message with a fresh id.
func NewTranscriptMessage(sender, content string, at time.Time) TranscriptMessage {
	return TranscriptMessage{
		MessageID: NewULID(),
		Sender:    sender,
		Content:   content,
		Kind:      MessageKindChat,
		Timestamp: at,
	}
}

// UserQuestion is a closed tagged union of the question shapes a collaborator
// may pose to a human. The private seal method prevents external packages
// from adding variants.
type UserQuestion interface {
	QuestionType() string
	QuestionID() ulid.ULID
	questionSeal()
}

type BooleanQuestion struct {
	QID      ulid.ULID `json:"question_id"`
	Question string    `json:"question"`
	Default  *bool     `json:"default,omitempty"`
}

func (q BooleanQuestion) QuestionType() string  { return "boolean" }
func (q BooleanQuestion) QuestionID() ulid.ULID { return q.QID }
func (BooleanQuestion) questionSeal()           {}

type MultipleChoiceQuestion struct {
	QID        ulid.ULID `json:"question_id"`
	Question   string    `json:"question"`
	Choices    []string  `json:"choices"`
	AllowMulti bool      `json:"allow_multi"`
}

func (q MultipleChoiceQuestion) QuestionType() string  { return "multiple_choice" }
func (q MultipleChoiceQuestion) QuestionID() ulid.ULID { return q.QID }
func (MultipleChoiceQuestion) questionSeal()           {}

type FreeformQuestion struct {
	QID            ulid.ULID `json:"question_id"`
	Question       string    `json:"question"`
	Placeholder    *string   `json:"placeholder,omitempty"`
	ValidationHint *string   `json:"validation_hint,omitempty"`
}

func (q FreeformQuestion) QuestionType() string  { return "freeform" }
func (q FreeformQuestion) QuestionID() ulid.ULID { return q.QID }
func (FreeformQuestion) questionSeal()           {}

// MarshalUserQuestion renders a UserQuestion with an injected "type" tag.
func MarshalUserQuestion(q UserQuestion) ([]byte, error) {
	if q == nil {
		return []byte("null"), nil
	}
	return marshalTagged(q.QuestionType(), q)
}

// UnmarshalUserQuestion parses a tagged question object into its concrete
// variant.
func UnmarshalUserQuestion(data []byte) (UserQuestion, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "boolean":
		var q BooleanQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, err
		}
		return q, nil
	case "multiple_choice":
		var q MultipleChoiceQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, err
		}
		return q, nil
	case "freeform":
		var q FreeformQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", tag.Type)
	}
}
