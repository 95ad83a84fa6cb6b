package core

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrSpecNotCreated is returned for any update that requires an
	// existing spec core.
	ErrSpecNotCreated = errors.New("spec not created")
	// ErrQuestionAlreadyPending is returned when AskQuestion arrives while
	// a question is already pending.
	ErrQuestionAlreadyPending = errors.New("a question is already pending")
	// ErrNoPendingQuestion is returned when AnswerQuestion arrives with no
	// question outstanding.
	ErrNoPendingQuestion = errors.New("no question is pending")
	// ErrNothingToUndo is returned when Undo is submitted with an empty
	// undo stack.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrChannelClosed is returned when a command is submitted after the
	// actor has exited.
	ErrChannelClosed = errors.New("actor channel closed")
	// ErrActorBusy reports a full command queue. SendCommand never returns
	// it: SendCommand blocks until the queue has room.
	ErrActorBusy = errors.New("actor command queue is full")
	// ErrUnknownCommand is returned for a Command value outside the known
	// variants (should not occur given the closed interface, but guards
	// against a nil Command).
	ErrUnknownCommand = errors.New("unknown command")
)

// CardNotFoundError is returned when a command references a card id that
// does not exist in the spec's current state.
type CardNotFoundError struct {
	CardID ulid.ULID
}

func (e CardNotFoundError) Error() string {
	return fmt.Sprintf("card not found: %s", e.CardID)
}

// QuestionIDMismatchError is returned when AnswerQuestion's question id does
// not match the currently pending question.
type QuestionIDMismatchError struct {
	Expected ulid.ULID
	Got      ulid.ULID
}

func (e QuestionIDMismatchError) Error() string {
	return fmt.Sprintf("question id mismatch: expected %s, got %s", e.Expected, e.Got)
}
