package core_test

import (
	"testing"
	"time"

	"github.com/2389-research/specloom/core"
)

func TestSpawnActorCreateSpecAndReadState(t *testing.T) {
	specID := core.NewULID()
	handle := core.SpawnActor(specID, core.NewSpecState())

	events, err := handle.SendCommand(core.CreateSpecCommand{Title: "Smoke", OneLiner: "x", Goal: "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].EventID != 1 {
		t.Fatalf("expected one event with id 1, got %+v", events)
	}

	var title string
	var lastEventID uint64
	handle.ReadState(func(s *core.SpecState) {
		title = s.Core.Title
		lastEventID = s.LastEventID
	})
	if title != "Smoke" || lastEventID != 1 {
		t.Errorf("state mismatch: title=%q last_event_id=%d", title, lastEventID)
	}
}

func TestActorRejectsCardCommandsBeforeSpecCreated(t *testing.T) {
	handle := core.SpawnActor(core.NewULID(), core.NewSpecState())
	_, err := handle.SendCommand(core.CreateCardCommand{CardType: core.CardTypeIdea, Title: "A", CreatedBy: "human"})
	if err != core.ErrSpecNotCreated {
		t.Fatalf("expected ErrSpecNotCreated, got %v", err)
	}
}

func TestActorErrorLeavesStateUnchanged(t *testing.T) {
	handle := core.SpawnActor(core.NewULID(), core.NewSpecState())
	handle.SendCommand(core.CreateSpecCommand{Title: "S", OneLiner: "o", Goal: "g"})

	var before uint64
	handle.ReadState(func(s *core.SpecState) { before = s.LastEventID })

	_, err := handle.SendCommand(core.UndoCommand{})
	if err != core.ErrNothingToUndo {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}

	var after uint64
	handle.ReadState(func(s *core.SpecState) { after = s.LastEventID })
	if before != after {
		t.Errorf("state changed on error: before=%d after=%d", before, after)
	}
}

func TestQuestionGatingThroughActor(t *testing.T) {
	handle := core.SpawnActor(core.NewULID(), core.NewSpecState())
	handle.SendCommand(core.CreateSpecCommand{Title: "S", OneLiner: "o", Goal: "g"})

	qID := core.NewULID()
	_, err := handle.SendCommand(core.AskQuestionCommand{Question: core.FreeformQuestion{QID: qID, Question: "q1"}})
	if err != nil {
		t.Fatalf("first question should succeed: %v", err)
	}

	_, err = handle.SendCommand(core.AskQuestionCommand{Question: core.FreeformQuestion{QID: core.NewULID(), Question: "q2"}})
	if err != core.ErrQuestionAlreadyPending {
		t.Fatalf("expected ErrQuestionAlreadyPending, got %v", err)
	}

	_, err = handle.SendCommand(core.AnswerQuestionCommand{QuestionID: core.NewULID(), Answer: "wrong id"})
	if _, ok := err.(core.QuestionIDMismatchError); !ok {
		t.Fatalf("expected QuestionIDMismatchError, got %v", err)
	}

	_, err = handle.SendCommand(core.AnswerQuestionCommand{QuestionID: qID, Answer: "the answer"})
	if err != nil {
		t.Fatalf("matching answer should succeed: %v", err)
	}
}

func TestBroadcasterLagSignalling(t *testing.T) {
	b := core.NewEventBroadcaster()
	ch := b.Subscribe()

	specID := core.NewULID()
	// Fill and overflow the mailbox so the subscriber falls behind.
	for i := uint64(1); i <= 300; i++ {
		b.Broadcast(core.Event{EventID: i, SpecID: specID, Timestamp: time.Now().UTC(), Payload: core.SnapshotWrittenPayload{SnapshotID: i}})
	}

	var sawLag bool
	for i := 0; i < 300; i++ {
		select {
		case env := <-ch:
			if env.Lagged > 0 {
				sawLag = true
			}
		default:
			i = 300
		}
	}
	if !sawLag {
		t.Error("expected at least one envelope to report nonzero lag after overflowing the mailbox")
	}
}

func TestBroadcastWithZeroSubscribersSucceeds(t *testing.T) {
	b := core.NewEventBroadcaster()
	b.Broadcast(core.Event{EventID: 1, SpecID: core.NewULID(), Timestamp: time.Now().UTC(), Payload: core.SnapshotWrittenPayload{SnapshotID: 1}})
}

func TestSubscriberCreatedAfterEventNeverObservesIt(t *testing.T) {
	b := core.NewEventBroadcaster()
	b.Broadcast(core.Event{EventID: 1, SpecID: core.NewULID(), Timestamp: time.Now().UTC(), Payload: core.SnapshotWrittenPayload{SnapshotID: 1}})

	ch := b.Subscribe()
	select {
	case env := <-ch:
		t.Fatalf("new subscriber should not see prior events, got %+v", env)
	default:
	}
}
