package core

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// subscriberBufferSize bounds each subscriber's private mailbox. The spec
// gives this as a tunable with no externally observed contract.
const subscriberBufferSize = 256

// commandQueueSize bounds the actor's command queue. Same tunable status as
// subscriberBufferSize.
const commandQueueSize = 64

// Envelope wraps a broadcast event with the subscriber's own lag counter: if
// Lagged is nonzero, this subscriber missed that many events since its last
// receive because its mailbox was full.
type Envelope struct {
	Event  Event
	Lagged uint64
}

// EventBroadcaster is a multi-consumer, bounded fan-out of events. Slow
// subscribers never block the producer and are never disconnected; instead
// they are told how many events they missed via Envelope.Lagged.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Envelope]*uint64
}

// NewEventBroadcaster returns an empty broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{subscribers: make(map[chan Envelope]*uint64)}
}

// Subscribe registers a new independent receiver. A subscriber created after
// an event is broadcast never observes that event.
func (b *EventBroadcaster) Subscribe() chan Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Envelope, subscriberBufferSize)
	var dropped uint64
	b.subscribers[ch] = &dropped
	return ch
}

// Unsubscribe removes and closes a receiver. Safe to call more than once.
func (b *EventBroadcaster) Unsubscribe(ch chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Broadcast publishes event to every subscriber. A subscriber with a full
// mailbox has its oldest buffered envelope evicted to make room and its
// per-subscriber dropped counter incremented; the event being published now
// carries that counter so the subscriber learns it lagged. Broadcasting with
// zero subscribers always succeeds.
func (b *EventBroadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, dropped := range b.subscribers {
		b.sendOne(ch, dropped, event)
	}
}

func (b *EventBroadcaster) sendOne(ch chan Envelope, dropped *uint64, event Event) {
	for {
		select {
		case ch <- Envelope{Event: event, Lagged: *dropped}:
			*dropped = 0
			return
		default:
		}
		// Mailbox full: evict the oldest buffered envelope to make room
		// and record that this subscriber lagged by one more event.
		select {
		case <-ch:
			*dropped++
		default:
			// Raced with a concurrent receive; try sending again.
		}
	}
}

// commandMessage pairs a submitted command with its reply channel.
type commandMessage struct {
	cmd   Command
	reply chan commandResult
}

type commandResult struct {
	events []Event
	err    error
}

// SpecActorHandle is the shared, cloneable front door to one spec's actor.
// Exclusive mutation happens only inside the actor's own goroutine; this
// handle only submits commands, reads a consistent snapshot of state, and
// manages subscriptions.
type SpecActorHandle struct {
	SpecID      ulid.ULID
	cmdCh       chan commandMessage
	broadcaster *EventBroadcaster
	mu          sync.RWMutex
	state       *SpecState
}

// SendCommand submits cmd and blocks until the actor replies with the
// resulting events or a validation error. Submission order from one caller
// is preserved.
func (h *SpecActorHandle) SendCommand(cmd Command) ([]Event, error) {
	reply := make(chan commandResult, 1)
	select {
	case h.cmdCh <- commandMessage{cmd: cmd, reply: reply}:
	default:
		// Queue full: block until there is room, preserving FIFO order
		// rather than failing fast.
		h.cmdCh <- commandMessage{cmd: cmd, reply: reply}
	}
	result, ok := <-reply
	if !ok {
		return nil, ErrChannelClosed
	}
	return result.events, result.err
}

// Subscribe returns a fresh independent event receiver.
func (h *SpecActorHandle) Subscribe() chan Envelope {
	return h.broadcaster.Subscribe()
}

// Unsubscribe releases a receiver obtained from Subscribe.
func (h *SpecActorHandle) Unsubscribe(ch chan Envelope) {
	h.broadcaster.Unsubscribe(ch)
}

// ReadState invokes fn with a read lock held over the current state. fn must
// not retain the pointer beyond the call nor mutate it.
func (h *SpecActorHandle) ReadState(fn func(*SpecState)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.state)
}

// specActor is the single-writer goroutine that owns a spec's mutable
// state.
type specActor struct {
	handle      *SpecActorHandle
	cmdCh       chan commandMessage
	nextEventID uint64
}

// SpawnActor starts a new actor goroutine for specID, seeded with
// initialState (typically the output of the recovery pipeline), and returns
// the shared handle for submitting commands and subscribing to events.
func SpawnActor(specID ulid.ULID, initialState *SpecState) *SpecActorHandle {
	cmdCh := make(chan commandMessage, commandQueueSize)
	handle := &SpecActorHandle{
		SpecID:      specID,
		cmdCh:       cmdCh,
		broadcaster: NewEventBroadcaster(),
		state:       initialState,
	}
	a := &specActor{
		handle:      handle,
		cmdCh:       cmdCh,
		nextEventID: initialState.LastEventID + 1,
	}
	go a.run()
	return handle
}

func (a *specActor) run() {
	for msg := range a.cmdCh {
		result := a.processCommand(msg.cmd)
		msg.reply <- result
		close(msg.reply)
	}
}

func (a *specActor) processCommand(cmd Command) commandResult {
	events, err := a.commandToEvents(cmd)
	if err != nil {
		return commandResult{err: err}
	}

	a.handle.mu.Lock()
	for i := range events {
		a.handle.state.Apply(&events[i])
	}
	a.handle.mu.Unlock()

	for _, event := range events {
		a.handle.broadcaster.Broadcast(event)
	}

	return commandResult{events: events}
}

func (a *specActor) nextEvent(payload EventPayload) Event {
	event := Event{
		EventID:   a.nextEventID,
		SpecID:    a.handle.SpecID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	a.nextEventID++
	return event
}

// commandToEvents validates cmd against a read snapshot of the current
// state and, if valid, returns the single event it produces.
func (a *specActor) commandToEvents(cmd Command) ([]Event, error) {
	a.handle.mu.RLock()
	state := a.handle.state
	defer a.handle.mu.RUnlock()

	switch c := cmd.(type) {
	case CreateSpecCommand:
		return []Event{a.nextEvent(SpecCreatedPayload{Title: c.Title, OneLiner: c.OneLiner, Goal: c.Goal})}, nil

	case UpdateSpecCoreCommand:
		if state.Core == nil {
			return nil, ErrSpecNotCreated
		}
		return []Event{a.nextEvent(SpecCoreUpdatedPayload{
			Title: c.Title, OneLiner: c.OneLiner, Goal: c.Goal,
			Description: c.Description, Constraints: c.Constraints,
			SuccessCriteria: c.SuccessCriteria, Risks: c.Risks, Notes: c.Notes,
		})}, nil

	case CreateCardCommand:
		if state.Core == nil {
			return nil, ErrSpecNotCreated
		}
		card := NewCard(NewULID(), c.CardType, c.Title, c.Body, c.CreatedBy, time.Now().UTC())
		if c.Lane != nil {
			card.Lane = *c.Lane
		}
		return []Event{a.nextEvent(CardCreatedPayload{Card: card})}, nil

	case UpdateCardCommand:
		if _, ok := state.Cards.Get(c.CardID); !ok {
			return nil, CardNotFoundError{CardID: c.CardID}
		}
		return []Event{a.nextEvent(CardUpdatedPayload{
			CardID: c.CardID, Title: c.Title, Body: c.Body,
			CardType: c.CardType, Refs: c.Refs,
		})}, nil

	case MoveCardCommand:
		if _, ok := state.Cards.Get(c.CardID); !ok {
			return nil, CardNotFoundError{CardID: c.CardID}
		}
		return []Event{a.nextEvent(CardMovedPayload{CardID: c.CardID, Lane: c.Lane, Order: c.Order})}, nil

	case DeleteCardCommand:
		if _, ok := state.Cards.Get(c.CardID); !ok {
			return nil, CardNotFoundError{CardID: c.CardID}
		}
		return []Event{a.nextEvent(CardDeletedPayload{CardID: c.CardID})}, nil

	case AppendTranscriptCommand:
		msg := NewTranscriptMessage(c.Sender, c.Content, time.Now().UTC())
		return []Event{a.nextEvent(TranscriptAppendedPayload{Message: msg})}, nil

	case AskQuestionCommand:
		if state.PendingQuestion != nil {
			return nil, ErrQuestionAlreadyPending
		}
		return []Event{a.nextEvent(QuestionAskedPayload{Question: c.Question})}, nil

	case AnswerQuestionCommand:
		if state.PendingQuestion == nil {
			return nil, ErrNoPendingQuestion
		}
		if state.PendingQuestion.QuestionID() != c.QuestionID {
			return nil, QuestionIDMismatchError{Expected: state.PendingQuestion.QuestionID(), Got: c.QuestionID}
		}
		return []Event{a.nextEvent(QuestionAnsweredPayload{QuestionID: c.QuestionID, Answer: c.Answer})}, nil

	case StartAgentStepCommand:
		return []Event{a.nextEvent(AgentStepStartedPayload{AgentID: c.AgentID, Description: c.Description})}, nil

	case FinishAgentStepCommand:
		return []Event{a.nextEvent(AgentStepFinishedPayload{AgentID: c.AgentID, DiffSummary: c.DiffSummary})}, nil

	case UndoCommand:
		if len(state.UndoStack) == 0 {
			return nil, ErrNothingToUndo
		}
		top := state.UndoStack[len(state.UndoStack)-1]
		return []Event{a.nextEvent(UndoAppliedPayload{TargetEventID: top.EventID, InverseEvents: top.Inverse})}, nil

	default:
		return nil, ErrUnknownCommand
	}
}
