package swarm

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/2389-research/specloom/core"
	"github.com/oklog/ulid/v2"
)

// RollingSummaryCap is the maximum character length for a rolling summary before compaction.
const RollingSummaryCap = 2000

// MaxKeyDecisions is the maximum number of key decisions retained per agent.
const MaxKeyDecisions = 50

// AgentContext is the contextual information fed to an agent for each reasoning step:
// the current state summary, recently drained events, transcript history, and the
// agent's accumulated memory (rolling summary and key decisions).
type AgentContext struct {
	SpecID           ulid.ULID                `json:"spec_id"`
	AgentID          string                   `json:"agent_id"`
	AgentRole        AgentRole                `json:"agent_role"`
	StateSummary     string                   `json:"state_summary"`
	RecentEvents     []core.Event             `json:"recent_events"`
	RecentTranscript []core.TranscriptMessage `json:"recent_transcript"`
	RollingSummary   string                   `json:"rolling_summary"`
	KeyDecisions     []string                 `json:"key_decisions"`
	LastEventSeen    uint64                   `json:"last_event_seen"`
}

// NewAgentContext creates a fresh context for an agent with no accumulated memory.
func NewAgentContext(specID ulid.ULID, agentID string, role AgentRole) *AgentContext {
	return &AgentContext{
		SpecID:           specID,
		AgentID:          agentID,
		AgentRole:        role,
		RecentEvents:     []core.Event{},
		RecentTranscript: []core.TranscriptMessage{},
		KeyDecisions:     []string{},
	}
}

// UpdateFromEvents folds newly drained events into the rolling summary and
// advances LastEventSeen. Events at or below the current cursor are skipped,
// since a subscriber can see the same event only once.
func (ctx *AgentContext) UpdateFromEvents(events []core.Event) {
	for i := range events {
		event := &events[i]
		if event.EventID <= ctx.LastEventSeen {
			continue
		}
		ctx.LastEventSeen = event.EventID

		description := fmt.Sprintf("Event #%d: %s", event.EventID, describeEventPayload(event.Payload))
		if ctx.RollingSummary == "" {
			ctx.RollingSummary = description
		} else {
			ctx.RollingSummary += "; " + description
		}
	}

	ctx.CompactSummary()
}

// AddDecision appends a key decision to the bounded decision list.
func (ctx *AgentContext) AddDecision(decision string) {
	ctx.KeyDecisions = append(ctx.KeyDecisions, decision)
	if len(ctx.KeyDecisions) > MaxKeyDecisions {
		excess := len(ctx.KeyDecisions) - MaxKeyDecisions
		ctx.KeyDecisions = ctx.KeyDecisions[excess:]
	}
}

// CompactSummary truncates the rolling summary once it exceeds the character
// cap, keeping the tail and prepending a compaction marker. Idempotent: a
// summary already at or under the cap, or already compacted, is unchanged.
func (ctx *AgentContext) CompactSummary() {
	charCount := utf8.RuneCountInString(ctx.RollingSummary)
	if charCount <= RollingSummaryCap {
		return
	}

	prefix := "[earlier context compacted] "
	prefixChars := utf8.RuneCountInString(prefix)
	budget := RollingSummaryCap - prefixChars
	if budget < 0 {
		budget = 0
	}

	skip := charCount - budget
	if skip < 0 {
		skip = 0
	}
	runes := []rune(ctx.RollingSummary)
	tail := string(runes[skip:])

	if cleanStart := strings.Index(tail, "; "); cleanStart >= 0 {
		tail = tail[cleanStart+2:]
	}

	ctx.RollingSummary = prefix + tail
}

// ToSnapshotValue serialises this context for inclusion in snapshot data.
func (ctx *AgentContext) ToSnapshotValue() json.RawMessage {
	data, err := json.Marshal(ctx)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// FromSnapshotValue restores an AgentContext from a previously-serialised value.
func FromSnapshotValue(data json.RawMessage) (*AgentContext, error) {
	var ctx AgentContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}

// ContextsToSnapshotMap serialises a collection of agent contexts into a map
// suitable for inclusion in snapshot data, keyed by agent id.
func ContextsToSnapshotMap(contexts []*AgentContext) map[string]json.RawMessage {
	result := make(map[string]json.RawMessage, len(contexts))
	for _, ctx := range contexts {
		result[ctx.AgentID] = ctx.ToSnapshotValue()
	}
	return result
}

// ContextsFromSnapshotMap restores agent contexts from a snapshot map.
// Contexts that fail to deserialise are skipped with a warning rather than
// aborting the whole restore.
func ContextsFromSnapshotMap(m map[string]json.RawMessage) []*AgentContext {
	var result []*AgentContext
	for _, data := range m {
		ctx, err := FromSnapshotValue(data)
		if err != nil {
			log.Printf("WARNING: failed to restore agent context from snapshot: %v", err)
			continue
		}
		result = append(result, ctx)
	}
	return result
}

// truncateChars truncates a string to at most maxChars characters, appending
// "..." if truncated. Safe for multibyte UTF-8: indexes by rune, not byte.
func truncateChars(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "..."
}

// describeEventPayload produces a human-readable one-line description of an
// event payload for rolling summaries and task prompts.
func describeEventPayload(payload core.EventPayload) string {
	switch p := payload.(type) {
	case core.SpecCreatedPayload:
		return fmt.Sprintf("spec created: '%s'", p.Title)

	case core.SpecCoreUpdatedPayload:
		if p.Title != nil {
			return fmt.Sprintf("spec updated (title -> '%s')", *p.Title)
		}
		return "spec metadata updated"

	case core.CardCreatedPayload:
		return fmt.Sprintf("card created: '%s' (%s)", p.Card.Title, p.Card.CardType)

	case core.CardUpdatedPayload:
		if p.Title != nil {
			return fmt.Sprintf("card %s updated (title -> '%s')", p.CardID, *p.Title)
		}
		return fmt.Sprintf("card %s updated", p.CardID)

	case core.CardMovedPayload:
		return fmt.Sprintf("card %s moved to '%s'", p.CardID, p.Lane)

	case core.CardDeletedPayload:
		return fmt.Sprintf("card %s deleted", p.CardID)

	case core.TranscriptAppendedPayload:
		preview := truncateChars(p.Message.Content, 50)
		return fmt.Sprintf("%s said: %s", p.Message.Sender, preview)

	case core.QuestionAskedPayload:
		return "question asked to user"

	case core.QuestionAnsweredPayload:
		preview := truncateChars(p.Answer, 50)
		return fmt.Sprintf("user answered: %s", preview)

	case core.AgentStepStartedPayload:
		return fmt.Sprintf("agent %s started: %s", p.AgentID, p.Description)

	case core.AgentStepFinishedPayload:
		return fmt.Sprintf("agent %s finished: %s", p.AgentID, p.DiffSummary)

	case core.UndoAppliedPayload:
		return fmt.Sprintf("undo applied to event #%d", p.TargetEventID)

	case core.SnapshotWrittenPayload:
		return fmt.Sprintf("snapshot #%d written", p.SnapshotID)

	default:
		return fmt.Sprintf("unknown event: %T", payload)
	}
}
