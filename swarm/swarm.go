package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	muxagent "github.com/2389-research/mux/agent"
	"github.com/2389-research/mux/llm"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/swarm/tools"
	"github.com/oklog/ulid/v2"
)

// defaultRoles are the roles instantiated automatically at swarm creation and
// used to repair any slot found empty at the top of a run-loop iteration.
// Critic is optional and is never auto-repaired.
var defaultRoles = []AgentRole{RoleManager, RoleBrainstormer, RolePlanner, RoleDotGenerator}

// AgentRunner wraps a single agent's role and mutable context. mu protects
// concurrent access to Context fields from CollectAgentContexts/RestoreAgentContexts
// running alongside RefreshContext.
type AgentRunner struct {
	Role    AgentRole
	Context *AgentContext
	AgentID string
	mu      sync.RWMutex
}

// NewAgentRunner creates a new runner for the given role with a fresh agent id.
func NewAgentRunner(specID ulid.ULID, role AgentRole) *AgentRunner {
	agentID := fmt.Sprintf("%s-%s", role.Label(), core.NewULID().String())
	return &AgentRunner{
		Role:    role,
		Context: NewAgentContext(specID, agentID, role),
		AgentID: agentID,
	}
}

// SwarmOrchestrator coordinates a swarm of agents working on a single spec.
// Agents is an ordered vector of optional slots: a slot is nil exactly while
// its step is in flight, so cancellation during a step never leaves a stale
// runner behind -- the next loop iteration simply rebuilds that slot.
type SwarmOrchestrator struct {
	SpecID ulid.ULID
	Actor  *core.SpecActorHandle
	Agents []*AgentRunner

	// eventChannels holds one independent subscription per slot, so draining
	// one agent's events never starves another's.
	eventChannels []chan core.Envelope

	Paused          atomic.Bool
	QuestionPending atomic.Bool

	Client llm.Client
	Model  string

	// HumanMessageNotify wakes RunLoop from its idle sleep so the manager
	// agent can respond to a human message promptly.
	HumanMessageNotify chan struct{}

	mu sync.Mutex
}

// NewSwarmOrchestrator creates an orchestrator with the default agent roles
// (Manager, Brainstormer, Planner, DotGenerator), each subscribed to its own
// event receiver, unpaused, with no pending question.
func NewSwarmOrchestrator(
	specID ulid.ULID,
	actor *core.SpecActorHandle,
	client llm.Client,
	model string,
) *SwarmOrchestrator {
	agents := make([]*AgentRunner, len(defaultRoles))
	eventChannels := make([]chan core.Envelope, len(defaultRoles))
	for i, role := range defaultRoles {
		agents[i] = NewAgentRunner(specID, role)
		eventChannels[i] = actor.Subscribe()
	}

	return &SwarmOrchestrator{
		SpecID:             specID,
		Actor:              actor,
		Agents:             agents,
		eventChannels:      eventChannels,
		Client:             client,
		Model:              model,
		HumanMessageNotify: make(chan struct{}, 1),
	}
}

// AgentCount returns the number of agent slots in this swarm.
func (s *SwarmOrchestrator) AgentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Agents)
}

// Pause stops new steps from starting; an in-flight step still completes.
func (s *SwarmOrchestrator) Pause() {
	s.Paused.Store(true)
	log.Printf("component=swarm action=paused spec_id=%s", s.SpecID)
}

// Resume clears the pause flag.
func (s *SwarmOrchestrator) Resume() {
	s.Paused.Store(false)
	log.Printf("component=swarm action=resumed spec_id=%s", s.SpecID)
}

// IsPaused reports the pause flag.
func (s *SwarmOrchestrator) IsPaused() bool {
	return s.Paused.Load()
}

// HasPendingQuestion reports whether a question is currently outstanding.
func (s *SwarmOrchestrator) HasPendingQuestion() bool {
	return s.QuestionPending.Load()
}

// NotifyHumanMessage wakes RunLoop from its idle sleep so the manager agent
// can respond promptly; coalesces repeated notifications.
func (s *SwarmOrchestrator) NotifyHumanMessage() {
	select {
	case s.HumanMessageNotify <- struct{}{}:
	default:
	}
}

// RecoverEmptySlots re-creates any nil runner slot with a fresh runner for
// its default role, and gives it a fresh event subscription. Slots beyond
// len(defaultRoles) (e.g. an optional Critic) are left empty if cleared --
// only the default roles are auto-repaired.
func (s *SwarmOrchestrator) RecoverEmptySlots() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Agents {
		if s.Agents[i] == nil && i < len(defaultRoles) {
			log.Printf("component=swarm action=recover_slot slot=%d role=%s spec_id=%s", i, defaultRoles[i].Label(), s.SpecID)
			s.Agents[i] = NewAgentRunner(s.SpecID, defaultRoles[i])
			s.eventChannels[i] = s.Actor.Subscribe()
		}
	}
}

// CollectAgentContexts returns a snapshot map of every live runner's context,
// keyed by agent id, for inclusion in persisted snapshot data.
func (s *SwarmOrchestrator) CollectAgentContexts() map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]json.RawMessage, len(s.Agents))
	for _, runner := range s.Agents {
		if runner != nil {
			runner.mu.RLock()
			result[runner.Context.AgentID] = runner.Context.ToSnapshotValue()
			runner.mu.RUnlock()
		}
	}
	return result
}

// RestoreAgentContexts restores contexts from a snapshot map, matching by
// role rather than agent id since ids are regenerated each process start.
// If more than one runner shares a role, each receives the same restored
// context -- duplicates are tolerated.
func (s *SwarmOrchestrator) RestoreAgentContexts(m map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ctx := range ContextsFromSnapshotMap(m) {
		for _, runner := range s.Agents {
			if runner != nil && runner.Role == ctx.AgentRole {
				runner.mu.Lock()
				runner.Context.RollingSummary = ctx.RollingSummary
				runner.Context.KeyDecisions = ctx.KeyDecisions
				runner.Context.LastEventSeen = ctx.LastEventSeen
				runner.mu.Unlock()
			}
		}
	}
}

// RefreshContext drains buffered envelopes from eventCh, folds them into the
// runner's context, and rebuilds the state summary. A lagged envelope (one
// that observed dropped predecessors) is still folded in -- only the raw
// dropped events are lost, never the fact that a gap occurred.
func (s *SwarmOrchestrator) RefreshContext(runner *AgentRunner, eventCh chan core.Envelope) {
	var events []core.Event
	var totalLag uint64
drain:
	for {
		select {
		case env, ok := <-eventCh:
			if !ok {
				break drain
			}
			events = append(events, env.Event)
			totalLag += env.Lagged
		default:
			break drain
		}
	}

	if totalLag > 0 {
		log.Printf("component=swarm action=lag_detected agent_id=%s dropped=%d", runner.AgentID, totalLag)
	}

	runner.mu.Lock()
	runner.Context.UpdateFromEvents(events)
	runner.Context.RecentEvents = events
	runner.mu.Unlock()

	s.Actor.ReadState(func(state *core.SpecState) {
		runner.mu.Lock()
		defer runner.mu.Unlock()

		if state.Core != nil {
			runner.Context.StateSummary = fmt.Sprintf(
				"Title: %s. Goal: %s. Cards: %d. Pending question: %t",
				state.Core.Title,
				state.Core.Goal,
				state.Cards.Len(),
				state.PendingQuestion != nil,
			)
		}

		s.QuestionPending.Store(state.PendingQuestion != nil)

		transcriptLen := len(state.Transcript)
		start := transcriptLen - 10
		if start < 0 {
			start = 0
		}
		runner.Context.RecentTranscript = make([]core.TranscriptMessage, transcriptLen-start)
		copy(runner.Context.RecentTranscript, state.Transcript[start:])
	})
}

// RunAgentStep runs a single agent step via a mux Agent: builds a fresh tool
// registry, a role-specific system prompt, and a task prompt from the
// runner's context, then lets mux drive the think-act loop. Returns false
// when the mux run fails and true when it completes; it does not report
// whether any tool was used during the step.
func (s *SwarmOrchestrator) RunAgentStep(ctx context.Context, runner *AgentRunner) bool {
	startCmd := core.StartAgentStepCommand{
		AgentID:     runner.AgentID,
		Description: fmt.Sprintf("%s reasoning step", runner.Role.Label()),
	}
	if _, err := s.Actor.SendCommand(startCmd); err != nil {
		log.Printf("component=agent action=start_step_failed agent_id=%s role=%s err=%v", runner.AgentID, runner.Role.Label(), err)
	}

	// stepFinished is set by emit_diff_summary if the agent calls it, so the
	// fallback FinishAgentStep below is skipped and never duplicates the event.
	var stepFinished atomic.Bool
	registry := tools.BuildRegistry(s.Actor, &s.QuestionPending, runner.AgentID, &stepFinished)

	agentCfg := muxagent.Config{
		Name:          runner.Role.Label(),
		Registry:      registry,
		LLMClient:     s.Client,
		SystemPrompt:  FullSystemPrompt(runner.Role, runner.AgentID),
		MaxIterations: 10,
	}
	muxAgent := muxagent.New(agentCfg)

	taskPrompt := BuildTaskPrompt(runner.Context)

	if err := muxAgent.Run(ctx, taskPrompt); err != nil {
		log.Printf("component=agent action=step_failed agent_id=%s role=%s err=%v", runner.AgentID, runner.Role.Label(), err)
		userMsg := fmt.Sprintf("[%s] encountered an issue and will retry on the next cycle.", runner.Role.Label())
		_, _ = s.Actor.SendCommand(core.AppendTranscriptCommand{
			Sender:  runner.AgentID,
			Content: userMsg,
		})
		_, _ = s.Actor.SendCommand(core.FinishAgentStepCommand{
			AgentID:     runner.AgentID,
			DiffSummary: "step failed",
		})
		return false
	}

	if !stepFinished.Load() {
		_, _ = s.Actor.SendCommand(core.FinishAgentStepCommand{
			AgentID:     runner.AgentID,
			DiffSummary: fmt.Sprintf("%s step completed", runner.Role.Label()),
		})
	}

	log.Printf("component=agent action=step_completed agent_id=%s role=%s", runner.AgentID, runner.Role.Label())
	return true
}

// findManagerIndex returns the index of the first manager slot, or -1.
func (s *SwarmOrchestrator) findManagerIndex() int {
	for i, runner := range s.Agents {
		if runner != nil && runner.Role == RoleManager {
			return i
		}
	}
	return -1
}

// stepSlot runs one agent's full step (refresh + reasoning) with its slot
// emptied for the duration, so a cancellation mid-step leaves a hole that
// RecoverEmptySlots repairs rather than a runner in an inconsistent state.
//
// The receiver swap matters too: the slot's old event channel is unsubscribed
// and a fresh one takes its place *before* the step starts, so events
// produced by the step's own commands (and by other agents meanwhile) are
// captured by a channel nobody is draining mid-step, instead of being lost
// or raced against the runner object being read concurrently elsewhere.
func (s *SwarmOrchestrator) stepSlot(ctx context.Context, i int) bool {
	s.mu.Lock()
	runner := s.Agents[i]
	oldCh := s.eventChannels[i]
	if runner == nil {
		s.mu.Unlock()
		return false
	}
	s.Agents[i] = nil
	freshCh := s.Actor.Subscribe()
	s.eventChannels[i] = freshCh
	s.mu.Unlock()

	s.RefreshContext(runner, oldCh)
	s.Actor.Unsubscribe(oldCh)

	didWork := s.RunAgentStep(ctx, runner)

	s.mu.Lock()
	s.Agents[i] = runner
	s.mu.Unlock()

	return didWork
}

// Cleanup unsubscribes every slot's event channel from the actor broadcaster.
func (s *SwarmOrchestrator) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.eventChannels {
		if ch != nil {
			s.Actor.Unsubscribe(ch)
			s.eventChannels[i] = nil
		}
	}
}

// RunLoop drives every agent slot through its think-act cycle in round-robin
// order until ctx is cancelled. A human message interrupts the idle sleep
// and steps the manager slot immediately.
func (s *SwarmOrchestrator) RunLoop(ctx context.Context) {
	defer s.Cleanup()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.RecoverEmptySlots()
		if s.IsPaused() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		anyWork := false
		s.mu.Lock()
		agentCount := len(s.Agents)
		s.mu.Unlock()

		for i := 0; i < agentCount; i++ {
			if s.IsPaused() {
				break
			}
			select {
			case <-ctx.Done():
				return
			default:
			}

			if s.stepSlot(ctx, i) {
				anyWork = true
				time.Sleep(100 * time.Millisecond)
			}
		}

		sleepDuration := 5 * time.Second
		if anyWork {
			sleepDuration = 1 * time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepDuration):
		case <-s.HumanMessageNotify:
			if !s.IsPaused() {
				s.mu.Lock()
				mgrIdx := s.findManagerIndex()
				s.mu.Unlock()
				if mgrIdx >= 0 {
					log.Printf("component=swarm action=prioritize_manager reason=human_message spec_id=%s", s.SpecID)
					s.stepSlot(ctx, mgrIdx)
				}
			}
		}
	}
}
