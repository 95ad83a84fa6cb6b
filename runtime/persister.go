package runtime

import (
	"encoding/json"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/store"
)

// AgentContextsProvider is a mutable box around the callback a persister
// uses to collect live agent contexts for a snapshot. It starts out empty
// (a spec with no swarm running yet snapshots with an empty context map)
// and is attached once the swarm orchestrator starts, since the persister
// is spawned before any swarm exists.
type AgentContextsProvider struct {
	mu sync.Mutex
	fn func() map[string]json.RawMessage
}

// Set installs fn as the active context-collection callback.
func (p *AgentContextsProvider) Set(fn func() map[string]json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = fn
}

// Clear removes the active callback, e.g. when its swarm stops.
func (p *AgentContextsProvider) Clear() {
	p.Set(nil)
}

func (p *AgentContextsProvider) collect() map[string]json.RawMessage {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

// Persister is the per-spec background subscriber described as C7: it
// writes every broadcast event to the durable log and, on lag or on a
// periodic cadence, flushes a snapshot so recovery never has to replay
// more than SnapshotIntervalEvents records plus whatever a slow receiver
// missed.
type Persister struct {
	specID          ulid.ULID
	specDir         string
	actor           *core.SpecActorHandle
	log             *store.JsonlLog
	stopCh          chan struct{}
	snapshotEvery   int
	eventsSinceSave int
	contexts        *AgentContextsProvider
}

// SpawnPersister opens the spec's event log and starts a goroutine that
// subscribes to the actor's broadcast and durably appends every event it
// receives. It returns a stop function (safe to call more than once) and
// the AgentContextsProvider box a later-started swarm should attach its
// CollectAgentContexts callback to.
func SpawnPersister(specDir string, specID ulid.ULID, actor *core.SpecActorHandle, snapshotIntervalEvents int) (stop func(), contexts *AgentContextsProvider, err error) {
	logPath := filepath.Join(specDir, "events.jsonl")
	jsonlLog, err := store.OpenJsonl(logPath)
	if err != nil {
		return nil, nil, err
	}

	contexts = &AgentContextsProvider{}
	p := &Persister{
		specID:        specID,
		specDir:       specDir,
		actor:         actor,
		log:           jsonlLog,
		stopCh:        make(chan struct{}),
		snapshotEvery: snapshotIntervalEvents,
		contexts:      contexts,
	}
	if p.snapshotEvery <= 0 {
		p.snapshotEvery = defaultSnapshotIntervalEvents
	}

	ch := actor.Subscribe()
	go p.run(ch)

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(p.stopCh)
	}, contexts, nil
}

// run is the persister's main loop: append every received event, then
// react to lag or the periodic cadence by writing a snapshot. It exits
// cleanly when the actor's broadcaster closes this subscription or when
// stopCh is closed.
func (p *Persister) run(ch chan core.Envelope) {
	defer p.actor.Unsubscribe(ch)
	defer func() {
		if err := p.log.Close(); err != nil {
			log.Printf("component=persister action=close_failed spec_id=%s err=%v", p.specID, err)
		}
	}()

	for {
		select {
		case env, ok := <-ch:
			if !ok {
				log.Printf("component=persister action=channel_closed spec_id=%s", p.specID)
				return
			}
			p.handle(env)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Persister) handle(env core.Envelope) {
	if err := p.log.Append(env.Event); err != nil {
		log.Printf("component=persister action=append_failed spec_id=%s event_id=%d err=%v", p.specID, env.Event.EventID, err)
		return
	}

	p.eventsSinceSave++

	if env.Lagged > 0 {
		log.Printf("component=persister action=lag_detected spec_id=%s dropped=%d", p.specID, env.Lagged)
		p.writeSnapshot()
		return
	}

	if p.eventsSinceSave >= p.snapshotEvery {
		p.writeSnapshot()
	}
}

// writeSnapshot reads the current actor state and atomically saves it,
// bounding how much the next recovery has to replay. A failure here is
// logged, not fatal: the log remains the authoritative source of truth
// and replay from empty always still works.
func (p *Persister) writeSnapshot() {
	var snap store.SnapshotData
	p.actor.ReadState(func(state *core.SpecState) {
		cloned := state.Clone()
		snap = store.SnapshotData{
			State:       cloned,
			LastEventID: cloned.LastEventID,
			SavedAt:     time.Now().UTC(),
		}
	})

	snap.AgentContexts = p.contexts.collect()

	snapDir := filepath.Join(p.specDir, "snapshots")
	if err := store.SaveSnapshot(snapDir, snap); err != nil {
		log.Printf("component=persister action=snapshot_failed spec_id=%s err=%v", p.specID, err)
		return
	}

	p.eventsSinceSave = 0
	log.Printf("component=persister action=snapshot_written spec_id=%s last_event_id=%d", p.specID, snap.LastEventID)
}
