package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	muxllm "github.com/2389-research/mux/llm"

	"github.com/2389-research/specloom/core"
	"github.com/2389-research/specloom/store"
	"github.com/2389-research/specloom/swarm"
)

// SwarmHandle bundles a running orchestrator with the cancel function that
// stops its run loop.
type SwarmHandle struct {
	Orchestrator *swarm.SwarmOrchestrator
	Cancel       context.CancelFunc
}

// SpecHandle bundles everything the supervisor tracks for one live spec:
// the actor, its persister's stop function, and (if started) its swarm.
type SpecHandle struct {
	Actor         *core.SpecActorHandle
	StopPersist   func()
	AgentContexts *AgentContextsProvider
	Swarm         *SwarmHandle
}

// Supervisor owns every live spec's actor, persister, and (optionally)
// swarm for one process. It is the process-wide composition root C5-C9
// are wired through: recovery happens once per spec at Open time, and
// every other lifecycle operation flows through the actor handle it hands
// back.
type Supervisor struct {
	mu             sync.RWMutex
	storage        *store.StorageManager
	config         *Config
	providerStatus ProviderStatus
	llmClient      muxllm.Client
	llmModel       string
	specs          map[ulid.ULID]*SpecHandle
}

// NewSupervisor creates a supervisor rooted at cfg.Home, detecting LLM
// provider availability and constructing a client for cfg.DefaultProvider
// if a credential is present.
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	status := DetectProviders(cfg)

	client, model, err := NewLLMClientFromEnv(cfg)
	if err != nil {
		log.Printf("WARNING: LLM client unavailable: %v; agent swarms will not start", err)
	}

	return &Supervisor{
		storage:        store.NewStorageManager(cfg.Home),
		config:         cfg,
		providerStatus: status,
		llmClient:      client,
		llmModel:       model,
		specs:          make(map[ulid.ULID]*SpecHandle),
	}, nil
}

// ProviderStatus returns the provider availability detected at startup.
func (sup *Supervisor) ProviderStatus() ProviderStatus { return sup.providerStatus }

// Storage returns the underlying storage manager, for collaborators (index
// listing, export) that need direct access to the on-disk layout.
func (sup *Supervisor) Storage() *store.StorageManager { return sup.storage }

// RecoverAll runs the recovery pipeline (C5) for every spec directory under
// home and spawns an actor (C6) plus persister (C7) for each one that
// recovers successfully. A spec whose recovery fails is logged and
// skipped, matching the multi-spec recovery contract in §7.
func (sup *Supervisor) RecoverAll() error {
	dirs, err := sup.storage.ListSpecDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if _, err := sup.openSpec(dir.SpecID, dir.Path); err != nil {
			log.Printf("WARNING: failed to bring up spec %s: %v; skipping", dir.SpecID, err)
		}
	}
	return nil
}

// CreateSpec allocates a fresh spec id and directory, spawns its actor
// with empty initial state, and starts its persister. The first command
// the caller submits is expected to be CreateSpec, which materialises
// SpecCreated as event id 1.
func (sup *Supervisor) CreateSpec() (*SpecHandle, ulid.ULID, error) {
	specID := core.NewULID()
	dir, err := sup.storage.CreateSpecDir(specID)
	if err != nil {
		return nil, specID, err
	}
	handle, err := sup.openSpec(specID, dir)
	return handle, specID, err
}

// OpenSpec returns the live handle for specID, recovering and spawning it
// first if it is not already running.
func (sup *Supervisor) OpenSpec(specID ulid.ULID) (*SpecHandle, error) {
	sup.mu.RLock()
	existing := sup.specs[specID]
	sup.mu.RUnlock()
	if existing != nil {
		return existing, nil
	}
	return sup.openSpec(specID, sup.storage.GetSpecDir(specID))
}

func (sup *Supervisor) openSpec(specID ulid.ULID, dir string) (*SpecHandle, error) {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	if existing, ok := sup.specs[specID]; ok {
		return existing, nil
	}

	state, _, err := store.RecoverSpec(dir)
	if err != nil {
		return nil, fmt.Errorf("recovering spec %s: %w", specID, err)
	}

	actor := core.SpawnActor(specID, state)

	stop, contexts, err := SpawnPersister(dir, specID, actor, sup.config.SnapshotIntervalEvents)
	if err != nil {
		return nil, fmt.Errorf("starting persister for spec %s: %w", specID, err)
	}

	handle := &SpecHandle{Actor: actor, StopPersist: stop, AgentContexts: contexts}
	sup.specs[specID] = handle
	log.Printf("component=runtime.supervisor action=spec_opened spec_id=%s last_event_id=%d", specID, state.LastEventID)
	return handle, nil
}

// ListSpecIDs returns the ids of every currently live spec.
func (sup *Supervisor) ListSpecIDs() []ulid.ULID {
	sup.mu.RLock()
	defer sup.mu.RUnlock()
	ids := make([]ulid.ULID, 0, len(sup.specs))
	for id := range sup.specs {
		ids = append(ids, id)
	}
	return ids
}

// TryStartSwarm starts the agent swarm (C9) for specID if an LLM provider
// is configured and no swarm is already running for it. Returns false
// without error when either precondition fails -- both are normal,
// expected states rather than faults.
func (sup *Supervisor) TryStartSwarm(specID ulid.ULID) bool {
	if sup.llmClient == nil {
		return false
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()

	handle, exists := sup.specs[specID]
	if !exists || handle.Swarm != nil {
		return false
	}

	orchestrator := swarm.NewSwarmOrchestrator(specID, handle.Actor, sup.llmClient, sup.llmModel)
	if restored, err := loadAgentContexts(sup.storage.GetSpecDir(specID)); err != nil {
		log.Printf("WARNING: failed to restore agent contexts for spec %s: %v", specID, err)
	} else if restored != nil {
		orchestrator.RestoreAgentContexts(restored)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go orchestrator.RunLoop(ctx)

	handle.AgentContexts.Set(orchestrator.CollectAgentContexts)
	handle.Swarm = &SwarmHandle{Orchestrator: orchestrator, Cancel: cancel}
	log.Printf("component=runtime.supervisor action=swarm_started spec_id=%s agent_count=%d", specID, orchestrator.AgentCount())
	return true
}

// StopSwarm cancels and clears the swarm for specID, if one is running.
func (sup *Supervisor) StopSwarm(specID ulid.ULID) bool {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	handle, exists := sup.specs[specID]
	if !exists || handle.Swarm == nil {
		return false
	}
	handle.Swarm.Cancel()
	handle.Swarm = nil
	handle.AgentContexts.Clear()
	log.Printf("component=runtime.supervisor action=swarm_stopped spec_id=%s", specID)
	return true
}

// loadAgentContexts reads the latest snapshot's agent-context map, if any,
// for restoring a freshly-started swarm's per-role memory.
func loadAgentContexts(specDir string) (map[string]json.RawMessage, error) {
	snap, err := store.LoadLatestSnapshot(filepath.Join(specDir, "snapshots"))
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return snap.AgentContexts, nil
}

// Shutdown stops every running swarm and persister. Actors are left to
// exit when the process does -- they hold no resources beyond memory and
// their command channel.
func (sup *Supervisor) Shutdown() {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	for specID, handle := range sup.specs {
		if handle.Swarm != nil {
			handle.Swarm.Cancel()
		}
		handle.StopPersist()
		log.Printf("component=runtime.supervisor action=spec_closed spec_id=%s", specID)
	}
}
