package broker

import (
	"context"
	"sort"
	"sync"

	"github.com/agentwire/agentwire/core"
)

// agentEntry bundles everything the broker tracks for one registered agent.
// The load counter is mutated only by the broker's own enqueue and delivery
// paths, never by agents.
type agentEntry struct {
	info         core.AgentInfo
	agent        core.Agent
	mailbox      chan core.Message
	capabilities map[string]struct{}

	// cancel stops this agent's delivery worker. Nil until the worker starts.
	cancel context.CancelFunc

	load int
}

// registry maps agent identifiers to their mailbox, declared capabilities and
// current in-flight load counter. All methods are safe for concurrent use.
type registry struct {
	mu     sync.RWMutex
	agents map[string]*agentEntry
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]*agentEntry)}
}

// add registers an agent, creating its mailbox and capability index.
func (r *registry) add(info core.AgentInfo, a core.Agent, mailboxSize int) (*agentEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[info.ID]; exists {
		return nil, core.ErrAgentExists
	}
	caps := make(map[string]struct{})
	for _, c := range a.Capabilities() {
		caps[c] = struct{}{}
	}
	entry := &agentEntry{
		info:         info,
		agent:        a,
		mailbox:      make(chan core.Message, mailboxSize),
		capabilities: caps,
	}
	r.agents[info.ID] = entry
	return entry, nil
}

// remove deletes an agent and returns its entry. Removing an unknown id is a
// no-op returning nil.
func (r *registry) remove(id string) *agentEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.agents[id]
	if !ok {
		return nil
	}
	delete(r.agents, id)
	return entry
}

// activate records the cancel func of the agent's running delivery worker.
func (r *registry) activate(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.agents[id]; ok {
		entry.cancel = cancel
	}
}

func (r *registry) get(id string) (*agentEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[id]
	return entry, ok
}

// byDepartment returns the ids of agents in the department, sorted ascending
// for deterministic strategy decisions. The literal "all" matches everyone.
func (r *registry) byDepartment(department string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id, entry := range r.agents {
		if department == "all" || entry.info.Department == department {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// allIDs returns every registered agent id, sorted ascending.
func (r *registry) allIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// entries returns a snapshot of all current entries.
func (r *registry) entries() []*agentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agentEntry, 0, len(r.agents))
	for _, entry := range r.agents {
		out = append(out, entry)
	}
	return out
}

// skillOverlap counts how many of the required skills an agent advertises.
func (r *registry) skillOverlap(id string, required []string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[id]
	if !ok {
		return 0
	}
	overlap := 0
	for _, skill := range required {
		if _, has := entry.capabilities[skill]; has {
			overlap++
		}
	}
	return overlap
}

func (r *registry) load(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.agents[id]; ok {
		return entry.load
	}
	return 0
}

func (r *registry) incLoad(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.agents[id]; ok {
		entry.load++
	}
}

// decLoad frees a delivery slot; the counter never drops below zero.
func (r *registry) decLoad(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.agents[id]; ok && entry.load > 0 {
		entry.load--
	}
}

// status builds the externally visible snapshot of all agents.
func (r *registry) status() map[string]core.AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]core.AgentStatus, len(r.agents))
	for id, entry := range r.agents {
		caps := make([]string, 0, len(entry.capabilities))
		for c := range entry.capabilities {
			caps = append(caps, c)
		}
		sort.Strings(caps)
		out[id] = core.AgentStatus{
			Name:         entry.info.Name,
			Department:   entry.info.Department,
			CurrentLoad:  entry.load,
			QueueSize:    len(entry.mailbox),
			Capabilities: caps,
			Active:       entry.cancel != nil,
		}
	}
	return out
}
