// Package memory provides core.MemoryStore implementations: a bounded
// in-process store for tests and single-run tools, and a SQLite store for
// anything that should survive a restart.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/agentwire/agentwire/core"
)

// DefaultCapacity bounds per-agent retention in the in-process store.
const DefaultCapacity = 1000

// InMemoryStore keeps entries per agent in insertion order, shedding the
// oldest once an agent exceeds the capacity. Safe for concurrent use.
type InMemoryStore struct {
	capacity int

	mu      sync.RWMutex
	byAgent map[string][]core.Entry
}

// NewInMemoryStore returns a store retaining up to capacity entries per
// agent; capacity <= 0 selects DefaultCapacity.
func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryStore{
		capacity: capacity,
		byAgent:  make(map[string][]core.Entry),
	}
}

// Remember stores a fact and returns its id.
func (s *InMemoryStore) Remember(agentID, kind string, content, metadata map[string]any) (string, error) {
	entry := core.Entry{
		ID:        core.NewID(),
		AgentID:   agentID,
		Kind:      kind,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	entries := append(s.byAgent[agentID], entry)
	if len(entries) > s.capacity {
		entries = entries[len(entries)-s.capacity:]
	}
	s.byAgent[agentID] = entries
	s.mu.Unlock()
	return entry.ID, nil
}

// Recall returns up to limit entries of a kind, newest first. An empty kind
// matches every entry; limit <= 0 means no limit.
func (s *InMemoryStore) Recall(agentID, kind string, limit int) ([]core.Entry, error) {
	return s.query(agentID, limit, func(e core.Entry) bool {
		return kind == "" || e.Kind == kind
	})
}

// EntityHistory returns up to limit entries whose metadata entity_id matches,
// newest first, optionally filtered by kind.
func (s *InMemoryStore) EntityHistory(agentID, entityID, kind string, limit int) ([]core.Entry, error) {
	return s.query(agentID, limit, func(e core.Entry) bool {
		if kind != "" && e.Kind != kind {
			return false
		}
		id, _ := e.Metadata[core.EntityIDKey].(string)
		return strings.EqualFold(id, entityID)
	})
}

func (s *InMemoryStore) query(agentID string, limit int, match func(core.Entry) bool) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byAgent[agentID]
	out := make([]core.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if !match(entries[i]) {
			continue
		}
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
