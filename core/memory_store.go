package core

import "time"

// Entry is one remembered fact scoped to an agent.
type Entry struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Kind      string         `json:"kind"`
	Content   map[string]any `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EntityIDKey is the metadata key EntityHistory filters on.
const EntityIDKey = "entity_id"

// MemoryStore is the persistence collaborator consumed by individual agents.
// The broker has no dependency on this interface.
type MemoryStore interface {
	// Remember stores a fact of the given kind for an agent and returns its id.
	Remember(agentID, kind string, content, metadata map[string]any) (string, error)

	// Recall returns the most recent entries of a kind, newest first. An empty
	// kind matches every entry.
	Recall(agentID, kind string, limit int) ([]Entry, error)

	// EntityHistory returns the most recent entries whose metadata entity_id
	// equals entityID, newest first, optionally filtered by kind.
	EntityHistory(agentID, entityID, kind string, limit int) ([]Entry, error)
}
