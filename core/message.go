package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageType categorizes the intent of a message.
type MessageType string

const (
	// TaskRequest asks the recipient to perform a unit of work.
	TaskRequest MessageType = "task_request"
	// TaskResponse carries the result of a previously requested task.
	TaskResponse MessageType = "task_response"
	// Coordination carries control traffic between agents (status checks etc.).
	Coordination MessageType = "coordination"
	// Escalation forwards a problem to a supervising agent.
	Escalation MessageType = "escalation"
	// StatusUpdate reports agent state without requiring a response.
	StatusUpdate MessageType = "status_update"
	// AnalysisRequest asks the recipient for an analytical result.
	AnalysisRequest MessageType = "analysis_request"
)

// Priority orders messages by urgency. Higher values are more urgent.
type Priority int

const (
	// PriorityLow is background traffic.
	PriorityLow Priority = iota + 1
	// PriorityMedium is the default priority.
	PriorityMedium
	// PriorityHigh is used for time-sensitive traffic such as workflow steps.
	PriorityHigh
	// PriorityCritical is reserved for escalations.
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RoutingStrategy selects how the broker resolves a message's recipient(s).
type RoutingStrategy string

const (
	// RouteDirect delivers to the exact agent named by RecipientID.
	RouteDirect RoutingStrategy = "direct"
	// RouteBroadcast fans out to every agent in the named department ("all"
	// matches every registered agent).
	RouteBroadcast RoutingStrategy = "broadcast"
	// RouteRoundRobin rotates among agents in the named department.
	RouteRoundRobin RoutingStrategy = "round_robin"
	// RouteLoadBalanced picks the least loaded agent in the named department.
	RouteLoadBalanced RoutingStrategy = "load_balanced"
	// RouteSkillBased picks the agent whose capabilities best overlap the
	// message's required_skills.
	RouteSkillBased RoutingStrategy = "skill_based"
)

// RequiredSkillsKey is the content key consulted by skill-based routing.
const RequiredSkillsKey = "required_skills"

// Message is a typed, addressed unit of communication between agents.
//
// ID is globally unique and immutable once created. RecipientID may be
// rewritten by the routing engine before the message enters a mailbox (for
// example round-robin resolution of a department name into a concrete agent
// id), never after.
type Message struct {
	ID               string         `json:"id"`
	SenderID         string         `json:"sender_id"`
	RecipientID      string         `json:"recipient_id"`
	Type             MessageType    `json:"type"`
	Content          map[string]any `json:"content"`
	Priority         Priority       `json:"priority"`
	CreatedAt        time.Time      `json:"created_at"`
	RequiresResponse bool           `json:"requires_response"`
}

// NewMessage constructs a message with a fresh ID and UTC creation timestamp.
func NewMessage(senderID, recipientID string, typ MessageType, content map[string]any, priority Priority) Message {
	return Message{
		ID:          NewID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Type:        typ,
		Content:     content,
		Priority:    priority,
		CreatedAt:   time.Now().UTC(),
	}
}

// CloneFor returns a copy of the message addressed to a single broadcast
// recipient. The clone's ID is derived from the original ("{id}_{agent}") so
// fan-out deliveries remain correlatable with the originating send.
func (m Message) CloneFor(agentID string) Message {
	clone := m
	clone.ID = m.ID + "_" + agentID
	clone.RecipientID = agentID
	return clone
}

// RequiredSkills extracts the required_skills list from the message content.
// Both []string and []any (the shape produced by JSON decoding) are accepted.
func (m Message) RequiredSkills() []string {
	raw, ok := m.Content[RequiredSkillsKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		skills := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				skills = append(skills, s)
			}
		}
		return skills
	default:
		return nil
	}
}

// NewID generates a unique identifier for messages, routes and workflows.
func NewID() string { return uuid.NewString() }
