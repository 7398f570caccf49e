package core

import (
	"errors"
	"fmt"
)

// Routing-time failures, returned synchronously from Send.
var (
	// ErrUnknownRecipient means direct routing named an unregistered agent.
	ErrUnknownRecipient = errors.New("unknown recipient")

	// ErrNoEligibleAgent means a department-level strategy found no agents.
	ErrNoEligibleAgent = errors.New("no eligible agent")

	// ErrNoSkillMatch means no registered agent overlaps the required skills.
	ErrNoSkillMatch = errors.New("no skill match")

	// ErrMailboxFull means the recipient mailbox stayed full past the
	// enqueue timeout.
	ErrMailboxFull = errors.New("mailbox full")
)

// Lifecycle failures.
var (
	// ErrAgentExists is returned when registering a duplicate agent id.
	ErrAgentExists = errors.New("agent already registered")

	// ErrRetryExhausted signals that a retry backlog overflowed its cap and
	// the message was permanently dropped. Surfaced via logs and metrics,
	// never returned to the sender.
	ErrRetryExhausted = errors.New("retry backlog exhausted")
)

// DeliveryError wraps a failure raised by an agent during hand-off. It is
// caught by the delivery loop and converted into a retry entry, never
// propagated to the sender.
type DeliveryError struct {
	AgentID   string
	MessageID string
	Err       error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed for message %s: %v", e.AgentID, e.MessageID, e.Err)
}

// Unwrap exposes the underlying agent error to errors.Is/As.
func (e *DeliveryError) Unwrap() error { return e.Err }
