package broker

import (
	"errors"
	"time"

	"github.com/agentwire/agentwire/core"
)

// routeMessage resolves the message's recipient(s) per the strategy and
// enqueues it. The message's RecipientID may be rewritten here; after a
// successful enqueue it is final.
func (b *Broker) routeMessage(msg *core.Message, strategy core.RoutingStrategy) error {
	switch strategy {
	case core.RouteBroadcast:
		return b.routeBroadcast(msg)
	case core.RouteRoundRobin:
		return b.routeRoundRobin(msg)
	case core.RouteLoadBalanced:
		return b.routeLoadBalanced(msg)
	case core.RouteSkillBased:
		return b.routeSkillBased(msg)
	default:
		return b.routeDirect(msg)
	}
}

// routeDirect requires RecipientID to name a registered agent.
func (b *Broker) routeDirect(msg *core.Message) error {
	entry, ok := b.registry.get(msg.RecipientID)
	if !ok {
		return core.ErrUnknownRecipient
	}
	return b.enqueue(entry, *msg)
}

// routeBroadcast clones the message per agent in the department (or all
// agents for the literal "all"). It succeeds if at least one clone is
// enqueued. Each clone gets its own route so fan-out deliveries are tracked
// individually.
func (b *Broker) routeBroadcast(msg *core.Message) error {
	targets := b.registry.byDepartment(msg.RecipientID)
	if len(targets) == 0 {
		return core.ErrNoEligibleAgent
	}
	enqueued := make([]string, 0, len(targets))
	for _, agentID := range targets {
		entry, ok := b.registry.get(agentID)
		if !ok {
			continue
		}
		clone := msg.CloneFor(agentID)
		b.trackRoute(clone)
		if err := b.enqueue(entry, clone); err != nil {
			b.updateRoute(clone.ID, func(r *core.Route) { r.MarkFailed() })
			b.logger.Warn("broadcast enqueue failed agent_id=%s message_id=%s: %v", agentID, clone.ID, err)
			continue
		}
		enqueued = append(enqueued, agentID)
	}
	if len(enqueued) == 0 {
		return core.ErrMailboxFull
	}
	b.updateRoute(msg.ID, func(r *core.Route) {
		r.Hops = append(r.Hops, enqueued...)
		r.Status = core.RouteSent
	})
	return nil
}

// routeRoundRobin rotates among agents of the department indexed by the
// broker's total-sent counter at call time. The agent list is sorted by id so
// the rotation order is stable across calls.
func (b *Broker) routeRoundRobin(msg *core.Message) error {
	candidates := b.registry.byDepartment(msg.RecipientID)
	if len(candidates) == 0 {
		return core.ErrNoEligibleAgent
	}
	msg.RecipientID = candidates[int(b.sent.Load())%len(candidates)]
	return b.routeDirect(msg)
}

// routeLoadBalanced picks the least loaded agent in the department; ties are
// broken by agent id ascending.
func (b *Broker) routeLoadBalanced(msg *core.Message) error {
	candidates := b.registry.byDepartment(msg.RecipientID)
	if len(candidates) == 0 {
		return core.ErrNoEligibleAgent
	}
	selected := candidates[0]
	best := b.registry.load(selected)
	for _, id := range candidates[1:] {
		if load := b.registry.load(id); load < best {
			selected, best = id, load
		}
	}
	msg.RecipientID = selected
	return b.routeDirect(msg)
}

// routeSkillBased picks, among all registered agents, the one whose
// capability set has the largest intersection with the message's
// required_skills; ties are broken by agent id ascending. A message without
// required_skills falls back to direct routing.
func (b *Broker) routeSkillBased(msg *core.Message) error {
	required := msg.RequiredSkills()
	if len(required) == 0 {
		return b.routeDirect(msg)
	}
	var selected string
	best := 0
	for _, id := range b.registry.allIDs() {
		if overlap := b.registry.skillOverlap(id, required); overlap > best {
			selected, best = id, overlap
		}
	}
	if selected == "" {
		return core.ErrNoSkillMatch
	}
	msg.RecipientID = selected
	return b.routeDirect(msg)
}

// enqueue places the message into the entry's mailbox, blocking up to the
// configured timeout when the mailbox is full. A successful enqueue
// increments the agent's load and marks the route Sent.
func (b *Broker) enqueue(entry *agentEntry, msg core.Message) error {
	select {
	case entry.mailbox <- msg:
	default:
		timer := time.NewTimer(b.opts.EnqueueTimeout)
		defer timer.Stop()
		select {
		case entry.mailbox <- msg:
		case <-timer.C:
			return core.ErrMailboxFull
		}
	}
	b.registry.incLoad(entry.info.ID)
	b.updateRoute(msg.ID, func(r *core.Route) { r.MarkSent(entry.info.ID) })
	return nil
}

// failureReason maps a routing or delivery error to a metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownRecipient):
		return "unknown_recipient"
	case errors.Is(err, core.ErrNoEligibleAgent):
		return "no_eligible_agent"
	case errors.Is(err, core.ErrNoSkillMatch):
		return "no_skill_match"
	case errors.Is(err, core.ErrMailboxFull):
		return "mailbox_full"
	case errors.Is(err, core.ErrRetryExhausted):
		return "retry_exhausted"
	default:
		return "delivery"
	}
}
