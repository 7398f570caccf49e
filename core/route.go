package core

import "time"

// RouteStatus tracks the delivery lifecycle of a single message.
type RouteStatus string

const (
	// RoutePending means the message has been accepted but not yet enqueued.
	RoutePending RouteStatus = "pending"
	// RouteSent means the message sits in a recipient mailbox.
	RouteSent RouteStatus = "sent"
	// RouteDelivered means the agent accepted the message.
	RouteDelivered RouteStatus = "delivered"
	// RouteFailed means routing found no eligible recipient or delivery
	// exhausted its retry backlog.
	RouteFailed RouteStatus = "failed"
)

// Route is the delivery-tracking record for one message (1:1 by message ID).
// Routes are diagnostic state, not a ledger of record: the broker's health
// monitor purges them after a retention window.
type Route struct {
	MessageID    string      `json:"message_id"`
	SenderID     string      `json:"sender_id"`
	RecipientID  string      `json:"recipient_id"`
	Hops         []string    `json:"hops,omitempty"`
	DeliveryTime *time.Time  `json:"delivery_time,omitempty"`
	Status       RouteStatus `json:"status"`
}

// NewRoute creates a route in the Pending state.
func NewRoute(messageID, senderID, recipientID string) *Route {
	return &Route{
		MessageID:   messageID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      RoutePending,
	}
}

// MarkSent records that the message entered a mailbox, noting the hop.
func (r *Route) MarkSent(agentID string) {
	r.RecipientID = agentID
	r.Hops = append(r.Hops, agentID)
	r.Status = RouteSent
}

// MarkDelivered records a successful hand-off to the agent.
func (r *Route) MarkDelivered(at time.Time) {
	t := at
	r.DeliveryTime = &t
	r.Status = RouteDelivered
}

// MarkFailed records a terminal routing or delivery failure.
func (r *Route) MarkFailed() { r.Status = RouteFailed }

// Latency returns the time between message creation and delivery. The second
// return is false while the route has not been delivered.
func (r *Route) Latency(createdAt time.Time) (time.Duration, bool) {
	if r.DeliveryTime == nil {
		return 0, false
	}
	return r.DeliveryTime.Sub(createdAt), true
}
