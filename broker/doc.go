// Package broker implements the agent-to-agent message broker: agent
// registration with capability indexing, per-agent FIFO mailboxes, five
// routing strategies, concurrent delivery with bounded retry backlogs, and
// metrics plus health monitoring over the route table.
//
// A Broker owns four kinds of background work once started: one delivery
// worker per registered agent (a slow agent never stalls delivery to others),
// a retry manager re-attempting failed hand-offs on a fixed cadence, a
// metrics updater computing throughput, and a health monitor that flags stuck
// routes and overloaded agents and purges old route records. All of them stop
// when Stop is called or the Start context is cancelled.
//
// External callers interact exclusively through the exported API
// (Register/Unregister/Send/GetMetrics/GetAgentStatus); internal maps are
// never shared.
package broker
