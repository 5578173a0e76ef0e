// Package router implements the supervisor-hosted star topology for
// inter-agent messages: one pending queue per target, capability-based
// admission, TTL expiry, and dead-letter visibility. Delivery is
// at-most-once; a message is always in exactly one of pending, delivered,
// or dead-letters.
package router

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/overblick/internal/audit"
)

// Message status values.
const (
	StatusPending    = "pending"
	StatusDelivered  = "delivered"
	StatusRejected   = "rejected"
	StatusDeadLetter = "dead_letter"
	StatusExpired    = "expired"
)

// DefaultTTL applies when the source does not specify one.
const DefaultTTL = 300 * time.Second

// DefaultMaxQueue caps a target's pending queue unless registered otherwise.
const DefaultMaxQueue = 100

// historyCap bounds the delivered and dead-letter lists; oldest entries
// are dropped first.
const historyCap = 1000

// cleanupEvery triggers an expiry sweep every Nth routed message. The
// supervisor additionally runs a time-driven sweep for quiet periods.
const cleanupEvery = 100

// Message is one routed inter-agent message.
type Message struct {
	ID          string
	Source      string
	Target      string
	Type        string
	Payload     map[string]any
	Status      string
	CreatedAt   time.Time
	DeliveredAt time.Time
	TTL         time.Duration
	Error       string
}

// Dict returns the message's wire representation for collect responses.
func (m *Message) Dict() map[string]any {
	d := map[string]any{
		"message_id":   m.ID,
		"source_agent": m.Source,
		"target_agent": m.Target,
		"message_type": m.Type,
		"payload":      m.Payload,
		"status":       m.Status,
		"created_at":   m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"ttl_seconds":  int(m.TTL / time.Second),
	}
	if !m.DeliveredAt.IsZero() {
		d["delivered_at"] = m.DeliveredAt.UTC().Format(time.RFC3339Nano)
	}
	if m.Error != "" {
		d["error"] = m.Error
	}
	return d
}

func (m *Message) expired(now time.Time) bool {
	return now.Sub(m.CreatedAt) > m.TTL
}

// Capabilities declares what a registered agent accepts.
type Capabilities struct {
	Identity string
	// AcceptedTypes is the admission filter; empty means accept-all.
	AcceptedTypes map[string]bool
	MaxQueue      int
}

// Stats is the router's aggregate view for status responses.
type Stats struct {
	RegisteredAgents int            `json:"registered_agents"`
	TotalRouted      int64          `json:"total_routed"`
	TotalDelivered   int64          `json:"total_delivered"`
	TotalDeadLetter  int64          `json:"total_dead_letter"`
	Pending          int            `json:"pending"`
	PendingByTarget  map[string]int `json:"pending_by_target"`
}

// Router owns the queues. All access is mutex-serialized; queues never
// leave the supervisor process.
type Router struct {
	mu          sync.Mutex
	agents      map[string]*Capabilities
	pending     []*Message
	delivered   []*Message
	deadLetters []*Message

	nextID         int64
	totalRouted    int64
	totalDelivered int64
	totalDead      int64
	sink           audit.Sink
}

// New builds a router writing routing decisions to sink.
func New(sink audit.Sink) *Router {
	if sink == nil {
		sink = audit.Discard
	}
	return &Router{
		agents: map[string]*Capabilities{},
		sink:   sink,
	}
}

// Register records an agent's capabilities. Empty acceptedTypes means
// accept-all; maxQueue <= 0 applies the default.
func (r *Router) Register(identity string, acceptedTypes []string, maxQueue int) {
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	caps := &Capabilities{Identity: identity, MaxQueue: maxQueue}
	if len(acceptedTypes) > 0 {
		caps.AcceptedTypes = make(map[string]bool, len(acceptedTypes))
		for _, t := range acceptedTypes {
			caps.AcceptedTypes[t] = true
		}
	}

	r.mu.Lock()
	r.agents[identity] = caps
	r.mu.Unlock()
	slog.Debug("router: agent registered", "identity", identity, "max_queue", maxQueue)
}

// Unregister removes an agent. Messages already queued for it stay pending
// until they expire or dead-letter on the next sweep.
func (r *Router) Unregister(identity string) {
	r.mu.Lock()
	delete(r.agents, identity)
	r.mu.Unlock()
	slog.Debug("router: agent unregistered", "identity", identity)
}

func (c *Capabilities) accepts(msgType string) bool {
	return len(c.AcceptedTypes) == 0 || c.AcceptedTypes[msgType]
}

// Route admits one message. The returned message carries the final
// admission status; non-pending outcomes are also appended to dead-letters.
func (r *Router) Route(source, target, msgType string, payload map[string]any, ttl time.Duration) *Message {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if payload == nil {
		payload = map[string]any{}
	}

	r.mu.Lock()
	r.nextID++
	msg := &Message{
		ID:        fmt.Sprintf("route-%06d", r.nextID),
		Source:    source,
		Target:    target,
		Type:      msgType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		TTL:       ttl,
	}

	caps, known := r.agents[target]
	switch {
	case !known:
		msg.Status = StatusDeadLetter
		msg.Error = "Unknown target: " + target
		r.appendDeadLetterLocked(msg)
	case !caps.accepts(msgType):
		msg.Status = StatusRejected
		msg.Error = fmt.Sprintf("%s does not accept %s messages", target, msgType)
		r.appendDeadLetterLocked(msg)
	case r.pendingCountLocked(target) >= caps.MaxQueue:
		msg.Status = StatusRejected
		msg.Error = fmt.Sprintf("queue full for %s (max %d)", target, caps.MaxQueue)
		r.appendDeadLetterLocked(msg)
	default:
		msg.Status = StatusPending
		r.pending = append(r.pending, msg)
	}

	r.totalRouted++
	if r.totalRouted%cleanupEvery == 0 {
		r.cleanupExpiredLocked(time.Now().UTC())
	}
	r.mu.Unlock()

	r.sink.Record(audit.Entry{
		Action:   "route_message",
		Category: "routing",
		Identity: source,
		Details: map[string]any{
			"message_id": msg.ID,
			"target":     target,
			"type":       msgType,
			"status":     msg.Status,
		},
		Success: msg.Status == StatusPending,
		Error:   msg.Error,
	})

	if msg.Status != StatusPending {
		slog.Debug("router: message not admitted", "id", msg.ID, "status", msg.Status, "error", msg.Error)
	}
	return msg
}

// Broadcast routes to every registered agent whose capabilities accept
// msgType, excluding the source and any identities in exclude. Returns the
// per-target outcomes.
func (r *Router) Broadcast(source, msgType string, payload map[string]any, exclude []string) []*Message {
	skip := map[string]bool{source: true}
	for _, id := range exclude {
		skip[id] = true
	}

	r.mu.Lock()
	targets := make([]string, 0, len(r.agents))
	for id, caps := range r.agents {
		if !skip[id] && caps.accepts(msgType) {
			targets = append(targets, id)
		}
	}
	r.mu.Unlock()

	out := make([]*Message, 0, len(targets))
	for _, target := range targets {
		out = append(out, r.Route(source, target, msgType, payload, 0))
	}
	return out
}

// Collect drains target's pending messages in creation order. Expired
// messages dead-letter instead of delivering.
func (r *Router) Collect(target string) []*Message {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	var delivered []*Message
	remaining := r.pending[:0]
	for _, msg := range r.pending {
		if msg.Target != target {
			remaining = append(remaining, msg)
			continue
		}
		if msg.expired(now) {
			msg.Status = StatusExpired
			msg.Error = "TTL exceeded"
			r.appendDeadLetterLocked(msg)
			continue
		}
		msg.Status = StatusDelivered
		msg.DeliveredAt = now
		r.delivered = append(r.delivered, msg)
		r.totalDelivered++
		delivered = append(delivered, msg)
	}
	r.pending = remaining
	r.trimHistoryLocked()
	return delivered
}

// CleanupExpired dead-letters every expired pending message and returns
// how many were moved.
func (r *Router) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupExpiredLocked(time.Now().UTC())
}

func (r *Router) cleanupExpiredLocked(now time.Time) int {
	moved := 0
	remaining := r.pending[:0]
	for _, msg := range r.pending {
		if msg.expired(now) {
			msg.Status = StatusExpired
			msg.Error = "TTL exceeded"
			r.appendDeadLetterLocked(msg)
			moved++
			continue
		}
		remaining = append(remaining, msg)
	}
	r.pending = remaining
	if moved > 0 {
		slog.Info("router: expired messages swept", "count", moved)
	}
	return moved
}

// DeadLetters returns a snapshot of the dead-letter list, oldest first.
func (r *Router) DeadLetters() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Message, len(r.deadLetters))
	copy(out, r.deadLetters)
	return out
}

// Stats returns the router's aggregate counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	byTarget := map[string]int{}
	for _, msg := range r.pending {
		byTarget[msg.Target]++
	}
	return Stats{
		RegisteredAgents: len(r.agents),
		TotalRouted:      r.totalRouted,
		TotalDelivered:   r.totalDelivered,
		TotalDeadLetter:  r.totalDead,
		Pending:          len(r.pending),
		PendingByTarget:  byTarget,
	}
}

func (r *Router) pendingCountLocked(target string) int {
	n := 0
	for _, msg := range r.pending {
		if msg.Target == target {
			n++
		}
	}
	return n
}

func (r *Router) appendDeadLetterLocked(msg *Message) {
	r.deadLetters = append(r.deadLetters, msg)
	r.totalDead++
	r.trimHistoryLocked()
}

func (r *Router) trimHistoryLocked() {
	if n := len(r.delivered) - historyCap; n > 0 {
		r.delivered = append(r.delivered[:0:0], r.delivered[n:]...)
	}
	if n := len(r.deadLetters) - historyCap; n > 0 {
		r.deadLetters = append(r.deadLetters[:0:0], r.deadLetters[n:]...)
	}
}
