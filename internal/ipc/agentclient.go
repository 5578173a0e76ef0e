package ipc

import (
	"fmt"
	"time"

	"github.com/nextlevelbuilder/overblick/pkg/protocol"
)

// AgentClient is the convenience surface plugins use to talk to the
// supervisor: it discovers the session token from the token file and wraps
// the raw envelopes of the message-type catalog.
type AgentClient struct {
	identity string
	client   *Client
}

// NewAgentClient reads the supervisor token file in dir and returns a
// client identifying itself as identity.
func NewAgentClient(identity, dir string) (*AgentClient, error) {
	token, err := ReadTokenFile(TokenPath(dir, "supervisor"))
	if err != nil {
		return nil, fmt.Errorf("agent client: %w", err)
	}
	return &AgentClient{
		identity: identity,
		client:   NewClient("supervisor", dir, token),
	}, nil
}

// Identity returns the agent name this client sends as.
func (c *AgentClient) Identity() string { return c.identity }

func (c *AgentClient) call(msgType string, payload map[string]any, timeout time.Duration) *Message {
	return c.client.Send(NewMessage(msgType, c.identity, payload), timeout)
}

// Status fetches the supervisor's aggregate status, or nil when unreachable.
func (c *AgentClient) Status() *Message {
	return c.call(protocol.MsgStatusRequest, nil, 0)
}

// RequestPermission asks for a privileged operation. Returns granted and the
// supervisor's reason; an unreachable supervisor denies.
func (c *AgentClient) RequestPermission(resource, action, reason string) (bool, string) {
	resp := c.call(protocol.MsgPermissionRequest, map[string]any{
		"resource": resource,
		"action":   action,
		"reason":   reason,
	}, 0)
	if resp == nil {
		return false, "supervisor unreachable"
	}
	granted, _ := resp.Payload["granted"].(bool)
	return granted, resp.PayloadString("reason")
}

// InquireHealth asks the supervisor how the host is doing. previousContext
// carries the last response so the supervisor can vary its wording.
func (c *AgentClient) InquireHealth(motivation, previousContext string) *Message {
	payload := map[string]any{"motivation": motivation}
	if previousContext != "" {
		payload["previous_context"] = previousContext
	}
	// Health responses go through the LLM; allow it time.
	return c.call(protocol.MsgHealthInquiry, payload, 3*time.Minute)
}

// Research asks the supervisor to research a query on the agent's behalf.
func (c *AgentClient) Research(query, context string) *Message {
	return c.call(protocol.MsgResearchRequest, map[string]any{
		"query":   query,
		"context": context,
	}, 4*time.Minute)
}

// ConsultEmail asks the supervisor how to handle an email. Returns the
// advised action and reasoning; falls back to tentativeIntent when the
// supervisor is unreachable.
func (c *AgentClient) ConsultEmail(question, from, subject, tentativeIntent string, confidence float64) (string, string) {
	resp := c.call(protocol.MsgEmailConsultation, map[string]any{
		"question":         question,
		"email_from":       from,
		"email_subject":    subject,
		"tentative_intent": tentativeIntent,
		"confidence":       confidence,
	}, 3*time.Minute)
	if resp == nil {
		if tentativeIntent == "" {
			tentativeIntent = protocol.ActionNotify
		}
		return tentativeIntent, "supervisor unreachable"
	}
	return resp.PayloadString("advised_action"), resp.PayloadString("reasoning")
}

// RouteMessage sends a message to another agent through the supervisor's
// router. Returns the route_response payload, or nil when unreachable.
func (c *AgentClient) RouteMessage(target, messageType string, data map[string]any, ttlSeconds int) *Message {
	payload := map[string]any{
		"target":       target,
		"message_type": messageType,
		"data":         data,
	}
	if ttlSeconds > 0 {
		payload["ttl_seconds"] = ttlSeconds
	}
	return c.call(protocol.MsgRouteMessage, payload, 0)
}

// CollectMessages drains this agent's pending inter-agent queue. Returns the
// delivered messages in FIFO order; nil when the supervisor is unreachable.
func (c *AgentClient) CollectMessages() []map[string]any {
	resp := c.call(protocol.MsgCollectMessages, nil, 0)
	if resp == nil {
		return nil
	}
	raw, _ := resp.Payload["messages"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
