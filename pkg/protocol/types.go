// Package protocol defines the IPC message-type catalog exchanged between
// agents and the supervisor. The wire format itself (newline-delimited JSON
// envelopes over a unix socket) lives in internal/ipc; this package only
// names the types and their payload shapes so both sides agree.
package protocol

// Message types sent by agents to the supervisor.
const (
	// MsgStatusRequest asks for the supervisor's aggregate fleet status.
	MsgStatusRequest = "status_request"

	// MsgPermissionRequest asks permission for a privileged operation.
	// Payload: {resource, action, reason}.
	MsgPermissionRequest = "permission_request"

	// MsgHealthInquiry asks the supervisor how the host is doing.
	// Payload: {motivation, previous_context?}.
	MsgHealthInquiry = "health_inquiry"

	// MsgResearchRequest asks the supervisor to research a topic.
	// Payload: {query, context}.
	MsgResearchRequest = "research_request"

	// MsgEmailConsultation asks the supervisor how to handle an email.
	// Payload: {question, email_from, email_subject, tentative_intent, confidence}.
	MsgEmailConsultation = "email_consultation"

	// MsgRouteMessage routes a message to another agent.
	// Payload: {target, message_type, data, ttl_seconds?}.
	MsgRouteMessage = "route_message"

	// MsgCollectMessages drains the sender's pending inter-agent queue.
	MsgCollectMessages = "collect_messages"

	// MsgShutdown requests an orderly supervisor shutdown.
	MsgShutdown = "shutdown"
)

// Response message types.
const (
	MsgStatusResponse            = "status_response"
	MsgPermissionResponse        = "permission_response"
	MsgHealthResponse            = "health_response"
	MsgResearchResponse          = "research_response"
	MsgEmailConsultationResponse = "email_consultation_response"
	MsgRouteResponse             = "route_response"
	MsgCollectResponse           = "collect_response"
	MsgAck                       = "ack"
)

// Email consultation verdicts. The advisor must return exactly one of these.
const (
	ActionIgnore  = "ignore"
	ActionNotify  = "notify"
	ActionReply   = "reply"
	ActionAskBoss = "ask_boss"
)

// EmailActions lists the valid consultation verdicts in scan order.
var EmailActions = []string{ActionIgnore, ActionNotify, ActionReply, ActionAskBoss}
