package supervisor

import (
	"time"

	"github.com/nextlevelbuilder/overblick/internal/audit"
	"github.com/nextlevelbuilder/overblick/internal/ipc"
	"github.com/nextlevelbuilder/overblick/internal/router"
	"github.com/nextlevelbuilder/overblick/pkg/protocol"
)

func (s *Supervisor) installHandlers() {
	s.server.Register(protocol.MsgStatusRequest, s.handleStatusRequest)
	s.server.Register(protocol.MsgPermissionRequest, s.handlePermissionRequest)
	s.server.Register(protocol.MsgRouteMessage, s.handleRouteMessage)
	s.server.Register(protocol.MsgCollectMessages, s.handleCollectMessages)
	s.server.Register(protocol.MsgShutdown, s.handleShutdown)
	s.server.Register(protocol.MsgHealthInquiry, s.handleHealthInquiry)
	s.server.Register(protocol.MsgResearchRequest, s.handleResearch)
	s.server.Register(protocol.MsgEmailConsultation, s.handleEmailConsultation)
}

func (s *Supervisor) handleStatusRequest(msg *ipc.Message) *ipc.Message {
	return msg.Reply(protocol.MsgStatusResponse, Identity, s.Status())
}

// Stage 1 permission policy: approve everything, audit everything. The
// handler exists so later stages can impose policy without touching
// callers.
func (s *Supervisor) handlePermissionRequest(msg *ipc.Message) *ipc.Message {
	s.sink.Record(audit.Entry{
		Action:   "permission_request",
		Category: "security",
		Identity: msg.Sender,
		Details: map[string]any{
			"resource": msg.PayloadString("resource"),
			"action":   msg.PayloadString("action"),
			"reason":   msg.PayloadString("reason"),
			"granted":  true,
		},
		Success: true,
	})
	return msg.Reply(protocol.MsgPermissionResponse, Identity, map[string]any{
		"granted": true,
		"reason":  "auto-approved",
	})
}

func (s *Supervisor) handleRouteMessage(msg *ipc.Message) *ipc.Message {
	target := msg.PayloadString("target")
	msgType := msg.PayloadString("message_type")
	if target == "" || msgType == "" {
		return msg.Reply(protocol.MsgRouteResponse, Identity, map[string]any{
			"success": false,
			"error":   "payload requires target and message_type",
		})
	}

	data, _ := msg.Payload["data"].(map[string]any)
	ttl := time.Duration(msg.PayloadFloat("ttl_seconds")) * time.Second

	routed := s.router.Route(msg.Sender, target, msgType, data, ttl)
	payload := map[string]any{
		"success":    routed.Status == router.StatusPending,
		"message_id": routed.ID,
		"status":     routed.Status,
	}
	if routed.Error != "" {
		payload["error"] = routed.Error
	}
	return msg.Reply(protocol.MsgRouteResponse, Identity, payload)
}

func (s *Supervisor) handleCollectMessages(msg *ipc.Message) *ipc.Message {
	collected := s.router.Collect(msg.Sender)
	messages := make([]any, 0, len(collected))
	for _, m := range collected {
		messages = append(messages, m.Dict())
	}
	return msg.Reply(protocol.MsgCollectResponse, Identity, map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}

func (s *Supervisor) handleShutdown(msg *ipc.Message) *ipc.Message {
	s.sink.Record(audit.Entry{
		Action:   "shutdown_request",
		Category: "lifecycle",
		Identity: msg.Sender,
		Success:  true,
	})
	s.RequestShutdown()
	return msg.Reply(protocol.MsgAck, Identity, nil)
}
