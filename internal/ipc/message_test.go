package ipc

import (
	"reflect"
	"strings"
	"testing"
)

func TestMessage_EncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "full envelope",
			msg: &Message{
				Type:      "status_request",
				Payload:   map[string]any{"x": 1.0, "s": "v", "nested": map[string]any{"a": true}},
				Sender:    "agent-1",
				Timestamp: "2026-08-24T10:00:00Z",
				RequestID: "req-1",
				AuthToken: "abc123",
			},
		},
		{
			name: "empty payload",
			msg: &Message{
				Type:      "shutdown",
				Payload:   map[string]any{},
				Sender:    "ops",
				Timestamp: "2026-08-24T10:00:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.msg.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if data[len(data)-1] != '\n' {
				t.Fatal("encoded message is not newline-terminated")
			}
			got, err := Decode(data[:len(data)-1])
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.msg) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tt.msg)
			}
		})
	}
}

func TestMessage_EncodeRejectsOversize(t *testing.T) {
	m := NewMessage("big", "a", map[string]any{"blob": strings.Repeat("x", MaxMessageSize)})
	if _, err := m.Encode(); err == nil {
		t.Fatal("expected oversize encode to fail")
	}
}

func TestDecode_NilPayloadBecomesEmptyMap(t *testing.T) {
	m, err := Decode([]byte(`{"type":"ack","sender":"sup"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Payload == nil {
		t.Fatal("payload should decode to an empty map")
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMessage_StringOmitsToken(t *testing.T) {
	m := NewMessage("status_request", "a", nil)
	m.AuthToken = "super-secret-token"
	if s := m.String(); strings.Contains(s, "super-secret-token") {
		t.Fatalf("String() leaked the auth token: %s", s)
	}
}

func TestMessage_Reply(t *testing.T) {
	req := NewMessage("research_request", "a", map[string]any{"query": "q"})
	resp := req.Reply("research_response", "supervisor", map[string]any{"summary": "s"})
	if resp.RequestID != req.RequestID {
		t.Errorf("reply request_id = %q, want %q", resp.RequestID, req.RequestID)
	}
	if resp.Sender != "supervisor" {
		t.Errorf("reply sender = %q", resp.Sender)
	}
}
