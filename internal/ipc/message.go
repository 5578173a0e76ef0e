// Package ipc implements the authenticated unix-socket transport between
// agents and the supervisor: one newline-terminated JSON envelope per
// request, one optional envelope back, 1 MiB cap, token auth.
package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxMessageSize is the maximum serialized envelope size, terminator included.
// Longer lines are discarded without processing.
const MaxMessageSize = 1 << 20

// Message is the single envelope carried on the wire.
type Message struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Sender    string         `json:"sender"`
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
	AuthToken string         `json:"auth_token,omitempty"`
}

// NewMessage builds an envelope with a fresh request ID and timestamp.
// The auth token is stamped by the client at send time.
func NewMessage(msgType, sender string, payload map[string]any) *Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Sender:    sender,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID: uuid.NewString(),
	}
}

// Reply builds a response envelope correlated to m.
func (m *Message) Reply(msgType, sender string, payload map[string]any) *Message {
	r := NewMessage(msgType, sender, payload)
	r.RequestID = m.RequestID
	return r
}

// String returns a loggable summary. The auth token is never included.
func (m *Message) String() string {
	return fmt.Sprintf("%s from %s (request %s)", m.Type, m.Sender, m.RequestID)
}

// Encode serializes the envelope to one newline-terminated JSON line.
// Envelopes exceeding MaxMessageSize are refused before hitting the wire.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if len(data)+1 > MaxMessageSize {
		return nil, fmt.Errorf("encode message: %d bytes exceeds %d limit", len(data)+1, MaxMessageSize)
	}
	return append(data, '\n'), nil
}

// Decode parses one line (with or without the trailing newline) into an
// envelope. A missing payload decodes to an empty map so handlers can index
// into it unconditionally.
func Decode(line []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if m.Payload == nil {
		m.Payload = map[string]any{}
	}
	return &m, nil
}

// PayloadString returns payload[key] as a string, or "" when absent or not
// a string. The wire payload is free-form; handlers validate what they need.
func (m *Message) PayloadString(key string) string {
	s, _ := m.Payload[key].(string)
	return s
}

// PayloadFloat returns payload[key] as a float64, or 0 when absent.
// JSON numbers always decode to float64 in a map[string]any.
func (m *Message) PayloadFloat(key string) float64 {
	f, _ := m.Payload[key].(float64)
	return f
}
