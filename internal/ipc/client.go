package ipc

import (
	"log/slog"
	"net"
	"time"
)

// DefaultSendTimeout bounds one request/response exchange when the caller
// does not specify a timeout.
const DefaultSendTimeout = 30 * time.Second

// Client sends envelopes to a named server socket. Every network failure
// is non-fatal: Send returns nil and the caller treats the peer as
// unreachable.
type Client struct {
	target string
	dir    string
	token  string
}

// NewClient builds a client for <dir>/overblick-<target>.sock.
func NewClient(target, dir, token string) *Client {
	return &Client{target: target, dir: dir, token: token}
}

// Send writes one envelope and reads one response line within timeout.
// The client's token overwrites whatever auth_token the envelope carried.
// Returns nil on any I/O error, timeout, malformed response, or the server
// closing without a reply.
func (c *Client) Send(msg *Message, timeout time.Duration) *Message {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if c.token != "" {
		msg.AuthToken = c.token
	}

	data, err := msg.Encode()
	if err != nil {
		slog.Warn("ipc client: encode failed", "type", msg.Type, "error", err)
		return nil
	}

	conn, err := net.DialTimeout("unix", SocketPath(c.dir, c.target), timeout)
	if err != nil {
		slog.Debug("ipc client: dial failed", "target", c.target, "error", err)
		return nil
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(data); err != nil {
		slog.Debug("ipc client: write failed", "target", c.target, "error", err)
		return nil
	}

	line, err := readLine(conn)
	if err != nil {
		slog.Debug("ipc client: read failed", "target", c.target, "error", err)
		return nil
	}
	resp, err := Decode(line)
	if err != nil {
		slog.Debug("ipc client: decode failed", "target", c.target, "error", err)
		return nil
	}
	return resp
}
