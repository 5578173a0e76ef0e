package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Handler processes one authenticated inbound envelope. A non-nil return
// value is written back as the response; nil closes the connection silently.
type Handler func(*Message) *Message

// connTimeout bounds each I/O phase of an exchange: reading the request
// line, and writing the response. The handler in between runs unbounded;
// privileged handlers may hold an LLM call for minutes.
const connTimeout = 30 * time.Second

// Server accepts one-message-per-connection requests on a unix socket.
// A single malformed or unauthenticated connection never tears down the
// listener.
type Server struct {
	name       string
	dir        string
	token      string
	socketPath string
	tokenPath  string

	timeout time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	listener net.Listener
	wg       sync.WaitGroup
	closed   atomic.Bool

	rejected atomic.Int64
}

// NewServer builds a server for <dir>/overblick-<name>.sock. An empty token
// disables authentication (tests only; the supervisor always sets one).
func NewServer(name, dir, token string) *Server {
	return &Server{
		name:       name,
		dir:        dir,
		token:      token,
		socketPath: SocketPath(dir, name),
		tokenPath:  TokenPath(dir, name),
		timeout:    connTimeout,
		handlers:   map[string]Handler{},
	}
}

// Register installs the handler for one message type. At most one handler
// per type; re-registration replaces the previous one.
func (s *Server) Register(msgType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[msgType] = h
}

// Rejected returns the count of authentication rejections.
func (s *Server) Rejected() int64 { return s.rejected.Load() }

// SocketDir returns the directory holding the socket and token file.
func (s *Server) SocketDir() string { return s.dir }

// Start binds the socket, persists the token file, and begins accepting.
// A stale socket file from a previous run is removed first.
func (s *Server) Start() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("ipc server: create socket dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ipc server: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("ipc server: bind %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("ipc server: chmod socket: %w", err)
	}

	if s.token != "" {
		if err := WriteTokenFile(s.tokenPath, s.token); err != nil {
			ln.Close()
			os.Remove(s.socketPath)
			return fmt.Errorf("ipc server: %w", err)
		}
	}

	s.listener = ln
	s.wg.Add(1)
	go s.acceptLoop()

	slog.Info("ipc server listening", "socket", s.socketPath)
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			slog.Warn("ipc accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn serves exactly one request/response exchange.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(s.timeout))

	line, err := readLine(conn)
	if err != nil {
		// Oversized, unterminated, or truncated input: drop silently.
		slog.Debug("ipc read failed", "error", err)
		return
	}

	msg, err := Decode(line)
	if err != nil {
		slog.Debug("ipc decode failed", "error", err)
		return
	}

	if s.token != "" && !TokenEqual(msg.AuthToken, s.token) {
		s.rejected.Add(1)
		slog.Warn("ipc auth rejected", "type", msg.Type, "sender", msg.Sender)
		return
	}

	s.mu.RLock()
	h, ok := s.handlers[msg.Type]
	s.mu.RUnlock()
	if !ok {
		slog.Warn("ipc no handler", "type", msg.Type, "sender", msg.Sender)
		return
	}

	resp := h(msg)
	if resp == nil {
		return
	}
	data, err := resp.Encode()
	if err != nil {
		slog.Warn("ipc encode response failed", "type", resp.Type, "error", err)
		return
	}
	// The write deadline starts counting after the handler returns, so a
	// slow handler never expires its own response.
	conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if _, err := conn.Write(data); err != nil {
		slog.Debug("ipc write response failed", "error", err)
	}
}

// readLine reads one newline-terminated line of at most MaxMessageSize
// bytes. Anything longer or unterminated is an error.
func readLine(conn net.Conn) ([]byte, error) {
	r := bufio.NewReaderSize(conn, 64*1024)
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxMessageSize {
			return nil, fmt.Errorf("line exceeds %d bytes", MaxMessageSize)
		}
		if err == nil {
			return buf[:len(buf)-1], nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, err
	}
}

// Shutdown stops accepting, waits for in-flight connections, and unlinks
// the socket and token files.
func (s *Server) Shutdown() {
	if s.closed.Swap(true) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
	if s.token != "" {
		os.Remove(s.tokenPath)
	}
	slog.Info("ipc server stopped", "socket", s.socketPath)
}
