// Package supervisor is the parent process of the fleet: it owns the IPC
// server, the message router, the audit sink, and the lifecycle of every
// managed agent child.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/overblick/internal/audit"
	"github.com/nextlevelbuilder/overblick/internal/config"
	"github.com/nextlevelbuilder/overblick/internal/ipc"
	"github.com/nextlevelbuilder/overblick/internal/proc"
	"github.com/nextlevelbuilder/overblick/internal/providers"
	"github.com/nextlevelbuilder/overblick/internal/router"
)

// Supervisor lifecycle states.
type State string

const (
	StateInit     State = "init"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Identity is the supervisor's name on the socket and in the router.
const Identity = "supervisor"

// sweepPoll is how often the sweeper wakes to check the cron gate.
const sweepPoll = 30 * time.Second

// Supervisor owns the fleet. One instance per host.
type Supervisor struct {
	cfg    *config.Config
	server *ipc.Server
	router *router.Router
	sink   audit.Sink

	mu     sync.Mutex
	state  State
	agents []*proc.Process

	startedAt  time.Time
	shutdownCh chan struct{}
	shutdown   sync.Once
	monitorCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	llmOnce sync.Once
	llm     providers.Provider

	tracer trace.Tracer
}

// New assembles a supervisor from config. The session token is generated
// here; it exists only in this process and in the token file.
func New(cfg *config.Config) (*Supervisor, error) {
	token, err := ipc.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	sink := audit.Sink(audit.Discard)
	if dataDir := cfg.DataDir(); dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("supervisor: create data dir: %w", err)
		}
		s, err := audit.Open(filepath.Join(dataDir, "audit.db"))
		if err != nil {
			return nil, fmt.Errorf("supervisor: %w", err)
		}
		sink = s
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cfg:        cfg,
		server:     ipc.NewServer(Identity, cfg.SocketDir(), token),
		router:     router.New(sink),
		sink:       sink,
		state:      StateInit,
		shutdownCh: make(chan struct{}),
		monitorCtx: ctx,
		cancel:     cancel,
		tracer:     otel.Tracer("overblick/supervisor"),
	}
	s.installHandlers()
	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	slog.Info("supervisor state", "state", st)
}

// Rejected returns the IPC auth rejection count.
func (s *Supervisor) Rejected() int64 { return s.server.Rejected() }

// Start binds the socket, spawns the configured agents, and begins
// sweeping. Bind and token-file failures are fatal; a single agent
// failing to spawn is not.
func (s *Supervisor) Start() error {
	s.setState(StateStarting)
	s.startedAt = time.Now()

	if err := s.server.Start(); err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("supervisor: %w", err)
	}

	// The supervisor is itself a routable target so agents can push
	// reports without a dedicated message type.
	s.router.Register(Identity, nil, 0)

	for _, ma := range s.cfg.Supervisor.Agents {
		if err := s.startAgent(ma); err != nil {
			slog.Error("agent failed to start", "name", ma.Name, "error", err)
		}
	}

	s.wg.Add(1)
	go s.sweeper()

	s.setState(StateRunning)
	s.sink.Record(audit.Entry{
		Action:   "supervisor_start",
		Category: "lifecycle",
		Identity: Identity,
		Details:  map[string]any{"agents": len(s.cfg.Supervisor.Agents)},
		Success:  true,
	})
	return nil
}

// startAgent registers the identity with the router, spawns the child,
// and launches its monitor.
func (s *Supervisor) startAgent(ma config.ManagedAgent) error {
	s.router.Register(ma.Name, ma.AcceptedTypes, ma.MaxQueue)

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own binary: %w", err)
	}
	args := []string{"agent", "--name", ma.Name, "--socket-dir", s.cfg.SocketDir()}
	for _, pl := range ma.Plugins {
		args = append(args, "--plugins", pl)
	}

	p := proc.New(ma.Name, binary, args, s.cfg.Supervisor.StopGrace())
	if err := p.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.agents = append(s.agents, p)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.monitorAgent(p)
	return nil
}

// monitorAgent waits for the child to exit and applies the restart
// policy: linear back-off 2s per attempt, capped attempts, no restart
// once shutdown begins.
func (s *Supervisor) monitorAgent(p *proc.Process) {
	defer s.wg.Done()
	for {
		p.Monitor()
		if s.monitorCtx.Err() != nil || s.State() != StateRunning {
			return
		}
		if p.State() != proc.StateCrashed {
			return
		}

		attempt := p.NoteRestart()
		if attempt > s.maxRestarts() {
			slog.Error("agent exceeded restart budget, giving up",
				"name", p.Name(), "restarts", attempt-1)
			return
		}

		backoff := time.Duration(attempt) * 2 * time.Second
		slog.Warn("agent crashed, restarting",
			"name", p.Name(), "attempt", attempt, "backoff", backoff)
		select {
		case <-s.monitorCtx.Done():
			return
		case <-time.After(backoff):
		}

		if err := p.Start(); err != nil {
			slog.Error("agent restart failed", "name", p.Name(), "error", err)
			return
		}
	}
}

func (s *Supervisor) maxRestarts() int {
	if s.cfg.Supervisor.MaxRestarts <= 0 {
		return 3
	}
	return s.cfg.Supervisor.MaxRestarts
}

// sweeper periodically dead-letters expired pending messages. The cron
// expression gates the route-count trigger for quiet periods.
func (s *Supervisor) sweeper() {
	defer s.wg.Done()
	gron := gronx.New()
	schedule := s.cfg.Supervisor.CleanupSchedule
	if schedule == "" {
		schedule = "* * * * *"
	}

	ticker := time.NewTicker(sweepPoll)
	defer ticker.Stop()
	for {
		select {
		case <-s.monitorCtx.Done():
			return
		case <-ticker.C:
			due, err := gron.IsDue(schedule, time.Now())
			if err != nil {
				slog.Warn("invalid cleanup schedule", "schedule", schedule, "error", err)
				due = true
			}
			if due {
				s.router.CleanupExpired()
				s.drainOwnQueue()
			}
		}
	}
}

// drainOwnQueue collects messages routed at the supervisor itself and
// logs them. Agent status reports land here.
func (s *Supervisor) drainOwnQueue() {
	for _, msg := range s.router.Collect(Identity) {
		slog.Info("message for supervisor",
			"id", msg.ID, "from", msg.Source, "type", msg.Type)
	}
}

// Status builds the aggregate status payload.
func (s *Supervisor) Status() map[string]any {
	s.mu.Lock()
	state := s.state
	procs := make([]*proc.Process, len(s.agents))
	copy(procs, s.agents)
	s.mu.Unlock()

	agents := map[string]any{}
	running := 0
	for _, p := range procs {
		st := p.Status()
		if st.State == proc.StateRunning {
			running++
		}
		agents[st.Name] = map[string]any{
			"state":         string(st.State),
			"restart_count": st.Restarts,
			"exit_code":     st.ExitCode,
		}
	}

	return map[string]any{
		"supervisor_state": string(state),
		"agents":           agents,
		"total_agents":     len(procs),
		"running_agents":   running,
		"routing":          s.router.Stats(),
		"uptime_seconds":   int(time.Since(s.startedAt) / time.Second),
		"rejected_count":   s.server.Rejected(),
	}
}

// RequestShutdown sets the shutdown event. Idempotent; safe from any
// goroutine including IPC handlers.
func (s *Supervisor) RequestShutdown() {
	s.shutdown.Do(func() { close(s.shutdownCh) })
}

// Stop shuts the fleet down: agents in reverse start order, then the IPC
// server, then the background tasks, then the audit sink.
func (s *Supervisor) Stop() {
	s.setState(StateStopping)

	s.mu.Lock()
	procs := make([]*proc.Process, len(s.agents))
	copy(procs, s.agents)
	s.mu.Unlock()

	for i := len(procs) - 1; i >= 0; i-- {
		procs[i].Stop()
	}

	s.cancel()
	s.server.Shutdown()
	s.wg.Wait()

	s.sink.Record(audit.Entry{
		Action:   "supervisor_stop",
		Category: "lifecycle",
		Identity: Identity,
		Success:  true,
	})
	s.sink.Close()
	s.setState(StateStopped)
}

// Run starts the supervisor and blocks until a signal or shutdown
// message arrives, then stops it. Returns the Start error if startup
// fails.
func (s *Supervisor) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("signal received", "signal", sig.String())
		s.RequestShutdown()
	case <-s.shutdownCh:
	}

	s.Stop()
	return nil
}
